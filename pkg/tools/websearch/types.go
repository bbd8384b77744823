// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package websearch implements the web sub-agent's tools: a search backed
// by the Brave API or the DuckDuckGo HTML endpoint, and a page reader that
// reduces HTML to text.
package websearch

import (
	"fmt"
	"strings"
)

const (
	ProviderAuto       = "auto"
	ProviderBrave      = "brave"
	ProviderDuckDuckGo = "duckduckgo"
)

type SearchRequest struct {
	Query string
	Count int
}

// Normalize trims the query and clamps Count to 1..10, default 5.
func (r SearchRequest) Normalize() SearchRequest {
	out := r
	out.Query = strings.TrimSpace(out.Query)
	if out.Count <= 0 {
		out.Count = 5
	}
	if out.Count > 10 {
		out.Count = 10
	}
	return out
}

type ResultItem struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

type SearchResult struct {
	Provider string       `json:"provider"`
	Query    string       `json:"query"`
	Results  []ResultItem `json:"results"`
}

// Markdown renders the results the way the model reads them.
func (r SearchResult) Markdown() string {
	if len(r.Results) == 0 {
		return fmt.Sprintf("No results found for %q.", r.Query)
	}
	var b strings.Builder
	b.WriteString("## Search Results\n")
	for _, item := range r.Results {
		fmt.Fprintf(&b, "\n[%s](%s)\n", item.Title, item.URL)
		if item.Snippet != "" {
			b.WriteString(item.Snippet)
			b.WriteString("\n")
		}
	}
	return b.String()
}
