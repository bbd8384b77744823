// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package websearch

import (
	"context"

	"github.com/jllopis/healthdesk/pkg/core"
	"github.com/jllopis/healthdesk/pkg/llm"
	"github.com/jllopis/healthdesk/pkg/tools"
)

const (
	SearchToolName = "web_search"
	VisitToolName  = "visit_webpage"
)

// SearchTool is the web_search tool.
type SearchTool struct {
	searcher   *Searcher
	maxResults int
}

// NewSearchTool wraps s. maxResults bounds the result count.
func NewSearchTool(s *Searcher, maxResults int) *SearchTool {
	return &SearchTool{searcher: s, maxResults: maxResults}
}

func (t *SearchTool) Name() string { return SearchToolName }

func (t *SearchTool) ToolDefinition() llm.Tool {
	return llm.NewFunctionTool(SearchToolName,
		"Performs a web search for a query and returns the top results as titles, URLs and snippets.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "The search query."},
			},
			"required": []string{"query"},
		})
}

func (t *SearchTool) Call(ctx context.Context, input any) (any, error) {
	args, err := tools.DecodeArgs(input)
	if err != nil {
		return nil, err
	}
	query, err := args.String("query")
	if err != nil {
		return nil, err
	}
	res, err := t.searcher.Search(ctx, SearchRequest{Query: query, Count: t.maxResults})
	if err != nil {
		return nil, tools.Failure(SearchToolName, err)
	}
	return res.Markdown(), nil
}

// VisitTool is the visit_webpage tool.
type VisitTool struct {
	searcher *Searcher
	maxBytes int
}

// NewVisitTool wraps s. Page text is cut at maxBytes.
func NewVisitTool(s *Searcher, maxBytes int) *VisitTool {
	return &VisitTool{searcher: s, maxBytes: maxBytes}
}

func (t *VisitTool) Name() string { return VisitToolName }

func (t *VisitTool) ToolDefinition() llm.Tool {
	return llm.NewFunctionTool(VisitToolName,
		"Visits a webpage at the given url and reads its content as text.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{"type": "string", "description": "The url of the webpage to visit."},
			},
			"required": []string{"url"},
		})
}

func (t *VisitTool) Call(ctx context.Context, input any) (any, error) {
	args, err := tools.DecodeArgs(input)
	if err != nil {
		return nil, err
	}
	rawURL, err := args.String("url")
	if err != nil {
		return nil, err
	}
	page, err := t.searcher.Fetch(ctx, rawURL, t.maxBytes)
	if err != nil {
		return nil, tools.Failure(VisitToolName, err)
	}
	if page.Title != "" {
		return "# " + page.Title + "\n\n" + page.Text, nil
	}
	return page.Text, nil
}

var (
	_ core.Tool = (*SearchTool)(nil)
	_ core.Tool = (*VisitTool)(nil)
)
