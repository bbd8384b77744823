// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package websearch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const truncatedNote = "\n..._This content has been truncated to stay below the page size limit._"

var blankLines = regexp.MustCompile(`\n{3,}`)

// Page is a fetched web page reduced to text.
type Page struct {
	URL       string
	Title     string
	Text      string
	Truncated bool
}

// Fetch downloads rawURL and returns its readable text, cut at maxBytes
// (zero means no limit). Only http and https URLs are accepted.
func (s *Searcher) Fetch(ctx context.Context, rawURL string, maxBytes int) (Page, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Page{}, fmt.Errorf("invalid url %q", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("Accept", "text/html,text/plain;q=0.9")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Page{}, fmt.Errorf("%s: status %d", u.Host, resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(io.LimitReader(resp.Body, maxBodyBytes)); err != nil {
		return Page{}, err
	}

	page := Page{URL: u.String()}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "" || mediaType == "text/html" || mediaType == "application/xhtml+xml":
		title, text, err := htmlToText(buf.Bytes())
		if err != nil {
			return Page{}, err
		}
		page.Title, page.Text = title, text
	case strings.HasPrefix(mediaType, "text/"):
		page.Text = strings.TrimSpace(buf.String())
	default:
		return Page{}, fmt.Errorf("unsupported content type %q", mediaType)
	}

	if maxBytes > 0 && len(page.Text) > maxBytes {
		cut := maxBytes
		for cut > 0 && !utf8.RuneStart(page.Text[cut]) {
			cut--
		}
		page.Text = page.Text[:cut] + truncatedNote
		page.Truncated = true
	}
	return page, nil
}

var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"svg": true, "iframe": true, "head": true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "br": true,
	"li": true, "tr": true, "table": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "header": true, "footer": true,
}

// htmlToText keeps visible text, marks headings with #, list items with -
// and links as [text](href).
func htmlToText(body []byte) (string, string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipElements[n.Data] {
				return
			}
			if blockElements[n.Data] {
				b.WriteString("\n")
			}
			switch n.Data {
			case "h1", "h2", "h3", "h4", "h5", "h6":
				b.WriteString(strings.Repeat("#", int(n.Data[1]-'0')) + " ")
			case "li":
				b.WriteString("- ")
			case "a":
				if href := attr(n, "href"); strings.HasPrefix(href, "http") {
					fmt.Fprintf(&b, "[%s](%s)", collapseSpace(textContent(n)), href)
					return
				}
			}
		}
		if n.Type == html.TextNode {
			if text := collapseSpace(n.Data); text != "" {
				b.WriteString(text)
				b.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			b.WriteString("\n")
		}
	}
	walk(doc)

	lines := strings.Split(b.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text := blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return findTitle(doc), strings.TrimSpace(text), nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return collapseSpace(textContent(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}
