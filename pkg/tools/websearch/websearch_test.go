// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jllopis/healthdesk/pkg/errors"
	"github.com/jllopis/healthdesk/pkg/privacy"
)

const ddgPage = `<html><body>
<div class="result results_links">
  <h2 class="result__title">
    <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.heart.org%2Fen%2Fhealthy-living&amp;rut=abc">Target Heart Rates | American Heart Association</a>
  </h2>
  <a class="result__snippet" href="#">A normal resting heart rate for adults ranges from
     60 to 100 beats per minute.</a>
</div>
<div class="result">
  <a class="result__a" href="https://www.mayoclinic.org/hr">Mayo Clinic</a>
</div>
<div class="result">
  <a class="result__a" href="javascript:void(0)">skip me</a>
</div>
</body></html>`

func TestParseDuckDuckGo(t *testing.T) {
	results, err := parseDuckDuckGo([]byte(ddgPage), 10)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %+v", results)
	}
	if results[0].URL != "https://www.heart.org/en/healthy-living" {
		t.Errorf("redirect not unwrapped: %s", results[0].URL)
	}
	if results[0].Title != "Target Heart Rates | American Heart Association" {
		t.Errorf("unexpected title %q", results[0].Title)
	}
	if results[0].Snippet != "A normal resting heart rate for adults ranges from 60 to 100 beats per minute." {
		t.Errorf("unexpected snippet %q", results[0].Snippet)
	}
	if results[1].URL != "https://www.mayoclinic.org/hr" {
		t.Errorf("unexpected second url %s", results[1].URL)
	}

	limited, _ := parseDuckDuckGo([]byte(ddgPage), 1)
	if len(limited) != 1 {
		t.Fatalf("limit not applied")
	}
}

func TestSearchDuckDuckGo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil || r.Form.Get("q") != "resting heart rate" {
			t.Errorf("unexpected query %v", r.Form)
		}
		fmt.Fprint(w, ddgPage)
	}))
	defer srv.Close()

	s := New(WithEndpoints("", srv.URL))
	if s.Provider() != ProviderDuckDuckGo {
		t.Fatalf("auto without key should use duckduckgo")
	}
	res, err := s.Search(context.Background(), SearchRequest{Query: " resting heart rate "})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Provider != ProviderDuckDuckGo || len(res.Results) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.Contains(res.Markdown(), "[Mayo Clinic](https://www.mayoclinic.org/hr)") {
		t.Fatalf("unexpected markdown:\n%s", res.Markdown())
	}
}

func TestSearchRedactsQuery(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		got = r.Form.Get("q")
		fmt.Fprint(w, ddgPage)
	}))
	defer srv.Close()

	s := New(WithEndpoints("", srv.URL), WithRedactor(privacy.NewRedactor()))
	res, err := s.Search(context.Background(), SearchRequest{Query: "resting heart rate jane@example.com"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got != "resting heart rate [EMAIL]" {
		t.Errorf("query sent unredacted: %q", got)
	}
	if res.Query != got {
		t.Errorf("result should carry the sent query, got %q", res.Query)
	}
}

func TestSearchBrave(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "brave-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("count") != "3" {
			t.Errorf("unexpected count %q", r.URL.Query().Get("count"))
		}
		fmt.Fprint(w, `{"web":{"results":[{"title":"","url":"https://cdc.gov/sleep","description":" Adults need 7 or more hours. "},{"title":"x","url":""}]}}`)
	}))
	defer srv.Close()

	s := New(WithBraveAPIKey("brave-key"), WithEndpoints(srv.URL, ""))
	if s.Provider() != ProviderBrave {
		t.Fatalf("auto with key should use brave")
	}
	res, err := s.Search(context.Background(), SearchRequest{Query: "sleep", Count: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].Title != "https://cdc.gov/sleep" || res.Results[0].Snippet != "Adults need 7 or more hours." {
		t.Fatalf("unexpected results %+v", res.Results)
	}

	bad := New(WithProvider(ProviderBrave), WithBraveAPIKey("wrong"), WithEndpoints(srv.URL, ""))
	if _, err := bad.Search(context.Background(), SearchRequest{Query: "sleep"}); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status error, got %v", err)
	}
	if _, err := New(WithProvider(ProviderBrave)).Search(context.Background(), SearchRequest{Query: "x"}); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestSearchRequestNormalize(t *testing.T) {
	if got := (SearchRequest{Count: 0}).Normalize().Count; got != 5 {
		t.Errorf("default count: %d", got)
	}
	if got := (SearchRequest{Count: 50}).Normalize().Count; got != 10 {
		t.Errorf("max count: %d", got)
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, `<html><head><title>Sleep Facts</title><style>p{}</style></head>
<body><script>track()</script><h1>How much sleep</h1>
<p>Adults need <b>7 or more</b> hours.</p>
<ul><li>Teens: 8-10</li></ul>
<p>See <a href="https://www.cdc.gov/sleep">CDC</a>.</p></body></html>`)
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, strings.Repeat("é", 100))
		case "/pdf":
			w.Header().Set("Content-Type", "application/pdf")
			fmt.Fprint(w, "%PDF")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	s := New()

	page, err := s.Fetch(context.Background(), srv.URL+"/page", 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.Title != "Sleep Facts" {
		t.Errorf("unexpected title %q", page.Title)
	}
	for _, want := range []string{"# How much sleep", "Adults need 7 or more hours.", "- Teens: 8-10", "[CDC](https://www.cdc.gov/sleep)"} {
		if !strings.Contains(page.Text, want) {
			t.Errorf("text missing %q:\n%s", want, page.Text)
		}
	}
	if strings.Contains(page.Text, "track()") || strings.Contains(page.Text, "p{}") {
		t.Errorf("script or style leaked:\n%s", page.Text)
	}

	plain, err := s.Fetch(context.Background(), srv.URL+"/plain", 51)
	if err != nil {
		t.Fatalf("Fetch plain: %v", err)
	}
	if !plain.Truncated || !strings.HasSuffix(plain.Text, truncatedNote) || strings.Count(plain.Text, "é") != 25 {
		t.Errorf("unexpected truncation %q", plain.Text)
	}

	for _, u := range []string{srv.URL + "/pdf", srv.URL + "/missing", "ftp://example.com", "not a url"} {
		if _, err := s.Fetch(context.Background(), u, 0); err == nil {
			t.Errorf("Fetch(%q): expected error", u)
		}
	}
}

func TestToolsReportRecoverableErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	s := New(WithEndpoints("", srv.URL))

	search := NewSearchTool(s, 5)
	if _, err := search.Call(context.Background(), `{"query":"hr"}`); !errors.HasCode(err, errors.CodeToolFailure) || !errors.IsRecoverable(err) {
		t.Fatalf("expected recoverable TOOL_FAILURE, got %v", err)
	}
	if _, err := search.Call(context.Background(), `{}`); !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}

	visit := NewVisitTool(s, 100)
	if _, err := visit.Call(context.Background(), map[string]any{"url": srv.URL}); !errors.IsRecoverable(err) {
		t.Fatalf("expected recoverable error, got %v", err)
	}
	if visit.ToolDefinition().Function.Name != VisitToolName || search.Name() != SearchToolName {
		t.Fatalf("unexpected tool names")
	}
}
