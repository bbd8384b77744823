// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package websearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jllopis/healthdesk/pkg/privacy"
)

const maxBodyBytes = 2 << 20

// Searcher runs web searches. The zero value is not usable; use New.
type Searcher struct {
	provider  string
	apiKey    string
	client    *http.Client
	userAgent string
	redactor  *privacy.Redactor

	braveEndpoint string
	ddgEndpoint   string
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithProvider selects brave, duckduckgo or auto (brave when a key is set).
func WithProvider(p string) Option {
	return func(s *Searcher) { s.provider = strings.ToLower(strings.TrimSpace(p)) }
}

// WithBraveAPIKey sets the Brave subscription token.
func WithBraveAPIKey(key string) Option {
	return func(s *Searcher) { s.apiKey = strings.TrimSpace(key) }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Searcher) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTimeout sets the request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(s *Searcher) {
		if d > 0 {
			s.client = &http.Client{Timeout: d}
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *Searcher) { s.userAgent = ua }
}

// WithRedactor masks personal identifiers in queries before they are sent.
func WithRedactor(r *privacy.Redactor) Option {
	return func(s *Searcher) { s.redactor = r }
}

// WithEndpoints overrides the provider URLs. Empty values keep the defaults.
func WithEndpoints(brave, duckduckgo string) Option {
	return func(s *Searcher) {
		if brave != "" {
			s.braveEndpoint = brave
		}
		if duckduckgo != "" {
			s.ddgEndpoint = duckduckgo
		}
	}
}

// New returns a Searcher.
func New(opts ...Option) *Searcher {
	s := &Searcher{
		provider:      ProviderAuto,
		client:        &http.Client{Timeout: 15 * time.Second},
		userAgent:     "healthdesk/0.1",
		braveEndpoint: braveWebSearchEndpoint,
		ddgEndpoint:   duckDuckGoHTMLEndpoint,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider returns the backend a search will use.
func (s *Searcher) Provider() string {
	if s.provider == "" || s.provider == ProviderAuto {
		if s.apiKey != "" {
			return ProviderBrave
		}
		return ProviderDuckDuckGo
	}
	return s.provider
}

// Search runs req against the configured backend.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	req = req.Normalize()
	if req.Query == "" {
		return SearchResult{}, errors.New("missing query")
	}
	req.Query = s.redactor.RedactContext(ctx, req.Query).Text
	switch p := s.Provider(); p {
	case ProviderBrave:
		if s.apiKey == "" {
			return SearchResult{}, errors.New("missing brave api key")
		}
		return s.braveWebSearch(ctx, req)
	case ProviderDuckDuckGo:
		return s.duckDuckGoSearch(ctx, req)
	default:
		return SearchResult{}, fmt.Errorf("unsupported web search provider %q", p)
	}
}

func (s *Searcher) do(req *http.Request) ([]byte, error) {
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%s: status %d: %s", req.URL.Host, resp.StatusCode, msg)
	}
	return body, nil
}
