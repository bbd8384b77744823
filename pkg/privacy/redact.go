// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package privacy masks personal identifiers in text that leaves the
// process, such as the queries the web agent sends to a search engine.
//
//	r := privacy.NewRedactor()
//	out := r.Redact("resting heart rate for jane@example.com")
//	// out.Text == "resting heart rate for [EMAIL]"
package privacy

import (
	"context"
	"regexp"
)

// Kind categorizes a personal identifier.
type Kind string

const (
	KindEmail      Kind = "email"
	KindPhone      Kind = "phone"
	KindSSN        Kind = "ssn"
	KindCreditCard Kind = "credit_card"
	KindIPAddress  Kind = "ip_address"
)

type rule struct {
	kind    Kind
	pattern *regexp.Regexp
	mask    string
}

// Order matters: card numbers and SSNs would otherwise be taken for phones.
var defaultRules = []rule{
	{KindCreditCard, regexp.MustCompile(`\b[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}\b`), "[CREDIT_CARD]"},
	{KindSSN, regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`), "[SSN]"},
	{KindEmail, regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "[EMAIL]"},
	{KindPhone, regexp.MustCompile(`(?:\([0-9]{3}\)\s?|\b[0-9]{3}[-.])[0-9]{3}[-.][0-9]{4}\b`), "[PHONE]"},
	{KindPhone, regexp.MustCompile(`\+[0-9]{1,3}[-.\s]?[0-9]{6,14}\b`), "[PHONE]"},
	{KindIPAddress, regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`), "[IP_ADDRESS]"},
}

// Redaction records one masked span. The original text is not kept.
type Redaction struct {
	Kind     Kind
	Position int
}

// Result is the masked text and what was masked.
type Result struct {
	Text       string
	Redactions []Redaction
}

// Modified reports whether anything was masked.
func (r Result) Modified() bool { return len(r.Redactions) > 0 }

// Redactor masks identifiers of the enabled kinds. It is immutable and safe
// for concurrent use.
type Redactor struct {
	rules []rule
}

// Option configures a Redactor.
type Option func(*Redactor)

// WithKinds limits masking to the given kinds.
func WithKinds(kinds ...Kind) Option {
	return func(r *Redactor) {
		keep := make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			keep[k] = true
		}
		filtered := r.rules[:0:0]
		for _, ru := range r.rules {
			if keep[ru.kind] {
				filtered = append(filtered, ru)
			}
		}
		r.rules = filtered
	}
}

// WithPattern adds a custom rule. An invalid pattern is ignored.
func WithPattern(kind Kind, pattern, mask string) Option {
	return func(r *Redactor) {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return
		}
		r.rules = append(r.rules, rule{kind: kind, pattern: re, mask: mask})
	}
}

// NewRedactor returns a redactor for every built-in kind.
func NewRedactor(opts ...Option) *Redactor {
	r := &Redactor{rules: append([]rule(nil), defaultRules...)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Redact masks every match. A nil Redactor returns text unchanged.
func (r *Redactor) Redact(text string) Result {
	return r.RedactContext(context.Background(), text)
}

// RedactContext is Redact that stops early, returning what it has masked
// so far, once ctx is done.
func (r *Redactor) RedactContext(ctx context.Context, text string) Result {
	res := Result{Text: text}
	if r == nil || text == "" {
		return res
	}
	for _, ru := range r.rules {
		if ctx.Err() != nil {
			return res
		}
		matches := ru.pattern.FindAllStringIndex(res.Text, -1)
		// Back to front so earlier offsets stay valid.
		for i := len(matches) - 1; i >= 0; i-- {
			m := matches[i]
			res.Text = res.Text[:m[0]] + ru.mask + res.Text[m[1]:]
			res.Redactions = append(res.Redactions, Redaction{Kind: ru.kind, Position: m[0]})
		}
	}
	return res
}

// Kinds returns the distinct kinds in res, in first-seen order.
func (r Result) Kinds() []Kind {
	var out []Kind
	seen := make(map[Kind]bool)
	for _, red := range r.Redactions {
		if !seen[red.Kind] {
			seen[red.Kind] = true
			out = append(out, red.Kind)
		}
	}
	return out
}
