// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package healthdb

import (
	"strings"

	"github.com/jllopis/healthdesk/pkg/errors"
)

var readKeywords = map[string]bool{"select": true, "with": true, "explain": true}

// CheckReadOnly accepts a single SELECT, WITH or EXPLAIN statement and
// returns it without comments or trailing semicolons.
func CheckReadOnly(stmt string) (string, error) {
	body := strings.TrimSpace(stripComments(stmt))
	for strings.HasSuffix(body, ";") {
		body = strings.TrimSpace(strings.TrimSuffix(body, ";"))
	}
	if body == "" {
		return "", errors.New(errors.CodeInvalidInput, "empty query", nil)
	}
	if hasStatementBreak(body) {
		return "", errors.New(errors.CodeInvalidInput, "only one statement per query is allowed", nil)
	}
	words := strings.FieldsFunc(body, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t' || r == '\r' || r == '('
	})
	first := ""
	if len(words) > 0 {
		first = strings.ToLower(words[0])
	}
	if !readKeywords[first] {
		return "", errors.New(errors.CodeInvalidInput, "only read-only SELECT queries are allowed", nil).
			WithContext("statement", first)
	}
	return body, nil
}

// stripComments removes -- and /* */ comments outside quoted text.
func stripComments(s string) string {
	var b strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			b.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
			b.WriteByte(c)
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			b.WriteByte('\n')
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				i = len(s)
			} else {
				i += end + 3
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func hasStatementBreak(s string) bool {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == ';':
			return true
		}
	}
	return false
}
