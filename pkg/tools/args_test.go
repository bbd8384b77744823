// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"testing"

	"github.com/jllopis/healthdesk/pkg/errors"
)

func TestDecodeArgs(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		wantLen int
		wantErr bool
	}{
		{"nil", nil, 0, false},
		{"empty string", "  ", 0, false},
		{"json string", `{"query":"resting heart rate","count":3}`, 2, false},
		{"bytes", []byte(`{"url":"https://example.com"}`), 1, false},
		{"map", map[string]any{"a": 1}, 1, false},
		{"bad json", "{", 0, true},
		{"array", "[1,2]", 0, true},
		{"number", 42, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := DecodeArgs(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("wantErr=%v got %v", tt.wantErr, err)
			}
			if err != nil {
				if !errors.HasCode(err, errors.CodeInvalidInput) || !errors.IsRecoverable(err) {
					t.Fatalf("expected recoverable INVALID_INPUT, got %v", err)
				}
				return
			}
			if len(args) != tt.wantLen {
				t.Fatalf("expected %d args, got %d", tt.wantLen, len(args))
			}
		})
	}
}

func TestArgsAccessors(t *testing.T) {
	args, err := DecodeArgs(`{"query":" sleep ","count":3,"n":"x","blank":""}`)
	if err != nil {
		t.Fatal(err)
	}
	if q, err := args.String("query"); err != nil || q != "sleep" {
		t.Fatalf("String: %q %v", q, err)
	}
	for _, key := range []string{"missing", "count", "blank"} {
		if _, err := args.String(key); err == nil {
			t.Errorf("String(%q): expected error", key)
		}
	}
	if args.Int("count", 5) != 3 || args.Int("n", 5) != 5 || args.Int("missing", 7) != 7 {
		t.Fatalf("Int accessor")
	}
	if args.OptionalString("blank", "def") != "def" || args.OptionalString("n", "def") != "x" {
		t.Fatalf("OptionalString accessor")
	}
}
