// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package tools holds the local tools the sub-agents call: web search,
// page reading and chart rendering live in subpackages.
package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jllopis/healthdesk/pkg/errors"
)

// Args are decoded tool-call arguments.
type Args map[string]any

// DecodeArgs accepts the forms a tool call input arrives in: a JSON object
// string, raw bytes or an already decoded map.
func DecodeArgs(input any) (Args, error) {
	var raw []byte
	switch v := input.(type) {
	case nil:
		return Args{}, nil
	case Args:
		return v, nil
	case map[string]any:
		return Args(v), nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	case string:
		if strings.TrimSpace(v) == "" {
			return Args{}, nil
		}
		raw = []byte(v)
	default:
		return nil, InvalidArgs("unsupported argument type %T", input)
	}
	out := Args{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, InvalidArgs("arguments are not a JSON object: %v", err)
	}
	return out, nil
}

// String returns a required non-empty string argument.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", InvalidArgs("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", InvalidArgs("argument %q must be a string", key)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", InvalidArgs("argument %q is empty", key)
	}
	return s, nil
}

// OptionalString returns the string argument or def.
func (a Args) OptionalString(key, def string) string {
	if s, ok := a[key].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return def
}

// Int returns a numeric argument or def. JSON numbers decode as float64.
func (a Args) Int(key string, def int) int {
	switch v := a[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

// InvalidArgs is a recoverable INVALID_INPUT error the model can correct.
func InvalidArgs(format string, args ...any) *errors.Error {
	return errors.New(errors.CodeInvalidInput, fmt.Sprintf(format, args...), nil).
		WithRecoverable(true)
}

// Failure is a recoverable TOOL_FAILURE: the model sees it and may try
// something else.
func Failure(tool string, err error) *errors.Error {
	return errors.New(errors.CodeToolFailure, tool+" failed", err).
		WithContext("tool", tool).
		WithRecoverable(true)
}
