// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jllopis/healthdesk/pkg/llm"
)

// StubTool is a core.Tool whose behavior is a function. It records the
// decoded arguments of every call.
type StubTool struct {
	ToolName    string
	Description string
	Fn          func(ctx context.Context, args map[string]any) (any, error)

	mu    sync.Mutex
	calls []map[string]any
}

// NewStubTool returns a tool that always answers with output.
func NewStubTool(name, output string) *StubTool {
	return &StubTool{
		ToolName: name,
		Fn: func(context.Context, map[string]any) (any, error) {
			return output, nil
		},
	}
}

// Name implements core.Tool.
func (s *StubTool) Name() string { return s.ToolName }

// ToolDefinition describes the tool as taking a free-form object.
func (s *StubTool) ToolDefinition() llm.Tool {
	return llm.NewFunctionTool(s.ToolName, s.Description, map[string]any{"type": "object"})
}

// Call implements core.Tool.
func (s *StubTool) Call(ctx context.Context, input any) (any, error) {
	args := map[string]any{}
	switch v := input.(type) {
	case string:
		_ = json.Unmarshal([]byte(v), &args)
	case map[string]any:
		args = v
	}
	s.mu.Lock()
	s.calls = append(s.calls, args)
	s.mu.Unlock()
	if s.Fn == nil {
		return "", nil
	}
	return s.Fn(ctx, args)
}

// Calls returns the arguments of every call so far.
func (s *StubTool) Calls() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.calls))
	copy(out, s.calls)
	return out
}
