// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"errors"
	"testing"

	"github.com/jllopis/healthdesk/pkg/llm"
)

func TestScenarioProviderReplaysInOrder(t *testing.T) {
	p := NewScenarioProvider().
		AddToolCall("execute_sql", map[string]any{"query": "SELECT 1"}).
		AddResponse("done")

	first, err := p.Chat(context.Background(), llm.ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if len(first.ToolCalls) != 1 || first.ToolCalls[0].Function.Arguments != `{"query":"SELECT 1"}` {
		t.Fatalf("unexpected tool calls %+v", first.ToolCalls)
	}
	if first.ToolCalls[0].ID != "call_1" {
		t.Fatalf("unexpected id %q", first.ToolCalls[0].ID)
	}

	second, err := p.Chat(context.Background(), llm.ChatRequest{})
	if err != nil || second.Content != "done" {
		t.Fatalf("second call: %+v %v", second, err)
	}

	if _, err := p.Chat(context.Background(), llm.ChatRequest{}); err == nil {
		t.Fatalf("expected error once the script is exhausted")
	}
	if p.CallCount() != 3 || p.Requests()[0].Model != "m" {
		t.Fatalf("requests not captured")
	}
}

func TestScenarioProviderErrors(t *testing.T) {
	boom := errors.New("overloaded")
	p := NewScenarioProvider().AddErrorResponse(boom).WithDefaultError(errors.New("default"))
	if _, err := p.Chat(context.Background(), llm.ChatRequest{}); err != boom {
		t.Fatalf("expected scripted error, got %v", err)
	}
	if _, err := p.Chat(context.Background(), llm.ChatRequest{}); err == nil || err.Error() != "default" {
		t.Fatalf("expected default error, got %v", err)
	}
}

func TestStubToolRecordsCalls(t *testing.T) {
	tool := NewStubTool("execute_sql", "avg_hr=68")
	out, err := tool.Call(context.Background(), `{"query":"SELECT avg(value)"}`)
	if err != nil || out != "avg_hr=68" {
		t.Fatalf("unexpected %v %v", out, err)
	}
	calls := tool.Calls()
	if len(calls) != 1 || calls[0]["query"] != "SELECT avg(value)" {
		t.Fatalf("unexpected calls %+v", calls)
	}
	if tool.ToolDefinition().Function.Name != "execute_sql" {
		t.Fatalf("unexpected definition")
	}
}
