// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jllopis/healthdesk/pkg/llm"
)

func TestNewProvider(t *testing.T) {
	if p := New(); p.model != DefaultModel {
		t.Errorf("expected model %s, got %s", DefaultModel, p.model)
	}
	if p := New(WithModel("gpt-4.1")); p.model != "gpt-4.1" {
		t.Errorf("expected model gpt-4.1, got %s", p.model)
	}
}

func TestChatAgainstStubServer(t *testing.T) {
	var body struct {
		Model    string           `json:"model"`
		Messages []map[string]any `json:"messages"`
		Tools    []map[string]any `json:"tools"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-5-mini",
			"choices":[{"index":0,"finish_reason":"tool_calls","message":{
				"role":"assistant","content":"",
				"tool_calls":[{"id":"call_1","type":"function","function":{"name":"web_search","arguments":"{\"query\":\"sleep duration adults\"}"}}]
			}}],
			"usage":{"prompt_tokens":4,"completion_tokens":6,"total_tokens":10}
		}`))
	}))
	defer srv.Close()

	p := New(WithAPIKey("test-key"), WithBaseURL(srv.URL+"/"))
	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "sys"},
			{Role: llm.RoleUser, Content: "How well am I sleeping?"},
			{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "call_0", Type: llm.ToolTypeFunction, Function: llm.FunctionCall{Name: "web_search", Arguments: `{"query":"x"}`}}}},
			{Role: llm.RoleTool, ToolCallID: "call_0", Content: "no results"},
		},
		Tools: []llm.Tool{llm.NewFunctionTool("web_search", "Search the web", map[string]any{"type": "object"})},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ID != "call_1" {
		t.Fatalf("unexpected tool calls %+v", resp.ToolCalls)
	}
	if resp.ToolCalls[0].Function.Arguments != `{"query":"sleep duration adults"}` {
		t.Errorf("unexpected arguments %s", resp.ToolCalls[0].Function.Arguments)
	}
	if resp.Usage.TotalTokens != 10 {
		t.Errorf("expected 10 tokens, got %d", resp.Usage.TotalTokens)
	}
	if body.Model != DefaultModel {
		t.Errorf("expected default model, got %s", body.Model)
	}
	if len(body.Messages) != 4 || body.Messages[3]["role"] != "tool" {
		t.Errorf("unexpected request messages %+v", body.Messages)
	}
	if len(body.Tools) != 1 {
		t.Errorf("expected one tool, got %d", len(body.Tools))
	}
}
