// SPDX-License-Identifier: Apache-2.0
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	herrors "github.com/jllopis/healthdesk/pkg/errors"
	"github.com/jllopis/healthdesk/pkg/llm"
)

type stubCaller struct {
	lastName string
	lastArgs map[string]interface{}
	result   *mcp.CallToolResult
	err      error
}

func (s *stubCaller) CallTool(_ context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	s.lastName = name
	s.lastArgs = args
	return s.result, s.err
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}}}
}

func TestToolAdapter_Call_ParsesJSONInput(t *testing.T) {
	tool := mcp.Tool{
		Name:        "execute_sql",
		InputSchema: mcp.ToolInputSchema{Type: "object", Required: []string{"query"}},
	}
	caller := &stubCaller{result: textResult("avg_hr=68")}

	adapter, err := NewToolAdapter(tool, caller)
	if err != nil {
		t.Fatalf("NewToolAdapter error: %v", err)
	}
	output, err := adapter.Call(context.Background(), `{"query":"SELECT 1"}`)
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if output != "avg_hr=68" {
		t.Fatalf("unexpected output %v", output)
	}
	if caller.lastName != "execute_sql" || caller.lastArgs["query"] != "SELECT 1" {
		t.Fatalf("unexpected call %q %v", caller.lastName, caller.lastArgs)
	}
}

func TestToolAdapter_Call_PlainStringBecomesInput(t *testing.T) {
	adapter, _ := NewToolAdapter(mcp.Tool{Name: "echo"}, &stubCaller{result: textResult("ok")})
	if _, err := adapter.Call(context.Background(), "hello"); err != nil {
		t.Fatalf("Call error: %v", err)
	}
	caller := adapter.caller.(*stubCaller)
	if caller.lastArgs["input"] != "hello" {
		t.Fatalf("expected input arg, got %v", caller.lastArgs)
	}
}

func TestToolAdapter_Call_MissingRequiredIsRecoverable(t *testing.T) {
	tool := mcp.Tool{
		Name:        "execute_sql",
		InputSchema: mcp.ToolInputSchema{Type: "object", Required: []string{"query"}},
	}
	adapter, _ := NewToolAdapter(tool, &stubCaller{result: textResult("ok")})

	_, err := adapter.Call(context.Background(), map[string]interface{}{"sql": "SELECT 1"})
	if !herrors.HasCode(err, herrors.CodeInvalidInput) || !herrors.IsRecoverable(err) {
		t.Fatalf("expected recoverable INVALID_INPUT, got %v", err)
	}
}

func TestToolAdapter_Call_TransportFailureIsFatal(t *testing.T) {
	adapter, _ := NewToolAdapter(mcp.Tool{Name: "execute_sql"}, &stubCaller{err: errors.New("broken pipe")})

	_, err := adapter.Call(context.Background(), nil)
	if !herrors.HasCode(err, herrors.CodeTransport) {
		t.Fatalf("expected TRANSPORT_ERROR, got %v", err)
	}
	if herrors.IsRecoverable(err) {
		t.Fatalf("transport failures must not be recoverable")
	}
}

func TestToolAdapter_Call_ReturnsStructuredContent(t *testing.T) {
	caller := &stubCaller{result: &mcp.CallToolResult{StructuredContent: map[string]interface{}{"rows": 3.0}}}
	adapter, _ := NewToolAdapter(mcp.Tool{Name: "structured"}, caller)

	output, err := adapter.Call(context.Background(), nil)
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	payload, ok := output.(map[string]interface{})
	if !ok || payload["rows"] != 3.0 {
		t.Fatalf("expected structured payload, got %v", output)
	}
}

func TestToolDefinition_UsesRawSchema(t *testing.T) {
	raw := json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}}}`)
	def := ToolDefinition(mcp.Tool{Name: "execute_sql", Description: "Run SQL", RawInputSchema: raw})
	if def.Type != llm.ToolTypeFunction {
		t.Fatalf("expected function tool, got %v", def.Type)
	}
	rawParams, ok := def.Function.Parameters.(json.RawMessage)
	if !ok || string(rawParams) != string(raw) {
		t.Fatalf("unexpected parameters %v", def.Function.Parameters)
	}
}

func TestNewToolAdapter_Validation(t *testing.T) {
	if _, err := NewToolAdapter(mcp.Tool{}, &stubCaller{}); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if _, err := NewToolAdapter(mcp.Tool{Name: "x"}, nil); err == nil {
		t.Fatalf("expected error for nil caller")
	}
}
