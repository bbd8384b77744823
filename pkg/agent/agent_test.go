// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/jllopis/healthdesk/pkg/core"
	"github.com/jllopis/healthdesk/pkg/errors"
	"github.com/jllopis/healthdesk/pkg/llm"
	"github.com/jllopis/healthdesk/pkg/resilience"
	htesting "github.com/jllopis/healthdesk/pkg/testing"
)

func newTestAgent(t *testing.T, p llm.Provider, opts ...Option) *Agent {
	t.Helper()
	opts = append([]Option{WithRetry(resilience.NoRetry())}, opts...)
	a, err := New("sql_query_agent_health", p, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestRunToolLoop(t *testing.T) {
	sql := htesting.NewStubTool("execute_sql", "avg_hr=68")
	p := htesting.NewScenarioProvider().
		AddToolCall("execute_sql", map[string]any{"query": "SELECT avg(value) FROM heart_rate"}).
		AddResponse("Final Answer: Your average heart rate is 68 bpm.")

	a := newTestAgent(t, p,
		WithInstructions("You query the health database."),
		WithRole("SQL analyst"),
		WithTools(sql),
	)

	out, err := a.Run(context.Background(), "What is my average heart rate?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "Your average heart rate is 68 bpm." {
		t.Fatalf("unexpected answer %q", out)
	}
	if len(sql.Calls()) != 1 {
		t.Fatalf("expected one tool call, got %d", len(sql.Calls()))
	}

	reqs := p.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(reqs))
	}
	first := reqs[0]
	if first.Messages[0].Role != llm.RoleSystem || !strings.Contains(first.Messages[0].Content, "Role: SQL analyst") {
		t.Fatalf("unexpected system message %+v", first.Messages[0])
	}
	if len(first.Tools) != 1 || first.Tools[0].Function.Name != "execute_sql" {
		t.Fatalf("unexpected tool descriptors %+v", first.Tools)
	}
	last := reqs[1].Messages[len(reqs[1].Messages)-1]
	if last.Role != llm.RoleTool || last.Content != "avg_hr=68" || last.ToolCallID != "call_1" {
		t.Fatalf("unexpected tool message %+v", last)
	}
}

func TestFinalAnswer(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"  Final Answer:  68 bpm ", "68 bpm"},
		{"Thought: x\nFinal Answer: draft\nFinal Answer: real", "real"},
		{"Final Answer:", ""},
	}
	for _, tt := range tests {
		if got := finalAnswer(tt.in); got != tt.want {
			t.Errorf("finalAnswer(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRunStepLimit(t *testing.T) {
	p := htesting.NewScenarioProvider().WithChatFunc(func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{ToolCalls: []llm.ToolCall{
			htesting.NewToolCall("web_search").WithID("c").WithArg("query", "resting heart rate").Build(),
		}}, nil
	})
	a := newTestAgent(t, p, WithTools(htesting.NewStubTool("web_search", "nothing useful")), WithMaxIterations(3))

	_, err := a.Run(context.Background(), "search")
	if !errors.HasCode(err, errors.CodeStepLimit) {
		t.Fatalf("expected STEP_LIMIT, got %v", err)
	}
	if p.CallCount() != 3 {
		t.Fatalf("expected 3 model calls, got %d", p.CallCount())
	}
}

func TestRunEmptyResult(t *testing.T) {
	p := htesting.NewScenarioProvider().AddResponse("Final Answer:   ")
	a := newTestAgent(t, p)
	_, err := a.Run(context.Background(), "anything")
	if !errors.HasCode(err, errors.CodeEmptyResult) {
		t.Fatalf("expected EMPTY_RESULT, got %v", err)
	}
}

func TestRunEmptyTask(t *testing.T) {
	a := newTestAgent(t, htesting.NewScenarioProvider())
	_, err := a.Run(context.Background(), "   ")
	if !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestRunRecoverableToolErrorObserved(t *testing.T) {
	calls := 0
	sql := &htesting.StubTool{
		ToolName: "execute_sql",
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			calls++
			if calls == 1 {
				return nil, errors.New(errors.CodeToolFailure, "no such column: bpm", nil).WithRecoverable(true)
			}
			return "avg_hr=68", nil
		},
	}
	p := htesting.NewScenarioProvider().
		AddToolCall("execute_sql", map[string]any{"query": "SELECT bpm"}).
		AddToolCall("execute_sql", map[string]any{"query": "SELECT value"}).
		AddResponse("68")

	a := newTestAgent(t, p, WithTools(sql), WithToolErrorsAsObservations(true))
	out, err := a.Run(context.Background(), "heart rate")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "68" {
		t.Fatalf("unexpected answer %q", out)
	}
	obs := p.Requests()[1].Messages
	if got := obs[len(obs)-1].Content; !strings.HasPrefix(got, "Error: ") || !strings.Contains(got, "no such column") {
		t.Fatalf("expected error observation, got %q", got)
	}
}

func TestRunToolErrorFatal(t *testing.T) {
	transport := errors.New(errors.CodeTransport, "connection reset", nil)
	tests := []struct {
		name    string
		observe bool
		err     error
	}{
		{"recoverable without observation", false, errors.New(errors.CodeToolFailure, "bad sql", nil).WithRecoverable(true)},
		{"transport with observation", true, transport},
		{"plain error with observation", true, stderrors.New("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := &htesting.StubTool{
				ToolName: "execute_sql",
				Fn: func(context.Context, map[string]any) (any, error) {
					return nil, tt.err
				},
			}
			p := htesting.NewScenarioProvider().
				AddToolCall("execute_sql", nil).
				AddResponse("never reached")
			a := newTestAgent(t, p, WithTools(tool), WithToolErrorsAsObservations(tt.observe))

			_, err := a.Run(context.Background(), "query")
			if !errors.HasCode(err, errors.CodeToolFailure) {
				t.Fatalf("expected TOOL_FAILURE, got %v", err)
			}
			if !stderrors.Is(err, tt.err) {
				t.Fatalf("expected cause in chain, got %v", err)
			}
			if p.CallCount() != 1 {
				t.Fatalf("run should stop after the failing tool")
			}
		})
	}
}

func TestRunUnknownTool(t *testing.T) {
	p := htesting.NewScenarioProvider().AddToolCall("delete_everything", nil)
	a := newTestAgent(t, p, WithToolErrorsAsObservations(true))
	_, err := a.Run(context.Background(), "query")
	if !errors.HasCode(err, errors.CodeToolFailure) || !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected TOOL_FAILURE wrapping NOT_FOUND, got %v", err)
	}
}

func TestRunLLMError(t *testing.T) {
	p := htesting.NewScenarioProvider().AddErrorResponse(stderrors.New("503 overloaded"))
	a := newTestAgent(t, p)
	_, err := a.Run(context.Background(), "query")
	if !errors.HasCode(err, errors.CodeLLMError) {
		t.Fatalf("expected LLM_ERROR, got %v", err)
	}
	if errors.IsRecoverable(err) {
		t.Fatalf("LLM errors end the run")
	}
}

func TestRunRetriesModel(t *testing.T) {
	p := htesting.NewScenarioProvider().
		AddErrorResponse(stderrors.New("transient")).
		AddResponse("ok")
	a := newTestAgent(t, p, WithRetry(resilience.DefaultRetryConfig().WithInitialDelay(0)))
	out, err := a.Run(context.Background(), "query")
	if err != nil || out != "ok" {
		t.Fatalf("expected retry to succeed, got %q %v", out, err)
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := newTestAgent(t, htesting.NewScenarioProvider().AddResponse("late"))
	_, err := a.Run(ctx, "query")
	if !errors.HasCode(err, errors.CodeContextLost) {
		t.Fatalf("expected CONTEXT_LOST, got %v", err)
	}
}

func TestNewValidation(t *testing.T) {
	p := htesting.NewScenarioProvider()
	if _, err := New("a", p, WithTools(htesting.NewStubTool("x", ""), htesting.NewStubTool("x", ""))); !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected duplicate tools to be rejected, got %v", err)
	}
	if _, err := New("", p); err == nil {
		t.Fatalf("expected missing id to be rejected")
	}
	if _, err := New("a", nil); err == nil {
		t.Fatalf("expected missing provider to be rejected")
	}
	if _, err := New("a", p, WithMaxIterations(0)); err == nil {
		t.Fatalf("expected zero step budget to be rejected")
	}
}

func TestDefaultToolDefinition(t *testing.T) {
	tool := core.Tool(plainTool{})
	a := newTestAgent(t, htesting.NewScenarioProvider(), WithTools(tool))
	if names := a.ToolNames(); len(names) != 1 || names[0] != "plain" {
		t.Fatalf("unexpected names %v", names)
	}
	params, ok := a.toolDefs[0].Function.Parameters.(map[string]any)
	if !ok || params["required"].([]string)[0] != "input" {
		t.Fatalf("unexpected default schema %+v", a.toolDefs[0].Function.Parameters)
	}
}

func TestRunEmitsEvents(t *testing.T) {
	configured := &core.RecordingEmitter{}
	fromCtx := &core.RecordingEmitter{}
	p := htesting.NewScenarioProvider().
		AddScriptedResponse(htesting.ScriptedResponse{
			Content:   "I should query the heart rate table.",
			ToolCalls: []llm.ToolCall{htesting.NewToolCall("execute_sql").WithID("c1").Build()},
		}).
		AddResponse("68")
	a := newTestAgent(t, p, WithTools(htesting.NewStubTool("execute_sql", "avg_hr=68")), WithEventEmitter(configured))

	ctx := core.WithEventEmitter(core.WithRunID(context.Background(), "run-1"), fromCtx)
	if _, err := a.Run(ctx, "heart rate"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []core.EventType{
		core.EventAgentTaskStarted,
		core.EventAgentThinking,
		core.EventAgentToolCall,
		core.EventAgentTaskCompleted,
	}
	for _, rec := range []*core.RecordingEmitter{configured, fromCtx} {
		events := rec.Events()
		if len(events) != len(want) {
			t.Fatalf("expected %d events, got %d", len(want), len(events))
		}
		for i, ev := range events {
			if ev.Type != want[i] {
				t.Errorf("event %d: got %s want %s", i, ev.Type, want[i])
			}
			if ev.TaskID != "run-1" {
				t.Errorf("event %d: task id %q", i, ev.TaskID)
			}
		}
	}
}

type plainTool struct{}

func (plainTool) Name() string { return "plain" }
func (plainTool) Call(context.Context, any) (any, error) {
	return "ok", nil
}
