// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/healthdesk/pkg/core"
	"github.com/jllopis/healthdesk/pkg/errors"
	"github.com/jllopis/healthdesk/pkg/llm"
	"github.com/jllopis/healthdesk/pkg/resilience"
	"github.com/jllopis/healthdesk/pkg/telemetry"
)

const finalAnswerMarker = "Final Answer:"

// Run executes task and returns the model's final answer.
//
// Errors: LLM_ERROR when the model fails after retries, TOOL_FAILURE when a
// tool fails in a way the model cannot recover from, STEP_LIMIT when the
// budget runs out, EMPTY_RESULT when the final answer is blank.
func (a *Agent) Run(ctx context.Context, task string) (string, error) {
	ctx, runID := core.EnsureRunID(ctx)
	ctx, span := a.tracer.Start(ctx, "Agent.Run")
	defer span.End()
	span.SetAttributes(telemetry.AgentAttributes(a.id, a.role, a.model, runID, a.maxIterations)...)
	span.SetAttributes(telemetry.ToolsetAttributes(a.ToolNames())...)

	out, err := a.run(ctx, task)
	a.metrics.RecordRun(ctx, a.id, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.metrics.RecordError(ctx, err, a.id)
		a.log.ErrorContext(ctx, "agent.run.error",
			slog.String("agent_id", a.id),
			slog.String("error", err.Error()),
			slog.String("error_code", string(errorCode(err))),
		)
		a.emitEvent(ctx, core.EventAgentError, map[string]any{"error": err.Error()})
		return "", err
	}
	a.log.InfoContext(ctx, "agent.run.complete", slog.String("agent_id", a.id), slog.Int("answer_len", len(out)))
	a.emitEvent(ctx, core.EventAgentTaskCompleted, map[string]any{"result": out})
	return out, nil
}

func (a *Agent) run(ctx context.Context, task string) (string, error) {
	if strings.TrimSpace(task) == "" {
		return "", NewInvalidInputError("agent " + a.id + ": task is empty")
	}
	a.log.InfoContext(ctx, "agent.run.start", slog.String("agent_id", a.id), slog.Int("max_iterations", a.maxIterations))
	a.emitEvent(ctx, core.EventAgentTaskStarted, map[string]any{"task": task})

	messages := make([]llm.Message, 0, 2+2*a.maxIterations)
	if system := a.systemPrompt(); system != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: task})

	for step := 1; step <= a.maxIterations; step++ {
		if err := ctx.Err(); err != nil {
			return "", errors.New(errors.CodeContextLost, "agent "+a.id+" canceled", err)
		}

		resp, err := a.chat(ctx, messages, step)
		if err != nil {
			return "", WrapLLMError(err, a.model)
		}

		if len(resp.ToolCalls) == 0 {
			answer := finalAnswer(resp.Content)
			if answer == "" {
				return "", NewEmptyResultError(a.id)
			}
			return answer, nil
		}

		if thought := strings.TrimSpace(resp.Content); thought != "" {
			a.emitEvent(ctx, core.EventAgentThinking, map[string]any{"step": step, "thought": thought})
		}
		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			observation, err := a.callTool(ctx, call, step)
			if err != nil {
				return "", err
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    observation,
				ToolCallID: call.ID,
			})
		}
	}
	return "", WrapStepLimitError(a.id, a.maxIterations)
}

func (a *Agent) systemPrompt() string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(a.instructions); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(a.role); s != "" {
		parts = append(parts, "Role: "+s)
	}
	return strings.Join(parts, "\n\n")
}

func (a *Agent) chat(ctx context.Context, messages []llm.Message, step int) (*llm.ChatResponse, error) {
	ctx, span := a.tracer.Start(ctx, "Agent.LLM.Chat")
	defer span.End()
	span.SetAttributes(telemetry.LLMAttributes(a.model, len(messages), 0)...)

	req := llm.ChatRequest{
		Model:       a.model,
		Messages:    append([]llm.Message(nil), messages...),
		Tools:       a.toolDefs,
		Temperature: a.temperature,
	}

	start := time.Now()
	resp, err := resilience.Retry(ctx, a.retry, func(ctx context.Context) (*llm.ChatResponse, error) {
		return a.provider.Chat(ctx, req)
	})
	a.metrics.RecordLLMLatency(ctx, a.model, float64(time.Since(start).Microseconds())/1000)
	if err == nil && resp == nil {
		err = fmt.Errorf("provider returned no response")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.log.WarnContext(ctx, "agent.llm.error",
			slog.String("agent_id", a.id),
			slog.Int("step", step),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	span.SetAttributes(telemetry.LLMAttributes(a.model, len(messages), len(resp.ToolCalls))...)
	span.SetAttributes(telemetry.LLMUsageAttributes(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)...)
	a.log.DebugContext(ctx, "agent.llm.response",
		slog.String("agent_id", a.id),
		slog.Int("step", step),
		slog.Int("tool_calls", len(resp.ToolCalls)),
	)
	return resp, nil
}

// callTool runs one tool call and returns the observation for the model.
// A non-nil error ends the run.
func (a *Agent) callTool(ctx context.Context, call llm.ToolCall, step int) (string, error) {
	name := call.Function.Name
	ctx, span := a.tracer.Start(ctx, "Agent.Tool.Call", trace.WithAttributes(telemetry.ToolCallAttributes(name, call.ID, step)...))
	defer span.End()

	a.emitEvent(ctx, core.EventAgentToolCall, map[string]any{
		"step":      step,
		"tool":      name,
		"arguments": call.Function.Arguments,
	})

	tool, err := a.resolver(name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", WrapToolError(err, name, call.ID)
	}

	start := time.Now()
	output, err := tool.Call(ctx, call.Function.Arguments)
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	a.metrics.RecordToolLatency(ctx, name, elapsed, err == nil)

	if err != nil {
		span.SetAttributes(telemetry.ToolOutcomeAttributes(call.Function.Arguments, "", elapsed, false)...)
		span.RecordError(err)
		if a.observeToolErrors && errors.IsRecoverable(err) {
			a.metrics.RecordRecovery(ctx, errorCode(err))
			a.log.WarnContext(ctx, "agent.tool.observed_error",
				slog.String("agent_id", a.id),
				slog.String("tool", name),
				slog.String("error", err.Error()),
			)
			return "Error: " + err.Error(), nil
		}
		span.SetStatus(codes.Error, err.Error())
		a.log.ErrorContext(ctx, "agent.tool.error",
			slog.String("agent_id", a.id),
			slog.String("tool", name),
			slog.String("error", err.Error()),
			slog.String("error_code", string(errorCode(err))),
		)
		return "", WrapToolError(err, name, call.ID)
	}

	observation := formatOutput(output)
	span.SetAttributes(telemetry.ToolOutcomeAttributes(call.Function.Arguments, observation, elapsed, true)...)
	a.log.InfoContext(ctx, "agent.tool.call",
		slog.String("agent_id", a.id),
		slog.String("tool", name),
		slog.Float64("duration_ms", elapsed),
	)
	return observation, nil
}

// finalAnswer strips an optional "Final Answer:" lead-in.
func finalAnswer(content string) string {
	if idx := strings.LastIndex(content, finalAnswerMarker); idx >= 0 {
		content = content[idx+len(finalAnswerMarker):]
	}
	return strings.TrimSpace(content)
}

func formatOutput(output any) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}
