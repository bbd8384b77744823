// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span and metric attribute keys. gen_ai.* follow the OpenTelemetry GenAI
// conventions; the rest are healthdesk specific.
const (
	AttrAgentID        = "healthdesk.agent.id"
	AttrAgentRole      = "healthdesk.agent.role"
	AttrAgentModel     = "healthdesk.agent.model"
	AttrAgentRunID     = "healthdesk.agent.run_id"
	AttrAgentIteration = "healthdesk.agent.iteration"
	AttrAgentMaxIter   = "healthdesk.agent.max_iterations"

	AttrToolName       = "healthdesk.tool.name"
	AttrToolCallID     = "healthdesk.tool.call_id"
	AttrToolArgs       = "healthdesk.tool.arguments"
	AttrToolResult     = "healthdesk.tool.result"
	AttrToolDurationMs = "healthdesk.tool.duration_ms"
	AttrToolSuccess    = "healthdesk.tool.success"
	AttrToolsCount     = "healthdesk.tools.count"
	AttrToolsNames     = "healthdesk.tools.names"

	AttrDelegateName  = "healthdesk.delegate.name"
	AttrDelegateCount = "healthdesk.delegate.count"

	AttrTaskID   = "healthdesk.task.id"
	AttrTaskGoal = "healthdesk.task.goal"
	AttrTaskMode = "healthdesk.task.mode"

	AttrSessionID = "healthdesk.session.id"
	AttrArtifact  = "healthdesk.artifact.name"
	AttrFresh     = "healthdesk.artifact.fresh"

	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMMessages     = "gen_ai.request.messages"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"
	AttrLLMToolCalls    = "gen_ai.tool_calls"
)

const maxAttrLen = 500

// AgentAttributes returns common attributes for agent spans.
func AgentAttributes(agentID, role, model, runID string, maxIter int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrAgentRunID, runID),
	}
	if role != "" {
		attrs = append(attrs, attribute.String(AttrAgentRole, role))
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrAgentModel, model))
	}
	if maxIter > 0 {
		attrs = append(attrs, attribute.Int(AttrAgentMaxIter, maxIter))
	}
	return attrs
}

// ToolCallAttributes returns attributes for a tool call span.
func ToolCallAttributes(name, callID string, iteration int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.String(AttrToolCallID, callID),
		attribute.Int(AttrAgentIteration, iteration),
	}
}

// ToolOutcomeAttributes records how a tool call ended. Arguments and result
// are truncated.
func ToolOutcomeAttributes(args, result string, durationMs float64, success bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Float64(AttrToolDurationMs, durationMs),
		attribute.Bool(AttrToolSuccess, success),
	}
	if args != "" {
		attrs = append(attrs, attribute.String(AttrToolArgs, Truncate(args, maxAttrLen)))
	}
	if result != "" {
		attrs = append(attrs, attribute.String(AttrToolResult, Truncate(result, maxAttrLen)))
	}
	return attrs
}

// ToolsetAttributes describes the tools offered to a model.
func ToolsetAttributes(names []string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Int(AttrToolsCount, len(names))}
	if len(names) > 0 {
		attrs = append(attrs, attribute.StringSlice(AttrToolsNames, names))
	}
	return attrs
}

// LLMAttributes returns attributes for LLM call spans.
func LLMAttributes(model string, msgCount, toolCallCount int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrLLMModel, model),
		attribute.Int(AttrLLMMessages, msgCount),
	}
	if toolCallCount > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMToolCalls, toolCallCount))
	}
	return attrs
}

// LLMUsageAttributes returns token usage attributes.
func LLMUsageAttributes(inputTokens, outputTokens int) []attribute.KeyValue {
	if inputTokens <= 0 && outputTokens <= 0 {
		return nil
	}
	return []attribute.KeyValue{
		attribute.Int(AttrLLMTokensInput, inputTokens),
		attribute.Int(AttrLLMTokensOutput, outputTokens),
		attribute.Int(AttrLLMTokensTotal, inputTokens+outputTokens),
	}
}

// TaskAttributes returns attributes for a manager task.
func TaskAttributes(taskID, goal, mode string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if taskID != "" {
		attrs = append(attrs, attribute.String(AttrTaskID, taskID))
	}
	if goal != "" {
		attrs = append(attrs, attribute.String(AttrTaskGoal, Truncate(goal, 200)))
	}
	if mode != "" {
		attrs = append(attrs, attribute.String(AttrTaskMode, mode))
	}
	return attrs
}

// Truncate shortens s to at most n bytes plus an ellipsis, never splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
