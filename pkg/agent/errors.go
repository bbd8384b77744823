// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	stderrors "errors"

	"github.com/jllopis/healthdesk/pkg/errors"
)

// WrapLLMError wraps a model invocation failure. The run is over once retries
// are exhausted, so the result is not recoverable.
func WrapLLMError(err error, model string) *errors.Error {
	if err == nil {
		return nil
	}
	return errors.New(errors.CodeLLMError, "LLM call failed", err).
		WithContext("model", model).
		WithAttribute("llm.model", model).
		WithRecoverable(false)
}

// WrapToolError wraps a tool failure that aborts the run.
func WrapToolError(err error, toolName, toolCallID string) *errors.Error {
	if err == nil {
		return nil
	}
	return errors.New(errors.CodeToolFailure, "tool execution failed: "+toolName, err).
		WithContext("tool_name", toolName).
		WithContext("tool_call_id", toolCallID).
		WithAttribute("tool.name", toolName).
		WithRecoverable(false)
}

// WrapStepLimitError reports a run that used all its steps without answering.
func WrapStepLimitError(agentID string, maxIterations int) *errors.Error {
	return errors.New(errors.CodeStepLimit, "agent "+agentID+" reached its step limit without a final answer", nil).
		WithContext("agent_id", agentID).
		WithContext("max_iterations", maxIterations).
		WithRecoverable(false)
}

// NewEmptyResultError reports a final answer with no content.
func NewEmptyResultError(agentID string) *errors.Error {
	return errors.New(errors.CodeEmptyResult, "agent "+agentID+" returned an empty answer", nil).
		WithContext("agent_id", agentID)
}

// NewInvalidInputError creates a new invalid input error.
func NewInvalidInputError(msg string) *errors.Error {
	return errors.New(errors.CodeInvalidInput, msg, nil).
		WithRecoverable(false)
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(resource, name string) *errors.Error {
	return errors.New(errors.CodeNotFound, resource+" not found: "+name, nil).
		WithContext("resource", resource).
		WithContext("name", name).
		WithRecoverable(false)
}

// errorCode returns the code of the outermost typed error, or INTERNAL_ERROR.
func errorCode(err error) errors.ErrorCode {
	var he *errors.Error
	if stderrors.As(err, &he) {
		return he.Code
	}
	return errors.CodeInternal
}
