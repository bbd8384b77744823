// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package delegate

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jllopis/healthdesk/pkg/core"
	"github.com/jllopis/healthdesk/pkg/errors"
	"github.com/jllopis/healthdesk/pkg/llm"
	"github.com/jllopis/healthdesk/pkg/telemetry"
	"github.com/jllopis/healthdesk/pkg/tools"
)

// TaskArg is the only argument of a delegate tool.
const TaskArg = "task"

// Tool exposes a delegate to the manager's model as a function tool taking
// one self-contained sub-task.
type Tool struct {
	delegate Delegate
	metrics  *telemetry.Metrics
	log      *slog.Logger
}

// NewTool wraps d. metrics may be nil.
func NewTool(d Delegate, metrics *telemetry.Metrics, log *slog.Logger) *Tool {
	if log == nil {
		log = slog.Default()
	}
	return &Tool{delegate: d, metrics: metrics, log: log}
}

// Tools wraps every delegate of r in registration order.
func Tools(r *Registry, metrics *telemetry.Metrics, log *slog.Logger) []*Tool {
	out := make([]*Tool, 0, r.Len())
	for _, d := range r.Delegates() {
		out = append(out, NewTool(d, metrics, log))
	}
	return out
}

// Name implements core.Tool.
func (t *Tool) Name() string { return t.delegate.Name }

// ToolDefinition describes the delegate to the model.
func (t *Tool) ToolDefinition() llm.Tool {
	return llm.NewFunctionTool(t.delegate.Name, t.delegate.Description, map[string]any{
		"type": "object",
		"properties": map[string]any{
			TaskArg: map[string]any{
				"type":        "string",
				"description": "A self-contained sub-task for " + t.delegate.Name + ", with all the context it needs.",
			},
		},
		"required": []string{TaskArg},
	})
}

// Call runs the delegate. Any delegate failure is returned as is so the
// manager can abort with the cause intact.
func (t *Tool) Call(ctx context.Context, input any) (any, error) {
	task, err := parseTask(input)
	if err != nil {
		return nil, err.WithContext("delegate", t.delegate.Name)
	}

	ctx, span := otel.Tracer("healthdesk/manager").Start(ctx, "Manager.Delegate")
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrDelegateName, t.delegate.Name),
		attribute.String(telemetry.AttrTaskGoal, telemetry.Truncate(task, 256)),
	)

	runID, _ := core.RunID(ctx)
	event := core.NewEvent(core.EventAgentDelegation, t.delegate.Name, runID, map[string]any{
		"delegate": t.delegate.Name,
		"task":     task,
	})
	if em, ok := core.EventEmitterFromContext(ctx); ok {
		em.Emit(ctx, event)
	}

	t.log.InfoContext(ctx, "manager.delegate.invoke",
		slog.String("delegate", t.delegate.Name),
		slog.Int("task_len", len(task)),
	)
	start := time.Now()
	out, runErr := t.delegate.Runner.Run(ctx, task)
	t.metrics.RecordDelegation(ctx, t.delegate.Name, runErr)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		t.log.ErrorContext(ctx, "manager.delegate.error",
			slog.String("delegate", t.delegate.Name),
			slog.String("error", runErr.Error()),
		)
		return nil, runErr
	}
	t.log.InfoContext(ctx, "manager.delegate.complete",
		slog.String("delegate", t.delegate.Name),
		slog.Duration("duration", time.Since(start)),
	)
	return out, nil
}

// parseTask reads the task argument. Bad arguments are recoverable
// INVALID_INPUT like any other tool's; the manager runs with tool errors as
// observations off, so there they still end the run.
func parseTask(input any) (string, *errors.Error) {
	var args map[string]any
	switch v := input.(type) {
	case map[string]any:
		args = v
	case string:
		if strings.TrimSpace(v) == "" {
			break
		}
		if err := json.Unmarshal([]byte(v), &args); err != nil {
			return "", errors.New(errors.CodeInvalidInput, "delegate arguments are not a JSON object", err).
				WithRecoverable(true)
		}
	case nil:
	default:
		return "", tools.InvalidArgs("unsupported delegate input %T", input)
	}
	task, _ := args[TaskArg].(string)
	if strings.TrimSpace(task) == "" {
		return "", tools.InvalidArgs("missing required argument: %s", TaskArg)
	}
	return task, nil
}
