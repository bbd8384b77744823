// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the step-bounded, tool-calling agent loop used by
// every sub-agent and by the manager.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/healthdesk/pkg/core"
	"github.com/jllopis/healthdesk/pkg/llm"
	"github.com/jllopis/healthdesk/pkg/resilience"
	"github.com/jllopis/healthdesk/pkg/telemetry"
)

// DefaultMaxIterations bounds the loop when WithMaxIterations is not given.
const DefaultMaxIterations = 10

// ToolDefiner is implemented by tools that describe themselves to the model.
type ToolDefiner interface {
	ToolDefinition() llm.Tool
}

// ToolResolver finds the tool for a name the model asked for.
type ToolResolver func(name string) (core.Tool, error)

// Agent runs a task through a model, calling tools until the model answers
// or the step budget runs out. It holds no per-run state and is safe for
// concurrent use.
type Agent struct {
	id           string
	role         string
	description  string
	model        string
	instructions string
	temperature  float64

	provider      llm.Provider
	tools         []core.Tool
	toolDefs      []llm.Tool
	resolver      ToolResolver
	maxIterations int

	observeToolErrors bool
	retry             resilience.RetryConfig

	emitter core.EventEmitter
	metrics *telemetry.Metrics
	log     *slog.Logger
	tracer  trace.Tracer
}

// Option configures an Agent instance.
type Option func(*Agent) error

// New creates an agent. id names it in logs, spans and events.
func New(id string, provider llm.Provider, opts ...Option) (*Agent, error) {
	a := &Agent{
		id:            id,
		provider:      provider,
		maxIterations: DefaultMaxIterations,
		retry:         resilience.DefaultRetryConfig(),
		emitter:       core.NoopEventEmitter{},
		log:           slog.Default(),
		tracer:        otel.Tracer("healthdesk/agent"),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.id == "" {
		return nil, errors.New("agent id is required")
	}
	if a.provider == nil {
		return nil, errors.New("agent llm provider is required")
	}

	index := make(map[string]core.Tool, len(a.tools))
	for _, tool := range a.tools {
		name := tool.Name()
		if _, dup := index[name]; dup {
			return nil, NewInvalidInputError(fmt.Sprintf("agent %s: duplicate tool %q", a.id, name))
		}
		index[name] = tool
		a.toolDefs = append(a.toolDefs, toolDefinition(tool))
	}
	if a.resolver == nil {
		a.resolver = func(name string) (core.Tool, error) {
			if tool, ok := index[name]; ok {
				return tool, nil
			}
			return nil, NewNotFoundError("tool", name)
		}
	}
	return a, nil
}

// WithRole sets the agent role, appended to the system prompt.
func WithRole(role string) Option {
	return func(a *Agent) error {
		a.role = role
		return nil
	}
}

// WithDescription sets the one-line description a manager shows its model.
func WithDescription(description string) Option {
	return func(a *Agent) error {
		a.description = description
		return nil
	}
}

// WithModel sets the model name sent with every request.
func WithModel(model string) Option {
	return func(a *Agent) error {
		a.model = model
		return nil
	}
}

// WithInstructions sets the system prompt.
func WithInstructions(instructions string) Option {
	return func(a *Agent) error {
		a.instructions = instructions
		return nil
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(a *Agent) error {
		if t < 0 {
			return fmt.Errorf("temperature must be >= 0, got %v", t)
		}
		a.temperature = t
		return nil
	}
}

// WithTools sets the tools offered to the model.
func WithTools(tools ...core.Tool) Option {
	return func(a *Agent) error {
		for _, tool := range tools {
			if tool == nil {
				return errors.New("nil tool")
			}
		}
		a.tools = append([]core.Tool(nil), tools...)
		return nil
	}
}

// WithToolResolver replaces the name lookup used for tool calls. The tools
// given to WithTools are still the ones advertised to the model.
func WithToolResolver(resolver ToolResolver) Option {
	return func(a *Agent) error {
		a.resolver = resolver
		return nil
	}
}

// WithMaxIterations bounds the number of model calls per run.
func WithMaxIterations(n int) Option {
	return func(a *Agent) error {
		if n < 1 {
			return fmt.Errorf("max iterations must be >= 1, got %d", n)
		}
		a.maxIterations = n
		return nil
	}
}

// WithToolErrorsAsObservations turns recoverable tool errors into tool
// messages the model can react to instead of aborting the run.
func WithToolErrorsAsObservations(enabled bool) Option {
	return func(a *Agent) error {
		a.observeToolErrors = enabled
		return nil
	}
}

// WithRetry sets the retry policy for model calls.
func WithRetry(rc resilience.RetryConfig) Option {
	return func(a *Agent) error {
		a.retry = rc
		return nil
	}
}

// WithEventEmitter sets the emitter for semantic events.
func WithEventEmitter(emitter core.EventEmitter) Option {
	return func(a *Agent) error {
		if emitter == nil {
			emitter = core.NoopEventEmitter{}
		}
		a.emitter = emitter
		return nil
	}
}

// WithMetrics records run, tool and model metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(a *Agent) error {
		a.metrics = m
		return nil
	}
}

// WithLogger replaces slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(a *Agent) error {
		if log != nil {
			a.log = log
		}
		return nil
	}
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// Role returns the agent role.
func (a *Agent) Role() string { return a.role }

// Description returns the agent description.
func (a *Agent) Description() string { return a.description }

// MaxIterations returns the step budget.
func (a *Agent) MaxIterations() int { return a.maxIterations }

// ToolNames returns the names of the advertised tools in order.
func (a *Agent) ToolNames() []string {
	names := make([]string, 0, len(a.toolDefs))
	for _, def := range a.toolDefs {
		names = append(names, def.Function.Name)
	}
	return names
}

func toolDefinition(tool core.Tool) llm.Tool {
	if d, ok := tool.(ToolDefiner); ok {
		def := d.ToolDefinition()
		if def.Type == "" {
			def.Type = llm.ToolTypeFunction
		}
		if def.Function.Name == "" {
			def.Function.Name = tool.Name()
		}
		return def
	}
	return llm.NewFunctionTool(tool.Name(), "", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{"type": "string"},
		},
		"required": []string{"input"},
	})
}

var _ core.Runner = (*Agent)(nil)

func (a *Agent) emitEvent(ctx context.Context, eventType core.EventType, payload map[string]any) {
	taskID, _ := core.RunID(ctx)
	event := core.NewEvent(eventType, a.id, taskID, payload)
	a.emitter.Emit(ctx, event)
	if em, ok := core.EventEmitterFromContext(ctx); ok {
		em.Emit(ctx, event)
	}
}
