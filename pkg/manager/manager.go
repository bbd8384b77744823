// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package manager implements the top-level agent that answers a user
// question by dispatching sub-tasks to registered delegates.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/healthdesk/pkg/agent"
	"github.com/jllopis/healthdesk/pkg/core"
	"github.com/jllopis/healthdesk/pkg/delegate"
	"github.com/jllopis/healthdesk/pkg/errors"
	"github.com/jllopis/healthdesk/pkg/llm"
	"github.com/jllopis/healthdesk/pkg/prompts"
	"github.com/jllopis/healthdesk/pkg/resilience"
	"github.com/jllopis/healthdesk/pkg/telemetry"
)

// Manager answers tasks by delegating to sub-agents. Delegate failures end
// the run. It is safe for concurrent use.
type Manager struct {
	loop     *agent.Agent
	registry *delegate.Registry
	prompts  prompts.Set
	preamble string
	log      *slog.Logger
	tracer   trace.Tracer
}

type options struct {
	model       string
	temperature float64
	maxSteps    int
	retry       *resilience.RetryConfig
	emitter     core.EventEmitter
	metrics     *telemetry.Metrics
	log         *slog.Logger
	prompts     *prompts.Set
}

// Option configures a Manager.
type Option func(*options) error

// WithModel sets the model name for the manager's own calls.
func WithModel(model string) Option {
	return func(o *options) error {
		o.model = model
		return nil
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *options) error {
		o.temperature = t
		return nil
	}
}

// WithMaxSteps overrides the step bound from the prompt set.
func WithMaxSteps(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return fmt.Errorf("max steps must be >= 1, got %d", n)
		}
		o.maxSteps = n
		return nil
	}
}

// WithRetry sets the retry policy for model calls.
func WithRetry(rc resilience.RetryConfig) Option {
	return func(o *options) error {
		o.retry = &rc
		return nil
	}
}

// WithEventEmitter receives manager events.
func WithEventEmitter(em core.EventEmitter) Option {
	return func(o *options) error {
		o.emitter = em
		return nil
	}
}

// WithMetrics records manager and delegation metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) error {
		o.metrics = m
		return nil
	}
}

// WithLogger replaces slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) error {
		o.log = log
		return nil
	}
}

// WithPrompts sets the prompt set. The built-in set is used otherwise.
func WithPrompts(s prompts.Set) Option {
	return func(o *options) error {
		o.prompts = &s
		return nil
	}
}

// New builds a manager over registry. The delegates declared by the
// manager prompt must be exactly the registered ones.
func New(provider llm.Provider, registry *delegate.Registry, opts ...Option) (*Manager, error) {
	if provider == nil {
		return nil, agent.NewInvalidInputError("manager llm provider is required")
	}
	if registry == nil || registry.Len() == 0 {
		return nil, agent.NewInvalidInputError("manager needs at least one delegate")
	}
	o := options{log: slog.Default()}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.prompts == nil {
		set, err := prompts.Default()
		if err != nil {
			return nil, err
		}
		o.prompts = &set
	}
	record := o.prompts.Manager()
	if err := checkDeclared(record.Delegates, registry.Names()); err != nil {
		return nil, err
	}

	infos := make([]prompts.DelegateInfo, 0, registry.Len())
	for _, d := range registry.Delegates() {
		infos = append(infos, prompts.DelegateInfo{Name: d.Name, Description: d.Description})
	}
	preamble, err := record.Preamble(infos)
	if err != nil {
		return nil, err
	}

	tools := delegate.Tools(registry, o.metrics, o.log)
	byName := make(map[string]core.Tool, len(tools))
	asCore := make([]core.Tool, 0, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
		asCore = append(asCore, t)
	}
	resolve := func(name string) (core.Tool, error) {
		if _, err := registry.Lookup(name); err != nil {
			return nil, err
		}
		return byName[name], nil
	}

	maxSteps := o.maxSteps
	if maxSteps == 0 {
		maxSteps = record.MaxSteps
	}
	if maxSteps == 0 {
		maxSteps = agent.DefaultMaxIterations
	}
	agentOpts := []agent.Option{
		agent.WithRole("Manager"),
		agent.WithInstructions(preamble),
		agent.WithModel(o.model),
		agent.WithTemperature(o.temperature),
		agent.WithTools(asCore...),
		agent.WithToolResolver(resolve),
		agent.WithMaxIterations(maxSteps),
		agent.WithToolErrorsAsObservations(false),
		agent.WithEventEmitter(o.emitter),
		agent.WithMetrics(o.metrics),
		agent.WithLogger(o.log),
	}
	if o.retry != nil {
		agentOpts = append(agentOpts, agent.WithRetry(*o.retry))
	}
	loop, err := agent.New(record.Name, provider, agentOpts...)
	if err != nil {
		return nil, err
	}

	return &Manager{
		loop:     loop,
		registry: registry,
		prompts:  *o.prompts,
		preamble: preamble,
		log:      o.log,
		tracer:   otel.Tracer("healthdesk/manager"),
	}, nil
}

// Run answers task. The result is never empty: a blank answer is an
// EMPTY_RESULT error, and any delegate failure aborts the run with the
// delegate's error in the chain.
func (m *Manager) Run(ctx context.Context, task core.Task) (string, error) {
	if strings.TrimSpace(task.Goal) == "" {
		return "", agent.NewInvalidInputError("task goal is empty")
	}
	ctx, runID := core.EnsureRunID(ctx)
	ctx, span := m.tracer.Start(ctx, "Manager.Run")
	defer span.End()
	span.SetAttributes(telemetry.TaskAttributes(task.ID, task.Goal, string(task.Mode))...)
	span.SetAttributes(
		attribute.String(telemetry.AttrAgentRunID, runID),
		attribute.Int(telemetry.AttrDelegateCount, m.registry.Len()),
	)

	m.log.InfoContext(ctx, "manager.run.start",
		slog.String("task_id", task.ID),
		slog.String("mode", string(task.Mode)),
	)
	out, err := m.loop.Run(ctx, m.Prompt(task))
	if err == nil && strings.TrimSpace(out) == "" {
		err = agent.NewEmptyResultError(m.loop.ID())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.log.ErrorContext(ctx, "manager.run.error",
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()),
		)
		return "", err
	}
	m.log.InfoContext(ctx, "manager.run.complete", slog.String("task_id", task.ID), slog.Int("answer_len", len(out)))
	return out, nil
}

// Prompt returns the user message sent for task: the goal followed by the
// response-mode instructions.
func (m *Manager) Prompt(task core.Task) string {
	instr := m.prompts.ModeInstructions(task.Mode)
	if instr == "" {
		return task.Goal
	}
	return task.Goal + "\n\n" + instr
}

// Preamble returns the manager's system instructions.
func (m *Manager) Preamble() string { return m.preamble }

// Delegates returns the registered delegate names.
func (m *Manager) Delegates() []string { return m.registry.Names() }

func checkDeclared(declared, registered []string) error {
	want := append([]string(nil), declared...)
	sort.Strings(want)
	var missing, undeclared []string
	inRegistry := make(map[string]bool, len(registered))
	for _, n := range registered {
		inRegistry[n] = true
	}
	inPrompt := make(map[string]bool, len(want))
	for _, n := range want {
		inPrompt[n] = true
		if !inRegistry[n] {
			missing = append(missing, n)
		}
	}
	for _, n := range registered {
		if !inPrompt[n] {
			undeclared = append(undeclared, n)
		}
	}
	if len(missing) == 0 && len(undeclared) == 0 {
		return nil
	}
	return errors.New(errors.CodeInvalidInput, "manager prompt and delegate registry disagree", nil).
		WithContext("not_registered", missing).
		WithContext("not_declared", undeclared)
}
