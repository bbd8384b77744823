// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	herrors "github.com/jllopis/healthdesk/pkg/errors"
)

// Metrics holds the instruments recorded by agents, the manager and the chat layer.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	runs        metric.Int64Counter
	errorsTotal metric.Int64Counter
	recovered   metric.Int64Counter
	delegations metric.Int64Counter
	toolLatency metric.Float64Histogram
	llmLatency  metric.Float64Histogram
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return newMetricsFrom(otel.GetMeterProvider())
}

func newMetricsFrom(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter("healthdesk")
	m := &Metrics{}
	var err error
	if m.runs, err = meter.Int64Counter("healthdesk.agent.runs",
		metric.WithDescription("Agent and manager runs by outcome")); err != nil {
		return nil, err
	}
	if m.errorsTotal, err = meter.Int64Counter("healthdesk.agent.errors",
		metric.WithDescription("Errors by code and component")); err != nil {
		return nil, err
	}
	if m.recovered, err = meter.Int64Counter("healthdesk.agent.recovered",
		metric.WithDescription("Recoverable tool errors handed back to the model")); err != nil {
		return nil, err
	}
	if m.delegations, err = meter.Int64Counter("healthdesk.manager.delegations",
		metric.WithDescription("Delegate invocations by delegate name")); err != nil {
		return nil, err
	}
	if m.toolLatency, err = meter.Float64Histogram("healthdesk.tool.latency_ms",
		metric.WithDescription("Tool call latency in milliseconds"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.llmLatency, err = meter.Float64Histogram("healthdesk.llm.latency_ms",
		metric.WithDescription("Model call latency in milliseconds"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRun counts one finished run.
func (m *Metrics) RecordRun(ctx context.Context, component string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("component", component),
		attribute.String("outcome", outcome),
	))
}

// RecordError counts an error by code. Errors without a code count as UNKNOWN.
func (m *Metrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	code, recoverable := "UNKNOWN", "unknown"
	var he *herrors.Error
	if errors.As(err, &he) {
		code, recoverable = string(he.Code), he.RecoverableString()
	}
	m.errorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.code", code),
		attribute.String("component", component),
		attribute.String("recoverable", recoverable),
	))
}

// RecordRecovery counts a recoverable error that was turned into an observation.
func (m *Metrics) RecordRecovery(ctx context.Context, code herrors.ErrorCode) {
	if m == nil {
		return
	}
	m.recovered.Add(ctx, 1, metric.WithAttributes(attribute.String("error.code", string(code))))
}

// RecordDelegation counts one delegate invocation.
func (m *Metrics) RecordDelegation(ctx context.Context, delegate string, err error) {
	if m == nil {
		return
	}
	m.delegations.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrDelegateName, delegate),
		attribute.Bool("success", err == nil),
	))
}

// RecordToolLatency records a tool call duration.
func (m *Metrics) RecordToolLatency(ctx context.Context, tool string, ms float64, success bool) {
	if m == nil {
		return
	}
	m.toolLatency.Record(ctx, ms, metric.WithAttributes(
		attribute.String(AttrToolName, tool),
		attribute.Bool(AttrToolSuccess, success),
	))
}

// RecordLLMLatency records a model call duration.
func (m *Metrics) RecordLLMLatency(ctx context.Context, model string, ms float64) {
	if m == nil {
		return
	}
	m.llmLatency.Record(ctx, ms, metric.WithAttributes(attribute.String(AttrLLMModel, model)))
}
