// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/jllopis/healthdesk/pkg/core"
	herrors "github.com/jllopis/healthdesk/pkg/errors"
)

func TestInitNone(t *testing.T) {
	shutdown, err := InitWithConfig("healthdesk-test", "v0.0.1", Config{Exporter: "none"})
	if err != nil {
		t.Fatalf("InitWithConfig failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestInitRejectsBadConfig(t *testing.T) {
	if _, err := InitWithConfig("x", "v", Config{Exporter: "zipkin"}); err == nil {
		t.Fatalf("expected unknown exporter error")
	}
	if _, err := InitWithConfig("x", "v", Config{Exporter: "otlp"}); err == nil {
		t.Fatalf("expected missing endpoint error")
	}
}

func TestSlogHandlerAddsTraceAndRunIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewSlogHandler(&buf, "debug", "json"))

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	ctx = core.WithRunID(ctx, "run-abc")
	logger.InfoContext(ctx, "agent.run.start")
	span.End()

	out := buf.String()
	for _, want := range []string{`"trace_id"`, `"span_id"`, `"run_id":"run-abc"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("unexpected %q", got)
	}
	if got := Truncate("abcdefghij", 4); got != "abcd..." {
		t.Errorf("unexpected %q", got)
	}
	if got := Truncate("añb", 2); got != "a..." {
		t.Errorf("expected rune-safe cut, got %q", got)
	}
}

func TestMetricsRecordErrorCodes(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := newMetricsFrom(mp)
	if err != nil {
		t.Fatalf("newMetricsFrom: %v", err)
	}
	ctx := context.Background()
	m.RecordError(ctx, herrors.New(herrors.CodeStepLimit, "limit", nil), "agent")
	m.RecordError(ctx, errors.New("plain"), "agent")
	m.RecordError(ctx, nil, "agent")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "healthdesk.agent.errors" {
				continue
			}
			sum := md.Data.(metricdata.Sum[int64])
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 2 {
		t.Fatalf("expected 2 recorded errors, got %d", total)
	}

	var nilMetrics *Metrics
	nilMetrics.RecordError(ctx, err, "agent")
	nilMetrics.RecordRun(ctx, "agent", nil)
}

func TestConfigHeaders(t *testing.T) {
	cfg := Config{
		OTLPHeaders: map[string]string{"x-api-key": "k"},
		OTLPUser:    "admin",
		OTLPToken:   "secret",
	}
	h := cfg.headers()
	if h["x-api-key"] != "k" {
		t.Fatalf("custom header lost: %v", h)
	}
	if h["Authorization"] != "Basic YWRtaW46c2VjcmV0" {
		t.Fatalf("unexpected authorization %q", h["Authorization"])
	}
	if len((Config{}).headers()) != 0 {
		t.Fatalf("empty config should send no headers")
	}
}

func TestSetLogLevel(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := ConfigureSlog(&buf, "warn", "text")
	logger.Info("hidden")
	SetLogLevel("debug")
	logger.Debug("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected log output %q", buf.String())
	}
}
