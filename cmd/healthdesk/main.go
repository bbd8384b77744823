// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Command healthdesk serves the health assistant chat UI. A manager agent
// answers each question by delegating to a SQL agent over the health
// database tool provider, a web search agent and a charting agent.
//
// Configuration comes from defaults, an optional YAML file (--config,
// --profile), HEALTHDESK_* environment variables and --set key=value
// overrides, in that order. A .env file in the working directory is read
// first.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jllopis/healthdesk/pkg/chat"
	"github.com/jllopis/healthdesk/pkg/config"
	"github.com/jllopis/healthdesk/pkg/core"
	"github.com/jllopis/healthdesk/pkg/delegate"
	"github.com/jllopis/healthdesk/pkg/manager"
	"github.com/jllopis/healthdesk/pkg/mcp"
	"github.com/jllopis/healthdesk/pkg/prompts"
	"github.com/jllopis/healthdesk/pkg/telemetry"
)

const (
	serviceName = "healthdesk"
	version     = "v0.1.0"
)

func main() {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "healthdesk:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := config.NewWatcher(args)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := watcher.Config()

	log := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	watcher.OnChange(func(next *config.Config) {
		// Only the log level is applied live; the rest needs a restart.
		telemetry.SetLogLevel(next.Log.Level)
		log.Info("config.reloaded", slog.String("log_level", next.Log.Level))
	})
	watcher.Start(ctx)
	defer watcher.Stop()

	shutdown, err := telemetry.InitWithConfig(serviceName, version, telemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn("telemetry.shutdown", slog.String("error", err.Error()))
		}
	}()
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	set, err := prompts.Load(cfg.Prompts.Dir)
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}

	health := core.NewHealthRegistry()
	health.Register("artifacts", chat.ArtifactDirCheck(cfg.Artifacts.Dir))
	health.Register("llm", chat.APIKeyCheck(cfg.LLM.Provider, cfg.LLM.APIKey))
	logStartupHealth(ctx, log, health)

	provider, err := newProvider(cfg.LLM)
	if err != nil {
		return err
	}

	mcpCfg := mcpServerConfig(cfg.MCP)
	log.Info("mcp.connect",
		slog.String("transport", mcpCfg.Transport),
		slog.String("command", mcpCfg.Command),
		slog.String("url", mcpCfg.URL),
	)
	client, err := mcp.Connect(ctx, mcpCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn("mcp.close", slog.String("error", err.Error()))
		}
	}()
	healthTools, err := mcp.Tools(ctx, client)
	if err != nil {
		return err
	}
	log.Info("mcp.tools", slog.Int("count", len(healthTools)))

	delegates, err := buildDelegates(set, provider, cfg, healthTools, metrics, log)
	if err != nil {
		return err
	}
	registry, err := delegate.NewRegistry(delegates...)
	if err != nil {
		return err
	}

	managerOpts := []manager.Option{
		manager.WithModel(cfg.LLM.Model),
		manager.WithTemperature(cfg.LLM.Temperature),
		manager.WithRetry(retryConfig(cfg.LLM)),
		manager.WithMetrics(metrics),
		manager.WithLogger(log),
		manager.WithPrompts(set),
	}
	if cfg.Agents.ManagerMaxSteps > 0 {
		managerOpts = append(managerOpts, manager.WithMaxSteps(cfg.Agents.ManagerMaxSteps))
	}
	mgr, err := manager.New(provider, registry, managerOpts...)
	if err != nil {
		return err
	}

	svc, err := chat.NewService(mgr,
		chat.WithArtifactDir(cfg.Artifacts.Dir),
		chat.WithCurrentRunOnly(cfg.Artifacts.CurrentRunOnly),
		chat.WithRunTimeout(cfg.Agents.RunTimeout()),
		chat.WithMetrics(metrics),
		chat.WithLogger(log),
	)
	if err != nil {
		return err
	}
	ui := chat.NewServer(svc,
		chat.WithTitle(cfg.Web.Title),
		chat.WithHealth(health),
		chat.WithServerLogger(log),
	)

	srv := &http.Server{
		Addr:              cfg.Web.Addr,
		Handler:           ui.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("web.listen",
			slog.String("addr", cfg.Web.Addr),
			slog.String("llm_provider", cfg.LLM.Provider),
			slog.String("llm_model", cfg.LLM.Model),
			slog.Any("delegates", registry.Names()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("web.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func telemetryConfig(c config.TelemetryConfig) telemetry.Config {
	return telemetry.Config{
		Exporter:       c.Exporter,
		OTLPEndpoint:   c.OTLPEndpoint,
		OTLPInsecure:   c.OTLPInsecure,
		OTLPTimeout:    time.Duration(c.OTLPTimeoutSeconds) * time.Second,
		OTLPHeaders:    c.OTLPHeaders,
		OTLPUser:       c.OTLPUser,
		OTLPToken:      c.OTLPToken,
		MetricInterval: time.Duration(c.MetricIntervalSeconds) * time.Second,
	}
}

// logStartupHealth reports failed checks once at startup. The server still
// starts; /healthz keeps reporting the same results.
func logStartupHealth(ctx context.Context, log *slog.Logger, health *core.HealthRegistry) {
	results, overall := health.CheckAll(ctx)
	for _, r := range results {
		if r.Status == core.HealthHealthy {
			continue
		}
		log.Warn("health.check",
			slog.String("component", r.Component),
			slog.String("status", string(r.Status)),
			slog.String("message", r.Message),
		)
	}
	log.Info("health.startup", slog.String("status", string(overall)))
}
