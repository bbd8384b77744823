// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jllopis/healthdesk/pkg/agent"
	"github.com/jllopis/healthdesk/pkg/config"
	"github.com/jllopis/healthdesk/pkg/core"
	"github.com/jllopis/healthdesk/pkg/delegate"
	"github.com/jllopis/healthdesk/pkg/llm"
	"github.com/jllopis/healthdesk/pkg/privacy"
	"github.com/jllopis/healthdesk/pkg/prompts"
	"github.com/jllopis/healthdesk/pkg/telemetry"
	"github.com/jllopis/healthdesk/pkg/tools/chart"
	"github.com/jllopis/healthdesk/pkg/tools/websearch"
)

// Sub-agent names as declared in the prompt manifest.
const (
	queryAgent  = "sql_query_agent_health"
	webAgent    = "web_search_agent"
	visualAgent = "visual_agent"
)

// buildDelegates creates one sub-agent per manifest entry, in manifest
// order. healthTools are the tools discovered on the database provider.
func buildDelegates(set prompts.Set, provider llm.Provider, cfg *config.Config, healthTools []core.Tool, metrics *telemetry.Metrics, log *slog.Logger) ([]delegate.Delegate, error) {
	searchOpts := []websearch.Option{
		websearch.WithProvider(cfg.Search.Provider),
		websearch.WithBraveAPIKey(cfg.Search.BraveAPIKey),
		websearch.WithTimeout(time.Duration(cfg.Search.TimeoutSeconds) * time.Second),
		websearch.WithUserAgent(cfg.Search.UserAgent),
	}
	if cfg.Search.RedactPII {
		searchOpts = append(searchOpts, websearch.WithRedactor(privacy.NewRedactor()))
	}
	searcher := websearch.New(searchOpts...)
	toolsets := map[string][]core.Tool{
		queryAgent: healthTools,
		webAgent: {
			websearch.NewSearchTool(searcher, cfg.Search.MaxResults),
			websearch.NewVisitTool(searcher, cfg.Search.MaxPageBytes),
		},
		visualAgent: {chart.NewTool(cfg.Artifacts.Dir)},
	}
	maxSteps := map[string]int{
		queryAgent:  cfg.Agents.QueryMaxSteps,
		webAgent:    cfg.Agents.WebMaxSteps,
		visualAgent: cfg.Agents.VisualMaxSteps,
	}

	defs := set.Agents()
	delegates := make([]delegate.Delegate, 0, len(defs))
	for _, def := range defs {
		tools, ok := toolsets[def.Name]
		if !ok {
			return nil, fmt.Errorf("agent %s: no tools are wired for this name", def.Name)
		}
		steps := def.MaxSteps
		if n := maxSteps[def.Name]; n > 0 {
			steps = n
		}
		if steps <= 0 {
			steps = agent.DefaultMaxIterations
		}
		a, err := agent.New(def.Name, provider,
			agent.WithDescription(def.Description),
			agent.WithModel(cfg.LLM.Model),
			agent.WithInstructions(def.Instructions),
			agent.WithTemperature(cfg.LLM.Temperature),
			agent.WithTools(tools...),
			agent.WithMaxIterations(steps),
			agent.WithToolErrorsAsObservations(true),
			agent.WithRetry(retryConfig(cfg.LLM)),
			agent.WithMetrics(metrics),
			agent.WithLogger(log),
		)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", def.Name, err)
		}
		log.Info("agent.ready",
			slog.String("agent_id", def.Name),
			slog.Int("max_steps", steps),
			slog.Any("tools", a.ToolNames()),
		)
		delegates = append(delegates, delegate.Delegate{
			Name:        def.Name,
			Description: def.Description,
			Runner:      a,
		})
	}
	return delegates, nil
}
