// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/jllopis/healthdesk/pkg/config"
	"github.com/jllopis/healthdesk/pkg/delegate"
	"github.com/jllopis/healthdesk/pkg/llm"
	"github.com/jllopis/healthdesk/pkg/manager"
	"github.com/jllopis/healthdesk/pkg/mcp"
	"github.com/jllopis/healthdesk/pkg/prompts"
)

func TestMCPServerConfig(t *testing.T) {
	t.Run("remote bridge", func(t *testing.T) {
		sc := mcpServerConfig(config.MCPConfig{
			Transport:          "stdio",
			URL:                "https://example.test/mcp/sse",
			Token:              "hf_secret",
			InitTimeoutSeconds: 30,
			CallTimeoutSeconds: 20,
			Retries:            1,
		})
		if sc.Command != "npx" {
			t.Fatalf("expected npx bridge, got %q", sc.Command)
		}
		if !slices.Contains(sc.Args, "https://example.test/mcp/sse") {
			t.Errorf("expected url in bridge args, got %v", sc.Args)
		}
		if !slices.Contains(sc.Env, "HF_TOKEN=hf_secret") {
			t.Errorf("expected token in bridge env")
		}
		if sc.InitTimeout != 30*time.Second {
			t.Errorf("expected init timeout 30s, got %v", sc.InitTimeout)
		}
		if len(sc.Options) != 2 {
			t.Errorf("expected timeout and retry options, got %d", len(sc.Options))
		}
	})

	t.Run("local command", func(t *testing.T) {
		sc := mcpServerConfig(config.MCPConfig{
			Transport: "stdio",
			Command:   "healthdb-mcp",
			Args:      []string{"-db", "health.db"},
			Env:       map[string]string{"LOG": "debug"},
		})
		if sc.Command != "healthdb-mcp" || !slices.Equal(sc.Args, []string{"-db", "health.db"}) {
			t.Fatalf("unexpected command %q %v", sc.Command, sc.Args)
		}
		if !slices.Equal(sc.Env, []string{"LOG=debug"}) {
			t.Errorf("unexpected env %v", sc.Env)
		}
		if sc.Name != toolProviderName {
			t.Errorf("expected name %q, got %q", toolProviderName, sc.Name)
		}
	})

	t.Run("http", func(t *testing.T) {
		sc := mcpServerConfig(config.MCPConfig{
			Transport: mcp.TransportStreamableHTTP,
			URL:       "http://localhost:8090/mcp",
		})
		if sc.Transport != mcp.TransportStreamableHTTP || sc.Command != "" {
			t.Fatalf("unexpected config %+v", sc)
		}
	})
}

func TestNewProvider(t *testing.T) {
	for _, name := range []string{"anthropic", "openai", "ollama"} {
		p, err := newProvider(config.LLMConfig{Provider: name, Model: "m", APIKey: "k"})
		if err != nil || p == nil {
			t.Errorf("%s: unexpected error %v", name, err)
		}
	}
	if _, err := newProvider(config.LLMConfig{Provider: "gemini"}); err == nil {
		t.Errorf("expected error for unknown provider")
	}
}

func TestRetryConfig(t *testing.T) {
	if got := retryConfig(config.LLMConfig{Retries: 0}).MaxAttempts; got != 1 {
		t.Errorf("expected a single attempt, got %d", got)
	}
	if got := retryConfig(config.LLMConfig{Retries: 3}).MaxAttempts; got != 4 {
		t.Errorf("expected 4 attempts, got %d", got)
	}
}

func TestBuildDelegates(t *testing.T) {
	set, err := prompts.Default()
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	provider := llm.ProviderFunc(func(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Content: "Final Answer: ok"}, nil
	})
	cfg := &config.Config{}
	cfg.Artifacts.Dir = t.TempDir()
	cfg.Search.MaxResults = 5
	cfg.Agents.WebMaxSteps = 2

	delegates, err := buildDelegates(set, provider, cfg, nil, nil, discardLogger())
	if err != nil {
		t.Fatalf("buildDelegates: %v", err)
	}
	var names []string
	for _, d := range delegates {
		names = append(names, d.Name)
	}
	if want := []string{queryAgent, webAgent, visualAgent}; !slices.Equal(names, want) {
		t.Fatalf("expected %v, got %v", want, names)
	}

	registry, err := delegate.NewRegistry(delegates...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if _, err := manager.New(provider, registry, manager.WithPrompts(set)); err != nil {
		t.Fatalf("manager must accept the built delegates: %v", err)
	}

	web, err := registry.Lookup(webAgent)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	out, err := web.Runner.Run(context.Background(), "find resting heart rate norms")
	if err != nil || out != "ok" {
		t.Fatalf("unexpected run result %q, %v", out, err)
	}
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }
