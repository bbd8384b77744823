// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/jllopis/healthdesk/pkg/config"
	"github.com/jllopis/healthdesk/pkg/llm"
	"github.com/jllopis/healthdesk/pkg/llm/anthropic"
	"github.com/jllopis/healthdesk/pkg/llm/openai"
	"github.com/jllopis/healthdesk/pkg/mcp"
	"github.com/jllopis/healthdesk/pkg/resilience"
)

// toolProviderName names the health database tool provider in logs and errors.
const toolProviderName = "healthdb"

func newProvider(c config.LLMConfig) (llm.Provider, error) {
	switch c.Provider {
	case "anthropic":
		opts := []anthropic.Option{
			anthropic.WithModel(c.Model),
			anthropic.WithAPIKey(c.APIKey),
			anthropic.WithBaseURL(c.BaseURL),
		}
		if c.MaxTokens > 0 {
			opts = append(opts, anthropic.WithMaxTokens(int64(c.MaxTokens)))
		}
		return anthropic.New(opts...), nil
	case "openai":
		return openai.New(
			openai.WithModel(c.Model),
			openai.WithAPIKey(c.APIKey),
			openai.WithBaseURL(c.BaseURL),
		), nil
	case "ollama":
		return llm.NewOllama(c.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", c.Provider)
	}
}

// retryConfig turns llm.retries into a retry policy. Retries counts the
// extra attempts after the first.
func retryConfig(c config.LLMConfig) resilience.RetryConfig {
	if c.Retries <= 0 {
		return resilience.NoRetry()
	}
	return resilience.DefaultRetryConfig().WithMaxAttempts(c.Retries + 1)
}

// mcpServerConfig maps the mcp section to a connection config. A stdio
// transport with no command but a URL goes through the mcp-remote bridge,
// which is how the hosted health database is reached.
func mcpServerConfig(c config.MCPConfig) mcp.ServerConfig {
	var sc mcp.ServerConfig
	if c.Transport == mcp.TransportStdio && c.Command == "" && c.URL != "" {
		sc = mcp.RemoteBridge(toolProviderName, c.URL, c.Token)
	} else {
		sc = mcp.ServerConfig{
			Name:      toolProviderName,
			Transport: c.Transport,
			Command:   c.Command,
			Args:      append([]string(nil), c.Args...),
			URL:       c.URL,
			Token:     c.Token,
		}
	}
	for k, v := range c.Env {
		sc.Env = append(sc.Env, k+"="+v)
	}
	sc.InitTimeout = time.Duration(c.InitTimeoutSeconds) * time.Second
	sc.Options = []mcp.ClientOption{
		mcp.WithTimeout(time.Duration(c.CallTimeoutSeconds) * time.Second),
		mcp.WithRetry(c.Retries, 500*time.Millisecond),
	}
	return sc
}
