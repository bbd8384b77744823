// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads healthdesk settings from defaults, a YAML file, an
// optional profile file, HEALTHDESK_* environment variables and --set flags,
// in that order of precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override: HEALTHDESK_LLM_MODEL sets llm.model.
const EnvPrefix = "HEALTHDESK_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	LLM       LLMConfig       `koanf:"llm"`
	MCP       MCPConfig       `koanf:"mcp"`
	Agents    AgentsConfig    `koanf:"agents"`
	Artifacts ArtifactsConfig `koanf:"artifacts"`
	Search    SearchConfig    `koanf:"search"`
	Web       WebConfig       `koanf:"web"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Prompts   PromptsConfig   `koanf:"prompts"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider    string  `koanf:"provider"` // anthropic, openai, ollama
	Model       string  `koanf:"model"`
	BaseURL     string  `koanf:"base_url"`
	APIKey      string  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
	Retries     int     `koanf:"retries"`
}

// MCPConfig points at the health database tool provider.
type MCPConfig struct {
	Transport          string            `koanf:"transport"` // stdio, sse, streamable-http
	URL                string            `koanf:"url"`
	Token              string            `koanf:"token"`
	Command            string            `koanf:"command"`
	Args               []string          `koanf:"args"`
	Env                map[string]string `koanf:"env"`
	InitTimeoutSeconds int               `koanf:"init_timeout_seconds"`
	CallTimeoutSeconds int               `koanf:"call_timeout_seconds"`
	Retries            int               `koanf:"retries"`
}

// AgentsConfig holds per-agent step bounds. Zero keeps the prompt manifest value.
type AgentsConfig struct {
	ManagerMaxSteps   int `koanf:"manager_max_steps"`
	QueryMaxSteps     int `koanf:"query_max_steps"`
	WebMaxSteps       int `koanf:"web_max_steps"`
	VisualMaxSteps    int `koanf:"visual_max_steps"`
	RunTimeoutSeconds int `koanf:"run_timeout_seconds"`
}

type ArtifactsConfig struct {
	Dir            string `koanf:"dir"`
	CurrentRunOnly bool   `koanf:"current_run_only"`
}

type SearchConfig struct {
	Provider       string `koanf:"provider"` // auto, brave, duckduckgo
	BraveAPIKey    string `koanf:"brave_api_key"`
	MaxResults     int    `koanf:"max_results"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
	MaxPageBytes   int    `koanf:"max_page_bytes"`
	UserAgent      string `koanf:"user_agent"`
	// RedactPII masks emails, phone numbers and similar in outgoing queries.
	RedactPII      bool   `koanf:"redact_pii"`
}

// WebConfig configures the chat UI server.
type WebConfig struct {
	Addr  string `koanf:"addr"`
	Title string `koanf:"title"`
}

type TelemetryConfig struct {
	Exporter              string            `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint          string            `koanf:"otlp_endpoint"`
	OTLPInsecure          bool              `koanf:"otlp_insecure"`
	OTLPTimeoutSeconds    int               `koanf:"otlp_timeout_seconds"`
	OTLPHeaders           map[string]string `koanf:"otlp_headers"`
	OTLPUser              string            `koanf:"otlp_user"`
	OTLPToken             string            `koanf:"otlp_token"`
	MetricIntervalSeconds int               `koanf:"metric_interval_seconds"`
}

type PromptsConfig struct {
	Dir string `koanf:"dir"`
}

// RunTimeout returns the chat run bound, zero for none.
func (c AgentsConfig) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}

var defaults = map[string]any{
	"log.level":  "info",
	"log.format": "text",

	"llm.provider":    "anthropic",
	"llm.model":       "claude-sonnet-4-20250514",
	"llm.temperature": 0.2,
	"llm.max_tokens":  4096,
	"llm.retries":     3,

	"mcp.transport":            "stdio",
	"mcp.url":                  "https://grlll-health-data-real-mcp.hf.space/gradio_api/mcp/sse",
	"mcp.init_timeout_seconds": 60,
	"mcp.call_timeout_seconds": 60,
	"mcp.retries":              2,

	"agents.web_max_steps": 3,

	"artifacts.dir":              ".",
	"artifacts.current_run_only": false,

	"search.provider":        "auto",
	"search.max_results":     5,
	"search.timeout_seconds": 20,
	"search.max_page_bytes":  40000,
	"search.user_agent":      "healthdesk/0.1 (+https://github.com/jllopis/healthdesk)",
	"search.redact_pii":      true,

	"web.addr":  ":7860",
	"web.title": "Health Assistant",

	"telemetry.exporter":                "none",
	"telemetry.otlp_insecure":           true,
	"telemetry.otlp_timeout_seconds":    10,
	"telemetry.metric_interval_seconds": 60,
}

// Load reads the config file at path (optional) plus the environment.
func Load(path string) (*Config, error) {
	return load(path, "", nil)
}

// LoadWithCLI understands --config, --profile (alias --env) and repeated
// --set key=value flags. Values that look like JSON objects or arrays are
// decoded, so --set mcp.args='["-y","mcp-remote"]' works.
func LoadWithCLI(args []string) (*Config, error) {
	opts, overrides, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	return load(opts.configPath, opts.profile, overrides)
}

type cliOptions struct {
	configPath string
	profile    string
}

func load(path, profile string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		if pp := profileConfigPath(path, profile); pp != "" {
			if err := k.Load(file.Provider(pp), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", pp, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	for key, v := range overrides {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("--set %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	cfg.applyWellKnownEnv()
	return &cfg, cfg.Validate()
}

// envKey maps HEALTHDESK_LLM_API_KEY to llm.api_key: the first segment is
// the section, the rest is the field name.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(s, "_")
	if !ok {
		return section
	}
	return section + "." + field
}

// applyWellKnownEnv fills secrets from the variables the providers document.
func (c *Config) applyWellKnownEnv() {
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "anthropic":
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if c.MCP.Token == "" {
		c.MCP.Token = os.Getenv("HF_TOKEN")
	}
	if c.Search.BraveAPIKey == "" {
		c.Search.BraveAPIKey = os.Getenv("BRAVE_API_KEY")
	}
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic", "openai", "ollama":
	default:
		return fmt.Errorf("llm.provider: unknown provider %q", c.LLM.Provider)
	}
	switch c.MCP.Transport {
	case "stdio", "sse", "streamable-http", "http":
	default:
		return fmt.Errorf("mcp.transport: unknown transport %q", c.MCP.Transport)
	}
	switch c.Search.Provider {
	case "auto", "brave", "duckduckgo":
	default:
		return fmt.Errorf("search.provider: unknown provider %q", c.Search.Provider)
	}
	if c.Web.Addr == "" {
		return fmt.Errorf("web.addr is required")
	}
	return nil
}

// profileConfigPath returns config.<profile>.yaml next to base when it exists.
func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	candidate := strings.TrimSuffix(base, ext) + "." + profile + ext
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

func parseCLIOverrides(args []string) (cliOptions, map[string]any, error) {
	var opts cliOptions
	overrides := map[string]any{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "--config", "--profile", "--env", "--set":
		default:
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("%s requires a value", name)
			}
			i++
			value = args[i]
		}
		switch name {
		case "--config":
			opts.configPath = value
		case "--profile", "--env":
			opts.profile = value
		case "--set":
			key, raw, ok := strings.Cut(value, "=")
			if !ok || key == "" {
				return opts, nil, fmt.Errorf("--set expects key=value, got %q", value)
			}
			overrides[key] = parseValue(raw)
		}
	}
	return opts, overrides, nil
}

func parseValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return raw
}
