// SPDX-License-Identifier: Apache-2.0
package mcp

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	herrors "github.com/jllopis/healthdesk/pkg/errors"
)

// Transport names accepted in ServerConfig.Transport.
const (
	TransportStdio          = "stdio"
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable-http"
)

// ClientName and ClientVersion identify healthdesk during the handshake.
const (
	ClientName    = "healthdesk"
	ClientVersion = "0.1.0"
)

// ServerConfig describes how to reach one tool provider.
type ServerConfig struct {
	Name      string
	Transport string

	// stdio
	Command string
	Args    []string
	Env     []string

	// sse / streamable-http
	URL   string
	Token string

	ProtocolVersion string
	InitTimeout     time.Duration
	Options         []ClientOption
}

// RemoteBridge returns a stdio config that reaches an SSE endpoint through
// the mcp-remote npm bridge, passing the bearer token via the subprocess env.
func RemoteBridge(name, url, token string) ServerConfig {
	cfg := ServerConfig{
		Name:      name,
		Transport: TransportStdio,
		Command:   "npx",
		Args: []string{
			"-y", "mcp-remote@latest", url,
			"--transport", "sse-only",
			"--header", "Authorization: Bearer ${HF_TOKEN}",
		},
		Env: os.Environ(),
		URL: url,
	}
	if token != "" {
		cfg.Env = append(cfg.Env, "HF_TOKEN="+token)
	}
	return cfg
}

// Connect starts the transport and performs the protocol handshake.
// On any failure the partially opened transport is closed before returning.
func Connect(ctx context.Context, cfg ServerConfig) (*Client, error) {
	raw, err := newTransportClient(cfg)
	if err != nil {
		return nil, transportError(cfg, "create client", err)
	}

	if err := raw.Start(context.WithoutCancel(ctx)); err != nil {
		_ = raw.Close()
		return nil, transportError(cfg, "start transport", err)
	}

	initTimeout := cfg.InitTimeout
	if initTimeout <= 0 {
		initTimeout = 60 * time.Second
	}
	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = cfg.ProtocolVersion
	if req.Params.ProtocolVersion == "" {
		req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	}
	req.Params.ClientInfo = mcp.Implementation{
		Name:    ClientName,
		Version: ClientVersion,
	}
	if _, err := raw.Initialize(initCtx, req); err != nil {
		_ = raw.Close()
		return nil, transportError(cfg, "initialize", err)
	}

	c := NewClient(raw, cfg.Options...)
	c.name = cfg.Name
	return c, nil
}

func newTransportClient(cfg ServerConfig) (*client.Client, error) {
	headers := map[string]string{}
	if cfg.Token != "" {
		headers["Authorization"] = "Bearer " + cfg.Token
	}

	switch strings.ToLower(cfg.Transport) {
	case "", TransportStdio:
		if cfg.Command == "" {
			return nil, fmt.Errorf("stdio transport requires a command")
		}
		return client.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
	case TransportSSE:
		if cfg.URL == "" {
			return nil, fmt.Errorf("sse transport requires a url")
		}
		return client.NewSSEMCPClient(cfg.URL, transport.WithHeaders(headers))
	case TransportStreamableHTTP, "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("streamable-http transport requires a url")
		}
		return client.NewStreamableHttpClient(cfg.URL, transport.WithHTTPHeaders(headers))
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

func transportError(cfg ServerConfig, stage string, err error) error {
	return herrors.New(herrors.CodeTransport, fmt.Sprintf("mcp %s: %s failed", cfg.Name, stage), err).
		WithContext("transport", cfg.Transport).
		WithAttribute("mcp.server", cfg.Name)
}
