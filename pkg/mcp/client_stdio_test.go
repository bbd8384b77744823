// SPDX-License-Identifier: Apache-2.0
package mcp

import (
	"context"
	"os"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const mcpStdioHelperEnv = "HEALTHDESK_MCP_STDIO_HELPER"

func TestHelperMCPStdioServer(t *testing.T) {
	if os.Getenv(mcpStdioHelperEnv) != "1" {
		return
	}

	server := mcpserver.NewMCPServer("test-stdio", "1.0.0")
	server.AddTool(mcpgo.NewTool("execute_sql", mcpgo.WithString("query", mcpgo.Required())), func(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		return &mcpgo.CallToolResult{
			Content: []mcpgo.Content{mcpgo.TextContent{Type: "text", Text: "avg_hr=68"}},
		}, nil
	})
	server.AddTool(mcpgo.NewTool("token"), func(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		return mcpgo.NewToolResultText(os.Getenv("HF_TOKEN")), nil
	})

	if err := mcpserver.ServeStdio(server); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

func helperConfig(t *testing.T) ServerConfig {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	return ServerConfig{
		Name:      "health-stdio",
		Transport: TransportStdio,
		Command:   exe,
		Args:      []string{"-test.run", "TestHelperMCPStdioServer"},
		Env:       []string{mcpStdioHelperEnv + "=1", "HF_TOKEN=hf_test_token"},
	}
}

func TestConnect_Stdio_ListToolsAndCall(t *testing.T) {
	client, err := Connect(context.Background(), helperConfig(t))
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	defer client.Close()

	if client.Name() != "health-stdio" {
		t.Fatalf("unexpected client name %q", client.Name())
	}

	tools, err := Tools(context.Background(), client)
	if err != nil {
		t.Fatalf("Tools error: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}

	var sql, token *ToolAdapter
	for _, tool := range tools {
		switch tool.Name() {
		case "execute_sql":
			sql = tool.(*ToolAdapter)
		case "token":
			token = tool.(*ToolAdapter)
		}
	}
	if sql == nil || token == nil {
		t.Fatalf("missing expected tools: %+v", tools)
	}

	out, err := sql.Call(context.Background(), `{"query":"SELECT avg(value) FROM record"}`)
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if out != "avg_hr=68" {
		t.Fatalf("unexpected output %v", out)
	}

	out, err = token.Call(context.Background(), nil)
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if out != "hf_test_token" {
		t.Fatalf("expected token from subprocess env, got %v", out)
	}

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping error: %v", err)
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	client, err := Connect(context.Background(), helperConfig(t))
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("first Close error: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
}
