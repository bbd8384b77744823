// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package healthdb

import (
	"context"
	"log/slog"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	hmcp "github.com/jllopis/healthdesk/pkg/mcp"
)

// ToolName is the tool the query sub-agent calls.
const ToolName = "execute_sql"

const toolDescription = "Executes a read-only SQL SELECT query against the Apple Health SQLite database " +
	"and returns the rows as a pipe-separated table with a header row."

// NewServer exposes db as an MCP server with the execute_sql tool. Query
// failures are returned as tool errors so the model can fix its SQL.
func NewServer(db *DB, log *slog.Logger) *hmcp.Server {
	if log == nil {
		log = slog.Default()
	}
	srv := hmcp.NewServer("healthdb", hmcp.ClientVersion)
	srv.RegisterTool(ToolName, toolDescription, func(ctx context.Context, args map[string]interface{}) (*mcpgo.CallToolResult, error) {
		query, _ := args["query"].(string)
		res, err := db.Query(ctx, query)
		if err != nil {
			log.WarnContext(ctx, "healthdb.query.error", slog.String("error", err.Error()))
			return hmcp.ErrorResult("Error: " + err.Error()), nil
		}
		log.InfoContext(ctx, "healthdb.query", slog.Int("rows", len(res.Rows)), slog.Bool("truncated", res.Truncated))
		return hmcp.TextResult(res.Text()), nil
	}, mcpgo.WithString("query", mcpgo.Required(), mcpgo.Description("The SQL SELECT statement to run.")))
	return srv
}
