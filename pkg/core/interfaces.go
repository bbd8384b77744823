// SPDX-License-Identifier: Apache-2.0
package core

import "context"

// Tool is a concrete implementation, typically backed by MCP.
type Tool interface {
	Name() string
	Call(ctx context.Context, input any) (any, error)
}

// Runner executes a natural-language task and returns a text result.
// Sub-agents and anything else a manager can delegate to implement it.
type Runner interface {
	Run(ctx context.Context, task string) (string, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, task string) (string, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, task string) (string, error) { return f(ctx, task) }
