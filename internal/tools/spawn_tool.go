package tools

import (
	"context"
	"fmt"
)

// SubagentRunner executes a delegated task in a fresh conversation and
// returns its final answer. Implemented by the agent runtime.
type SubagentRunner func(ctx context.Context, task string) (string, error)

// RegisterSpawnTool adds a tool for delegating a self-contained research
// task to a subagent with its own context window.
func RegisterSpawnTool(r *Registry, run SubagentRunner) {
	if run == nil {
		return
	}

	r.Register(&Tool{
		Name:        "spawn_subagent",
		Description: "Delegate a self-contained research task to a subagent. The subagent has the same tools but a fresh context; give it complete instructions.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task": map[string]any{
					"type":        "string",
					"description": "Complete, standalone instructions for the subagent",
				},
			},
			"required": []string{"task"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			task := stringArg(args, "task")
			if task == "" {
				return "", fmt.Errorf("task is required")
			}
			return run(ctx, task)
		},
	})
}
