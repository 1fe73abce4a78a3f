package agent

import (
	"context"
	"fmt"

	"github.com/openbrief/marketbrief/internal/llm"
)

// subagentIterations bounds a delegated task more tightly than the
// main loop.
const subagentIterations = 10

const subagentSystem = `You are a focused research subagent. Complete the
delegated task using your tools, then reply with a final answer that
stands alone. Do not ask follow-up questions.`

// runSubagent executes a delegated task in a fresh conversation. The
// subagent shares the tenant's tools except spawn, and its exchange is
// never persisted to a session.
func (e *Engine) runSubagent(ctx context.Context, tenantID, workspacePath, task string) (string, error) {
	if e.llm == nil {
		return "", ErrNoModel
	}

	registry := e.buildRegistry(tenantID, workspacePath, false)
	defs := registry.Definitions()

	buffer := []llm.Message{
		{Role: "system", Content: subagentSystem},
		{Role: "user", Content: task},
	}

	e.logger.Debug("subagent started", "tenant", tenantID)

	for iteration := 0; iteration < subagentIterations; iteration++ {
		resp, err := e.llm.Chat(ctx, e.model, buffer, defs)
		if err != nil {
			return "", fmt.Errorf("subagent model call: %w", err)
		}

		if len(resp.Message.ToolCalls) == 0 {
			return resp.Message.Content, nil
		}

		buffer = append(buffer, resp.Message)
		for _, call := range resp.Message.ToolCalls {
			result, err := registry.Execute(ctx, call.Function.Name, call.Function.Arguments)
			if err != nil {
				result = "Error: " + err.Error()
			}
			buffer = append(buffer, llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	return fallbackResponse, nil
}
