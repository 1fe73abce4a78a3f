package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/openbrief/marketbrief/internal/llm"
	"github.com/openbrief/marketbrief/internal/tools"
)

// fallbackResponse is emitted when the iteration budget runs out
// before the model produces a plain answer.
const fallbackResponse = "I've completed processing but have no response to give."

// ErrNoModel is returned when no model connection is configured.
var ErrNoModel = errors.New("no model connection configured")

// ProcessForUser resolves the tenant runtime and runs one loop
// invocation for an inbound message. sessionKey names the conversation
// within the tenant; empty means the default conversation. channel and
// chatID address the surface the request arrived on and are visible to
// tools that reply out-of-band.
func (e *Engine) ProcessForUser(ctx context.Context, tenantID, message, sessionKey, channel, chatID string) (string, error) {
	rt, err := e.Runtime(tenantID)
	if err != nil {
		return "", err
	}
	return e.ProcessDirect(ctx, rt, message, sessionKey, channel, chatID)
}

// ProcessDirect runs the bounded think/act loop against an
// already-resolved runtime.
//
// The loop sends the conversation buffer plus the tool catalogue to
// the model. A reply with no tool calls ends the loop; otherwise every
// requested call executes sequentially in emission order, each result
// is appended as a tool turn, and the model is consulted again. Tool
// failures become model-visible "Error: ..." turns so the model can
// self-correct; model-call failures propagate to the caller.
//
// The session gains exactly two messages per invocation, the user turn
// and the final content, appended and saved once after the loop ends.
func (e *Engine) ProcessDirect(ctx context.Context, rt *TenantRuntime, content, sessionKey, channel, chatID string) (string, error) {
	if e.llm == nil {
		return "", ErrNoModel
	}

	sess, err := rt.Sessions.GetOrCreate(sessionKey)
	if err != nil {
		return "", err
	}

	userTurn := llm.Message{Role: "user", Content: content}

	buffer := make([]llm.Message, 0, len(sess.Messages)+2)
	buffer = append(buffer, llm.Message{Role: "system", Content: e.buildSystemContext(rt)})
	buffer = append(buffer, sess.Messages...)
	buffer = append(buffer, userTurn)

	ctx = tools.WithCallContext(ctx, tools.CallContext{Channel: channel, ChatID: chatID})
	defs := rt.Registry.Definitions()

	final := fallbackResponse
	for iteration := 0; iteration < e.maxIterations; iteration++ {
		resp, err := e.llm.Chat(ctx, e.model, buffer, defs)
		if err != nil {
			return "", fmt.Errorf("model call: %w", err)
		}

		if len(resp.Message.ToolCalls) == 0 {
			final = resp.Message.Content
			break
		}

		buffer = append(buffer, resp.Message)
		for _, call := range resp.Message.ToolCalls {
			result, err := rt.Registry.Execute(ctx, call.Function.Name, call.Function.Arguments)
			if err != nil {
				result = "Error: " + err.Error()
				e.logger.Warn("tool call failed",
					"tenant", rt.TenantID, "tool", call.Function.Name, "error", err)
			}
			buffer = append(buffer, llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
			})
		}
		e.logger.Debug("loop iteration",
			"tenant", rt.TenantID, "iteration", iteration+1, "tool_calls", len(resp.Message.ToolCalls))
	}

	sess.Append(userTurn, llm.Message{Role: "assistant", Content: final})
	if err := rt.Sessions.Save(sess); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	return final, nil
}
