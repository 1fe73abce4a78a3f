package llm

import "context"

// Client is the interface all model providers implement.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	// Tool definitions use the OpenAI function-calling shape; providers
	// convert at their wire boundary.
	Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}
