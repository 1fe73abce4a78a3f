package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConvertToAnthropic_SystemExtraction(t *testing.T) {
	messages := []Message{
		{Role: "system", Content: "You are a market analyst."},
		{Role: "system", Content: "Tenant context here."},
		{Role: "user", Content: "hello"},
	}

	msgs, system := convertToAnthropic(messages)

	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Role != "user" {
		t.Errorf("role = %q, want user", msgs[0].Role)
	}
	want := "You are a market analyst.\n\nTenant context here."
	if system != want {
		t.Errorf("system = %q, want %q", system, want)
	}
}

func TestConvertToAnthropic_ToolRoundTrip(t *testing.T) {
	messages := []Message{
		{Role: "user", Content: "quote AAPL"},
		{
			Role:      "assistant",
			ToolCalls: []ToolCall{NewToolCall("toolu_1", "market_quote", map[string]any{"symbol": "AAPL"})},
		},
		{Role: "tool", ToolCallID: "toolu_1", Content: "AAPL: 231.50"},
	}

	msgs, _ := convertToAnthropic(messages)

	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}

	blocks, ok := msgs[1].Content.([]anthropicContent)
	if !ok {
		t.Fatalf("assistant content is %T, want []anthropicContent", msgs[1].Content)
	}
	if len(blocks) != 1 || blocks[0].Type != "tool_use" {
		t.Fatalf("assistant blocks = %+v, want one tool_use", blocks)
	}
	if blocks[0].ID != "toolu_1" || blocks[0].Name != "market_quote" {
		t.Errorf("tool_use block = %+v", blocks[0])
	}

	// Tool results go back as user messages with tool_result blocks
	results, ok := msgs[2].Content.([]anthropicContent)
	if !ok || msgs[2].Role != "user" {
		t.Fatalf("tool result message = %+v", msgs[2])
	}
	if results[0].Type != "tool_result" || results[0].ToolUseID != "toolu_1" {
		t.Errorf("tool_result block = %+v", results[0])
	}
}

func TestConvertToolsToAnthropic(t *testing.T) {
	tools := []map[string]any{
		{
			"type": "function",
			"function": map[string]any{
				"name":        "read_file",
				"description": "Read a file from the workspace",
				"parameters": map[string]any{
					"type":       "object",
					"properties": map[string]any{"path": map[string]any{"type": "string"}},
				},
			},
		},
	}

	got := convertToolsToAnthropic(tools)
	if len(got) != 1 {
		t.Fatalf("got %d tools, want 1", len(got))
	}
	if got[0].Name != "read_file" {
		t.Errorf("name = %q", got[0].Name)
	}
	if got[0].InputSchema == nil {
		t.Error("input schema missing")
	}
}

func TestConvertFromAnthropic(t *testing.T) {
	resp := &anthropicResponse{
		Role:  "assistant",
		Model: "claude-sonnet-4-20250514",
		Content: []anthropicContent{
			{Type: "text", Text: "Checking the quote."},
			{Type: "tool_use", ID: "toolu_9", Name: "market_quote", Input: map[string]any{"symbol": "NVDA"}},
		},
		Usage: anthropicUsage{InputTokens: 12, OutputTokens: 34},
	}

	got := convertFromAnthropic(resp)
	if got.Message.Content != "Checking the quote." {
		t.Errorf("content = %q", got.Message.Content)
	}
	if len(got.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(got.Message.ToolCalls))
	}
	tc := got.Message.ToolCalls[0]
	if tc.ID != "toolu_9" || tc.Function.Name != "market_quote" {
		t.Errorf("tool call = %+v", tc)
	}
	if got.InputTokens != 12 || got.OutputTokens != 34 {
		t.Errorf("usage = %d/%d", got.InputTokens, got.OutputTokens)
	}
}

func TestParseTextToolCalls(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantLen  int
		wantName string
	}{
		{"plain text", "Hello, here is your report.", 0, ""},
		{"single object", `{"name": "web_search", "arguments": {"query": "NVDA earnings"}}`, 1, "web_search"},
		{"array", `[{"name": "read_file", "arguments": {"path": "a.md"}}, {"name": "list_files", "arguments": {}}]`, 2, "read_file"},
		{"tagged", `<tool_call>{"name": "market_quote", "arguments": {"symbol": "AAPL"}}</tool_call>`, 1, "market_quote"},
		{"unclosed tag", `<tool_call>{"name": "market_quote", "arguments": {}}`, 1, "market_quote"},
		{"empty", "", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTextToolCalls(tt.content)
			if len(got) != tt.wantLen {
				t.Fatalf("got %d calls, want %d", len(got), tt.wantLen)
			}
			if tt.wantLen > 0 && got[0].Function.Name != tt.wantName {
				t.Errorf("first call = %q, want %q", got[0].Function.Name, tt.wantName)
			}
		})
	}
}

func TestOllamaChat_ContentToolCallFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model":   "qwen3",
			"message": map[string]any{"role": "assistant", "content": `{"name": "web_search", "arguments": {"query": "fed rates"}}`},
			"done":    true,
		})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL)
	resp, err := c.Chat(context.Background(), "qwen3", []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(resp.Message.ToolCalls))
	}
	if resp.Message.Content != "" {
		t.Errorf("content should be cleared after tool call extraction, got %q", resp.Message.Content)
	}
}
