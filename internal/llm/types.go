// Package llm provides the model client used by the agent loop.
package llm

import (
	"context"
	"log/slog"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message is one turn in a conversation.
type Message struct {
	Role       string     `json:"role"` // user, assistant, tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on tool result messages
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolDef describes one tool offered to the model.
type ToolDef struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ChatRequest is one model call.
type ChatRequest struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []ToolDef
	MaxTokens int
}

// ChatResponse is the model's reply.
type ChatResponse struct {
	Model      string
	Message    Message
	StopReason string // end_turn, tool_use, max_tokens

	InputTokens  int
	OutputTokens int
}

// Client is implemented by model providers.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
