// Package memory keeps per-chat conversation history for the agent.
// History is in-memory and bounded: each chat keeps at most maxTurns
// messages, oldest evicted first. Tool traffic within a run is not
// recorded here; only the user prompt and the final assistant reply
// survive a run.
package memory

import (
	"sync"

	"github.com/hearthd/hearth/internal/llm"
)

// History is a bounded per-chat message store. Safe for concurrent use.
type History struct {
	mu       sync.Mutex
	maxTurns int
	chats    map[string][]llm.Message
}

// NewHistory creates a history bounded to maxTurns messages per chat.
func NewHistory(maxTurns int) *History {
	if maxTurns <= 0 {
		maxTurns = 20
	}
	return &History{
		maxTurns: maxTurns,
		chats:    make(map[string][]llm.Message),
	}
}

// Append adds a message to a chat, evicting the oldest if over bound.
func (h *History) Append(chatID string, msg llm.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := append(h.chats[chatID], msg)
	if excess := len(msgs) - h.maxTurns; excess > 0 {
		msgs = msgs[excess:]
	}
	// Never start history on a dangling tool result; the model rejects
	// a tool_result with no preceding tool_use.
	for len(msgs) > 0 && msgs[0].Role == "tool" {
		msgs = msgs[1:]
	}
	h.chats[chatID] = msgs
}

// Messages returns a copy of the chat's history, oldest first.
func (h *History) Messages(chatID string) []llm.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := h.chats[chatID]
	out := make([]llm.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Clear forgets one chat's history.
func (h *History) Clear(chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.chats, chatID)
}

// Len returns the number of stored messages for a chat.
func (h *History) Len(chatID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.chats[chatID])
}
