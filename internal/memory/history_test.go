package memory

import (
	"fmt"
	"testing"

	"github.com/hearthd/hearth/internal/llm"
)

func TestAppendAndMessages(t *testing.T) {
	h := NewHistory(10)

	h.Append("chat1", llm.Message{Role: "user", Content: "hello"})
	h.Append("chat1", llm.Message{Role: "assistant", Content: "hi"})
	h.Append("chat2", llm.Message{Role: "user", Content: "other chat"})

	msgs := h.Messages("chat1")
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].Content != "hello" || msgs[1].Content != "hi" {
		t.Errorf("messages = %v", msgs)
	}
	if h.Len("chat2") != 1 {
		t.Error("chats should be independent")
	}
}

func TestEvictsOldestFirst(t *testing.T) {
	h := NewHistory(4)

	for i := 0; i < 10; i++ {
		h.Append("c", llm.Message{Role: "user", Content: fmt.Sprintf("msg %d", i)})
	}

	msgs := h.Messages("c")
	if len(msgs) != 4 {
		t.Fatalf("len = %d, want 4", len(msgs))
	}
	if msgs[0].Content != "msg 6" || msgs[3].Content != "msg 9" {
		t.Errorf("messages = %v", msgs)
	}
}

func TestEvictionDropsDanglingToolResult(t *testing.T) {
	h := NewHistory(2)

	h.Append("c", llm.Message{Role: "user", Content: "q"})
	h.Append("c", llm.Message{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "t1", Name: "get_state"}}})
	h.Append("c", llm.Message{Role: "tool", ToolCallID: "t1", Content: "on"})
	h.Append("c", llm.Message{Role: "assistant", Content: "it is on"})

	msgs := h.Messages("c")
	// The bound of 2 would leave the tool result first; it must go too.
	if len(msgs) != 1 || msgs[0].Content != "it is on" {
		t.Errorf("messages = %v", msgs)
	}
}

func TestClear(t *testing.T) {
	h := NewHistory(10)
	h.Append("c", llm.Message{Role: "user", Content: "hello"})
	h.Clear("c")

	if h.Len("c") != 0 {
		t.Error("history not cleared")
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	h := NewHistory(10)
	h.Append("c", llm.Message{Role: "user", Content: "original"})

	msgs := h.Messages("c")
	msgs[0].Content = "mutated"

	if h.Messages("c")[0].Content != "original" {
		t.Error("Messages exposed internal state")
	}
}
