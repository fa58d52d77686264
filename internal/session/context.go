// Package session wires capture, transcription, classification, and answer
// generation into per-speaker pipelines under one lifecycle.
package session

import "github.com/sotto-ai/sotto/pkg/provider/llm"

// maxContextTurns bounds the rolling conversation context kept per session.
const maxContextTurns = 10

// ConversationContext is an ordered, bounded record of recent (role,
// content) turns. When full, the oldest turn is evicted first. It is owned
// by a single orchestrator goroutine and needs no locking.
type ConversationContext struct {
	capacity int
	turns    []llm.Message
}

// NewConversationContext creates a context holding at most capacity turns.
// A non-positive capacity selects the default of 10.
func NewConversationContext(capacity int) *ConversationContext {
	if capacity <= 0 {
		capacity = maxContextTurns
	}
	return &ConversationContext{capacity: capacity}
}

// Add appends one turn, evicting the oldest when the capacity is exceeded.
func (c *ConversationContext) Add(role, content string) {
	c.turns = append(c.turns, llm.Message{Role: role, Content: content})
	if len(c.turns) > c.capacity {
		c.turns = c.turns[len(c.turns)-c.capacity:]
	}
}

// Turns returns a copy of the recorded turns, oldest first.
func (c *ConversationContext) Turns() []llm.Message {
	out := make([]llm.Message, len(c.turns))
	copy(out, c.turns)
	return out
}

// Transcript renders the retained turns as prompt background lines, oldest
// first. Utterance turns already carry their speaker prefix; generated
// answers are labeled as the copilot's own.
func (c *ConversationContext) Transcript() []string {
	lines := make([]string, 0, len(c.turns))
	for _, t := range c.turns {
		if t.Role == "assistant" {
			lines = append(lines, "You answered: "+t.Content)
		} else {
			lines = append(lines, t.Content)
		}
	}
	return lines
}

// Len reports the number of recorded turns.
func (c *ConversationContext) Len() int { return len(c.turns) }

// Reset discards all turns. Call on new-session start.
func (c *ConversationContext) Reset() {
	c.turns = nil
}
