package session

import (
	"fmt"
	"testing"
)

func TestConversationContext_AddAndTurns(t *testing.T) {
	c := NewConversationContext(10)
	c.Add("user", "Interviewer: what is a goroutine?")
	c.Add("assistant", "A goroutine is a lightweight thread.")

	turns := c.Turns()
	if len(turns) != 2 {
		t.Fatalf("len = %d, want 2", len(turns))
	}
	if turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Errorf("roles = %q, %q", turns[0].Role, turns[1].Role)
	}
}

func TestConversationContext_EvictsOldestFirst(t *testing.T) {
	c := NewConversationContext(3)
	for i := 0; i < 5; i++ {
		c.Add("user", fmt.Sprintf("turn %d", i))
	}

	turns := c.Turns()
	if len(turns) != 3 {
		t.Fatalf("len = %d, want 3", len(turns))
	}
	if turns[0].Content != "turn 2" {
		t.Errorf("oldest surviving turn = %q, want %q", turns[0].Content, "turn 2")
	}
	if turns[2].Content != "turn 4" {
		t.Errorf("newest turn = %q, want %q", turns[2].Content, "turn 4")
	}
}

func TestConversationContext_DefaultCapacity(t *testing.T) {
	c := NewConversationContext(0)
	for i := 0; i < 25; i++ {
		c.Add("user", "x")
	}
	if c.Len() != maxContextTurns {
		t.Errorf("len = %d, want %d", c.Len(), maxContextTurns)
	}
}

func TestConversationContext_TurnsReturnsCopy(t *testing.T) {
	c := NewConversationContext(5)
	c.Add("user", "original")
	turns := c.Turns()
	turns[0].Content = "mutated"
	if c.Turns()[0].Content != "original" {
		t.Error("mutation through the returned slice leaked into the context")
	}
}

func TestConversationContext_Reset(t *testing.T) {
	c := NewConversationContext(5)
	c.Add("user", "x")
	c.Reset()
	if c.Len() != 0 {
		t.Errorf("len after reset = %d, want 0", c.Len())
	}
}
