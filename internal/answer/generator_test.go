package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sotto-ai/sotto/pkg/provider/llm"
	llmmock "github.com/sotto-ai/sotto/pkg/provider/llm/mock"
)

func TestGenerate_Success(t *testing.T) {
	p := &llmmock.Provider{
		StreamChunks: []llm.Chunk{
			{Text: "Binary search halves the range each step, "},
			{Text: "so it runs in logarithmic time."},
			{FinishReason: llm.FinishStop},
		},
	}
	g := NewGenerator(p, nil)

	got := g.Generate(context.Background(), Request{
		Question: "What is the time complexity of binary search?",
		Intent:   "algorithmic",
	})

	if got.Text != "Binary search halves the range each step, so it runs in logarithmic time." {
		t.Errorf("text = %q", got.Text)
	}
	if got.Mode != ModeConcise {
		t.Errorf("mode = %q, want concise", got.Mode)
	}
	if got.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", got.Confidence)
	}

	if len(p.StreamCalls) != 1 {
		t.Fatalf("stream calls = %d, want 1", len(p.StreamCalls))
	}
	req := p.StreamCalls[0].Req
	if req.MaxTokens != conciseMaxTokens {
		t.Errorf("max tokens = %d, want %d", req.MaxTokens, conciseMaxTokens)
	}
	if req.Temperature != generationTemperature {
		t.Errorf("temperature = %v", req.Temperature)
	}
	prompt := req.Messages[len(req.Messages)-1].Content
	if !strings.Contains(prompt, "What is the time complexity of binary search?") {
		t.Error("prompt missing the question")
	}
	if !strings.Contains(prompt, "algorithmic") {
		t.Error("prompt missing the intent")
	}
}

func TestGenerate_DetailedModeBudget(t *testing.T) {
	p := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{Text: "long answer"}, {FinishReason: llm.FinishStop}},
	}
	g := NewGenerator(p, nil)

	got := g.Generate(context.Background(), Request{
		Question: "Design a URL shortener",
		Intent:   "system-design",
		Mode:     ModeDetailed,
	})
	if got.Mode != ModeDetailed {
		t.Errorf("mode = %q", got.Mode)
	}
	if p.StreamCalls[0].Req.MaxTokens != detailedMaxTokens {
		t.Errorf("max tokens = %d, want %d", p.StreamCalls[0].Req.MaxTokens, detailedMaxTokens)
	}
}

func TestGenerate_StreamsDeltas(t *testing.T) {
	p := &llmmock.Provider{
		StreamChunks: []llm.Chunk{
			{Text: "First "},
			{Text: "second "},
			{Text: "third."},
			{FinishReason: llm.FinishStop},
		},
	}
	g := NewGenerator(p, nil)

	var deltas []string
	g.Generate(context.Background(), Request{
		Question: "q", Intent: "algorithmic",
		OnDelta: func(text string) { deltas = append(deltas, text) },
	})

	want := []string{"First ", "First second ", "First second third."}
	if len(deltas) != len(want) {
		t.Fatalf("deltas = %v", deltas)
	}
	for i := range want {
		if deltas[i] != want[i] {
			t.Errorf("delta %d = %q, want %q", i, deltas[i], want[i])
		}
	}
}

func TestGenerate_FallbackOnStartError(t *testing.T) {
	p := &llmmock.Provider{StreamErr: errors.New("connection refused")}
	g := NewGenerator(p, nil)

	tests := []struct {
		intent   string
		fragment string
	}{
		{"algorithmic", "restating the problem"},
		{"behavioral", "STAR method"},
		{"unknown", "clarifying question"},
	}
	for _, tt := range tests {
		t.Run(tt.intent, func(t *testing.T) {
			got := g.Generate(context.Background(), Request{Question: "q", Intent: tt.intent})
			if !strings.Contains(got.Text, "[generator unavailable: connection refused]") {
				t.Errorf("text %q missing fallback marker with reason", got.Text)
			}
			if !strings.Contains(got.Text, tt.fragment) {
				t.Errorf("text %q missing script for intent %s", got.Text, tt.intent)
			}
			if got.Confidence != 0.4 {
				t.Errorf("confidence = %v, want 0.4", got.Confidence)
			}
		})
	}
}

func TestGenerate_FallbackOnMidStreamError(t *testing.T) {
	p := &llmmock.Provider{
		StreamChunks: []llm.Chunk{
			{Text: "partial text before the failure"},
			{FinishReason: llm.FinishError, Text: "rate limit exceeded"},
		},
	}
	g := NewGenerator(p, nil)

	got := g.Generate(context.Background(), Request{Question: "q", Intent: "behavioral"})
	if !strings.Contains(got.Text, "rate limit exceeded") {
		t.Errorf("text %q missing failure detail", got.Text)
	}
	if got.Confidence != 0.4 {
		t.Errorf("confidence = %v, want 0.4", got.Confidence)
	}
}

func TestGenerate_EmptyCompletionFallsBack(t *testing.T) {
	p := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{FinishReason: llm.FinishStop}},
	}
	g := NewGenerator(p, nil)
	got := g.Generate(context.Background(), Request{Question: "q", Intent: "unknown"})
	if !strings.Contains(got.Text, "[generator unavailable:") {
		t.Errorf("text %q, want fallback", got.Text)
	}
}

func TestGenerator_HistoryBounded(t *testing.T) {
	p := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{Text: "answer"}, {FinishReason: llm.FinishStop}},
	}
	g := NewGenerator(p, nil)

	for i := 0; i < 20; i++ {
		g.Generate(context.Background(), Request{Question: "q", Intent: "algorithmic"})
	}
	if len(g.history) > maxHistory {
		t.Errorf("history = %d entries, exceeds cap %d", len(g.history), maxHistory)
	}
}

func TestGenerator_Reset(t *testing.T) {
	p := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{Text: "answer"}, {FinishReason: llm.FinishStop}},
	}
	g := NewGenerator(p, nil)
	g.Generate(context.Background(), Request{Question: "q", Intent: "x"})
	if len(g.history) == 0 {
		t.Fatal("expected history")
	}
	g.Reset()
	if len(g.history) != 0 {
		t.Error("history not cleared")
	}
}

func TestGenerate_CancellationDiscardsAnswer(t *testing.T) {
	t.Run("start error", func(t *testing.T) {
		p := &llmmock.Provider{StreamErr: context.Canceled}
		g := NewGenerator(p, nil)

		got := g.Generate(context.Background(), Request{Question: "q", Intent: "behavioral"})
		if got != (Answer{}) {
			t.Errorf("answer = %+v, want the zero value", got)
		}
		if len(g.history) != 0 {
			t.Errorf("history = %d entries, want the question unwound", len(g.history))
		}
	})

	t.Run("context cancelled mid-generation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		g := NewGenerator(&llmmock.Provider{}, nil)

		got := g.Generate(ctx, Request{Question: "q", Intent: "algorithmic"})
		if got != (Answer{}) {
			t.Errorf("answer = %+v, want the zero value", got)
		}
		if strings.Contains(got.Text, "[generator unavailable:") {
			t.Errorf("cancellation fabricated a fallback: %q", got.Text)
		}
		if len(g.history) != 0 {
			t.Errorf("history = %d entries, want the question unwound", len(g.history))
		}
	})
}

func TestGenerate_TranscriptBackgroundInPrompt(t *testing.T) {
	p := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{Text: "a"}, {FinishReason: llm.FinishStop}},
	}
	g := NewGenerator(p, nil)

	g.Generate(context.Background(), Request{
		Question: "Which index type fits this query pattern?",
		Intent:   "algorithmic",
		Transcript: []string{
			"Interviewer: We store orders in Postgres.",
			"You answered: I would index by customer id.",
		},
	})

	msgs := p.StreamCalls[0].Req.Messages
	prompt := msgs[len(msgs)-1].Content
	if !strings.Contains(prompt, "Recent conversation:") {
		t.Fatalf("prompt lacks background section:\n%s", prompt)
	}
	if !strings.Contains(prompt, "We store orders in Postgres.") {
		t.Errorf("prompt lacks transcript line:\n%s", prompt)
	}
	if strings.Index(prompt, "Recent conversation:") > strings.Index(prompt, "Question:") {
		t.Error("background placed after the question")
	}
}

func TestGenerate_MidStreamErrorDiscardsHistoryEntry(t *testing.T) {
	// A failed generation must not leave an assistant turn in history.
	p := &llmmock.Provider{StreamErr: errors.New("boom")}
	g := NewGenerator(p, nil)
	g.Generate(context.Background(), Request{Question: "q", Intent: "x"})
	for _, m := range g.history {
		if m.Role == "assistant" {
			t.Error("assistant turn recorded for failed generation")
		}
	}
}
