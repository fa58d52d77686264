// Package answer turns a classified question into a spoken-style reply.
//
// The Generator wraps an llm.Provider (usually an LLMFailover spanning Groq
// and a fallback backend) and keeps a bounded per-session history so
// follow-up questions land with context. Backend failure never reaches the
// caller: it degrades to an intent-keyed scripted answer carrying the
// failure reason, because the person in the interview needs something on
// screen more than they need a stack trace.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sotto-ai/sotto/pkg/provider/llm"
)

// Mode selects the length budget of a generated answer.
type Mode string

const (
	// ModeConcise targets a 2-3 sentence spoken reply.
	ModeConcise Mode = "concise"

	// ModeDetailed allows a longer, structured reply.
	ModeDetailed Mode = "detailed"
)

// Token budgets per mode.
const (
	conciseMaxTokens  = 180
	detailedMaxTokens = 350
)

// maxHistory bounds the rolling conversation kept across generate calls.
const maxHistory = 10

const generationTemperature = 0.3

// Confidence values reported on generated answers.
const (
	generatedConfidence = 0.9
	fallbackConfidence  = 0.4
)

// Answer is one generated (or fallback) reply.
type Answer struct {
	Text       string
	Mode       Mode
	Confidence float64
}

// Request describes one generation.
type Request struct {
	// Question is the finalized utterance to answer.
	Question string

	// Intent is the classified intent, embedded in the prompt and used to
	// pick a fallback script.
	Intent string

	// Mode selects the length budget. Empty means concise.
	Mode Mode

	// Transcript holds recent conversation lines, oldest first, included as
	// background in the prompt so follow-ups resolve against what was said.
	Transcript []string

	// OnDelta, when set, receives the accumulated answer text after each
	// streamed fragment. Called from the generating goroutine; must be fast.
	OnDelta func(text string)
}

// Generator produces interview answers through an LLM backend.
// A Generator belongs to one session; it is not safe for concurrent use.
type Generator struct {
	provider llm.Provider
	logger   *slog.Logger
	history  []llm.Message
}

// NewGenerator creates a Generator on top of provider. A nil logger selects
// slog.Default.
func NewGenerator(provider llm.Provider, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{provider: provider, logger: logger}
}

// Generate produces an answer for req. Backend failure is absorbed into a
// fallback script whose text carries the failure reason, so the caller
// always gets a usable Answer — with one exception: when ctx is cancelled
// the generation is abandoned, nothing is logged as a failure, and the zero
// Answer comes back for the caller to discard.
func (g *Generator) Generate(ctx context.Context, req Request) Answer {
	mode := req.Mode
	if mode == "" {
		mode = ModeConcise
	}
	maxTokens := conciseMaxTokens
	if mode == ModeDetailed {
		maxTokens = detailedMaxTokens
	}

	g.push(llm.Message{Role: "user", Content: buildPrompt(req.Question, req.Intent, req.Transcript)})

	chunks, err := g.provider.StreamCompletion(ctx, llm.CompletionRequest{
		Messages:    g.history,
		Temperature: generationTemperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return g.abandon()
		}
		g.logger.Warn("answer generation failed to start", "error", err)
		return fallbackAnswer(req.Intent, err.Error())
	}

	var (
		sb        strings.Builder
		streamErr string
	)
	for chunk := range chunks {
		if chunk.FinishReason == llm.FinishError {
			streamErr = chunk.Text
			continue
		}
		if chunk.Text == "" {
			continue
		}
		sb.WriteString(chunk.Text)
		if req.OnDelta != nil {
			req.OnDelta(sb.String())
		}
	}

	text := strings.TrimSpace(sb.String())
	if ctx.Err() != nil {
		return g.abandon()
	}
	if streamErr != "" || text == "" {
		if streamErr == "" {
			streamErr = "empty completion"
		}
		g.logger.Warn("answer generation failed", "error", streamErr)
		return fallbackAnswer(req.Intent, streamErr)
	}

	g.push(llm.Message{Role: "assistant", Content: text})

	return Answer{Text: text, Mode: mode, Confidence: generatedConfidence}
}

// Reset clears the rolling history. Call on new-session start.
func (g *Generator) Reset() {
	g.history = nil
}

// push appends a turn and trims the history to its cap, oldest first.
func (g *Generator) push(m llm.Message) {
	g.history = append(g.history, m)
	if len(g.history) > maxHistory {
		g.history = g.history[len(g.history)-maxHistory:]
	}
}

// abandon unwinds a cancelled generation: the question never happened as far
// as the history is concerned, and the zero Answer tells the caller to
// discard rather than display.
func (g *Generator) abandon() Answer {
	if n := len(g.history); n > 0 {
		g.history = g.history[:n-1]
	}
	return Answer{}
}

// buildPrompt renders the generation prompt for one question.
func buildPrompt(question, intent string, transcript []string) string {
	var background string
	if len(transcript) > 0 {
		background = "Recent conversation:\n" + strings.Join(transcript, "\n") + "\n\n"
	}
	return strings.TrimSpace(fmt.Sprintf(`
You are helping a candidate answer an interview question verbally.

%sQuestion:
%s

Intent:
%s

Instructions:
- Answer as if speaking in an interview
- Use plain text only (no markdown, no bullets)
- Limit to 2-3 sentences
- Be clear and confident
- Do NOT mention AI
- Do NOT list options unless explicitly asked

Answer:`, background, question, intent))
}

// fallbackAnswer returns the intent-keyed scripted reply used when the
// backend is unavailable. The reason is embedded for observability; the
// surrounding script keeps the reply usable on its own.
func fallbackAnswer(intent, reason string) Answer {
	var text string
	switch intent {
	case "algorithmic":
		text = "Start by restating the problem. " +
			"Clarify constraints and edge cases. " +
			"Explain the core approach, then analyze time and space complexity."
	case "behavioral":
		text = "Use the STAR method: describe the situation, " +
			"your role, the actions you took, and the result."
	default:
		text = "Ask a clarifying question or explain your thinking briefly."
	}

	return Answer{
		Text:       fmt.Sprintf("[generator unavailable: %s] %s", reason, text),
		Mode:       ModeConcise,
		Confidence: fallbackConfidence,
	}
}
