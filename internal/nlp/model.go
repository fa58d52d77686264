package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sotto-ai/sotto/pkg/provider/llm"
)

// maxClassifierHistory bounds the rolling context the model classifier keeps
// for follow-up detection. Oldest turns are evicted first.
const maxClassifierHistory = 4

const classifierPrompt = `You classify interview speech transcripts.

Only classify the MOST RECENT message.
Do not infer intent from older messages unless the latest message is meaningful.

Respond with a single JSON object, no prose:
{"intent": string, "action": "respond"|"wait"|"ignore", "confidence": number, "reasoning": string}

Rules:

1. If the latest message is filler (yeah, hmm, okay), a single word (unless
   clearly a question like "Why?"), grammatically invalid, or incomplete,
   set intent "none" and action "ignore".
2. A clear, complete standalone interview question gets action "respond" with
   an intent such as "algorithmic", "behavioral", "system-design", or
   "clarification".
3. A follow-up must be a meaningful complete sentence that continues the
   previous topic; classify it with action "respond".
4. If the latest message is unclear or broken, ignore previous context and
   use action "ignore".

Be conservative. When unsure, choose "ignore".`

// ModelClassifier is the model-backed classifier variant. It keeps a bounded
// rolling history for follow-up detection and asks an LLM for a
// closed-schema decision. Collaborator failure is absorbed into an ignore
// result, never surfaced to the caller.
type ModelClassifier struct {
	provider llm.Provider
	logger   *slog.Logger
	history  []llm.Message
}

var _ Classifier = (*ModelClassifier)(nil)

// NewModelClassifier creates a classifier backed by provider. A nil logger
// selects slog.Default.
func NewModelClassifier(provider llm.Provider, logger *slog.Logger) *ModelClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelClassifier{provider: provider, logger: logger}
}

// Classify runs the cheap acknowledgement pre-filter, then consults the
// model with the rolling history. The utterance joins the history before the
// call; the decision joins it only when the action is respond, so ignored
// chatter does not pollute follow-up context.
func (c *ModelClassifier) Classify(ctx context.Context, text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Intent: IntentNone, Action: ActionIgnore, Confidence: 1.0, Reasoning: "empty text"}
	}
	if acknowledgements[strings.Trim(strings.ToLower(text), ".!?")] {
		return Result{Intent: IntentNone, Action: ActionIgnore, Confidence: 0.95, Reasoning: "acknowledgement"}
	}

	c.history = append(c.history, llm.Message{Role: "user", Content: text})
	if len(c.history) > maxClassifierHistory {
		c.history = c.history[len(c.history)-maxClassifierHistory:]
	}

	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: classifierPrompt,
		Messages:     c.history,
		Temperature:  0,
	})
	if err != nil || resp == nil {
		c.logger.Warn("classifier model call failed", "error", err)
		return Result{Intent: IntentUnknown, Action: ActionIgnore, Confidence: 0, Reasoning: fmt.Sprintf("classification error: %v", err)}
	}

	result, err := parseDecision(resp.Content)
	if err != nil {
		c.logger.Warn("classifier returned malformed decision", "error", err)
		return Result{Intent: IntentUnknown, Action: ActionIgnore, Confidence: 0, Reasoning: fmt.Sprintf("classification error: %v", err)}
	}

	if result.Action == ActionRespond {
		c.history = append(c.history, llm.Message{
			Role:    "assistant",
			Content: fmt.Sprintf("intent=%s action=%s", result.Intent, result.Action),
		})
		if len(c.history) > maxClassifierHistory {
			c.history = c.history[len(c.history)-maxClassifierHistory:]
		}
	}
	return result
}

// Reset clears the rolling history. Call on new-session start.
func (c *ModelClassifier) Reset() {
	c.history = nil
}

// parseDecision validates the model's JSON reply against the closed schema.
// Missing or out-of-range fields are failures, not defaults.
func parseDecision(content string) (Result, error) {
	content = strings.TrimSpace(content)
	// Models occasionally wrap JSON in a code fence despite instructions.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var raw struct {
		Intent     *string  `json:"intent"`
		Action     *string  `json:"action"`
		Confidence *float64 `json:"confidence"`
		Reasoning  string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Result{}, fmt.Errorf("nlp: decode decision: %w", err)
	}
	if raw.Intent == nil || raw.Action == nil || raw.Confidence == nil {
		return Result{}, fmt.Errorf("nlp: decision missing required fields")
	}

	action := Action(*raw.Action)
	switch action {
	case ActionRespond, ActionWait, ActionIgnore:
	default:
		return Result{}, fmt.Errorf("nlp: invalid action %q", *raw.Action)
	}
	if *raw.Confidence < 0 || *raw.Confidence > 1 {
		return Result{}, fmt.Errorf("nlp: confidence %v out of range", *raw.Confidence)
	}

	return Result{
		Intent:     *raw.Intent,
		Action:     action,
		Confidence: *raw.Confidence,
		Reasoning:  raw.Reasoning,
	}, nil
}
