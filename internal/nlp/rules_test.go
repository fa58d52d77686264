package nlp

import (
	"context"
	"testing"
)

func TestRuleClassifier(t *testing.T) {
	var c RuleClassifier
	ctx := context.Background()

	tests := []struct {
		name       string
		text       string
		wantAction Action
		wantIntent string
	}{
		{"empty", "", ActionIgnore, IntentNone},
		{"acknowledgement ok", "ok", ActionIgnore, IntentNone},
		{"acknowledgement punctuated", "Okay.", ActionIgnore, IntentNone},
		{"acknowledgement thanks", "thank you", ActionIgnore, IntentNone},
		{"single filler word", "hmm", ActionIgnore, IntentFiller},
		{"two word filler", "sounds good", ActionIgnore, IntentFiller},
		{"short interrogative passes filter", "Why?", ActionWait, IntentUnknown},
		{
			"behavioral question",
			"Can you walk me through a time you solved a hard bug?",
			ActionRespond, IntentBehavioral,
		},
		{
			"behavioral tell me about",
			"Tell me about a time you had a conflict with a teammate",
			ActionRespond, IntentBehavioral,
		},
		{
			"algorithmic question",
			"What is the time complexity of binary search and why",
			ActionRespond, IntentAlgorithmic,
		},
		{
			"system design question",
			"How would you design a system that handles a million writes per second",
			ActionRespond, IntentSystemDesign,
		},
		{
			"clarification",
			"Sorry, what do you mean by idempotent here?",
			ActionRespond, IntentClarify,
		},
		{
			"uncategorized meaningful speech",
			"So the next part of the interview is a coding exercise",
			ActionWait, IntentUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(ctx, tt.text)
			if got.Action != tt.wantAction {
				t.Errorf("action = %q, want %q", got.Action, tt.wantAction)
			}
			if got.Intent != tt.wantIntent {
				t.Errorf("intent = %q, want %q", got.Intent, tt.wantIntent)
			}
			if got.Confidence < 0 || got.Confidence > 1 {
				t.Errorf("confidence %v out of range", got.Confidence)
			}
			if got.Reasoning == "" {
				t.Error("reasoning must not be empty")
			}
		})
	}
}

func TestRuleClassifier_DefaultConfidence(t *testing.T) {
	var c RuleClassifier
	got := c.Classify(context.Background(), "we were just discussing the weather outside")
	if got.Action != ActionWait || got.Intent != IntentUnknown {
		t.Fatalf("got %+v, want unknown/wait default", got)
	}
	if got.Confidence != 0.3 {
		t.Errorf("default confidence = %v, want 0.3", got.Confidence)
	}
}
