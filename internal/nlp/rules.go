package nlp

import (
	"context"
	"strings"
)

// acknowledgements are closed-set phrases that are never questions.
var acknowledgements = map[string]bool{
	"okay": true, "ok": true, "yeah": true, "yes": true, "no": true,
	"thanks": true, "thank you": true, "great": true, "nice": true,
	"right": true, "sure": true, "got it": true, "i see": true,
}

// intentBucket pairs a keyword set with the result returned on first match.
// Buckets are tested in order; the first hit wins.
type intentBucket struct {
	keywords []string
	result   Result
}

var intentBuckets = []intentBucket{
	{
		keywords: []string{
			"tell me about a time", "a time you", "a time when",
			"describe a situation", "conflict", "teamwork", "weakness",
			"strength", "challenge you faced", "proud of", "disagree",
			"hard bug", "difficult bug",
		},
		result: Result{Intent: IntentBehavioral, Action: ActionRespond, Confidence: 0.85, Reasoning: "behavioral keyword match"},
	},
	{
		keywords: []string{
			"complexity", "algorithm", "data structure", "binary search",
			"sort", "hash", "linked list", "recursion", "big o",
			"time complexity", "optimize", "edge case",
		},
		result: Result{Intent: IntentAlgorithmic, Action: ActionRespond, Confidence: 0.85, Reasoning: "algorithmic keyword match"},
	},
	{
		keywords: []string{
			"design a system", "system design", "scale", "architecture",
			"load balancer", "database schema", "microservice", "throughput",
			"high availability",
		},
		result: Result{Intent: IntentSystemDesign, Action: ActionRespond, Confidence: 0.85, Reasoning: "system design keyword match"},
	},
	{
		keywords: []string{
			"what do you mean", "could you repeat", "can you clarify",
			"did you say", "pardon",
		},
		result: Result{Intent: IntentClarify, Action: ActionRespond, Confidence: 0.8, Reasoning: "clarification keyword match"},
	},
}

// minMeaningfulWords is the word count below which an utterance is filler
// unless it starts with an interrogative.
const minMeaningfulWords = 3

// RuleClassifier is the deterministic classifier variant: a short-circuit
// rule chain with no network dependency and no history. It trades recall for
// zero latency and total predictability.
type RuleClassifier struct{}

var _ Classifier = (*RuleClassifier)(nil)

// Classify runs the rule chain: empty/filler → ignore, acknowledgement →
// ignore, then ordered keyword buckets, then a low-confidence wait default.
func (RuleClassifier) Classify(_ context.Context, text string) Result {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Result{Intent: IntentNone, Action: ActionIgnore, Confidence: 1.0, Reasoning: "empty text"}
	}

	trimmed := strings.Trim(normalized, ".!?")
	if acknowledgements[trimmed] {
		return Result{Intent: IntentNone, Action: ActionIgnore, Confidence: 0.95, Reasoning: "acknowledgement"}
	}

	words := strings.Fields(normalized)
	if len(words) < minMeaningfulWords && !startsInterrogative(words) {
		return Result{Intent: IntentFiller, Action: ActionIgnore, Confidence: 0.9, Reasoning: "too short to be a question"}
	}

	for _, bucket := range intentBuckets {
		for _, kw := range bucket.keywords {
			if strings.Contains(normalized, kw) {
				return bucket.result
			}
		}
	}

	return Result{Intent: IntentUnknown, Action: ActionWait, Confidence: 0.3, Reasoning: "no category matched"}
}

// Reset is a no-op; the rule classifier keeps no history.
func (RuleClassifier) Reset() {}

func startsInterrogative(words []string) bool {
	if len(words) == 0 {
		return false
	}
	first := strings.Trim(words[0], ",.?!")
	for _, w := range interrogatives {
		if first == w {
			return true
		}
	}
	return false
}
