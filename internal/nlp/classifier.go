package nlp

import "context"

// Action is the decision a classifier makes for one utterance.
type Action string

const (
	// ActionRespond routes the utterance to answer generation.
	ActionRespond Action = "respond"

	// ActionWait defers: the utterance may be the start of a question whose
	// continuation should arrive shortly.
	ActionWait Action = "wait"

	// ActionIgnore drops the utterance.
	ActionIgnore Action = "ignore"
)

// Result is the outcome of classifying one utterance.
type Result struct {
	// Intent is a short label such as "algorithmic" or "behavioral".
	Intent string

	// Action decides what the orchestrator does with the utterance.
	Action Action

	// Confidence is the classifier's self-reported certainty in [0, 1].
	Confidence float64

	// Reasoning is a human-readable diagnostic, never shown to end users.
	Reasoning string
}

// Classifier assigns an intent and action to the most recent utterance.
// Implementations may keep bounded per-session history; Reset clears it.
// A Classifier instance belongs to exactly one speaker channel and is not
// shared, so implementations need not be goroutine-safe.
type Classifier interface {
	Classify(ctx context.Context, text string) Result
	Reset()
}

// Intent labels produced by the rule classifier.
const (
	IntentFiller       = "filler"
	IntentBehavioral   = "behavioral"
	IntentAlgorithmic  = "algorithmic"
	IntentSystemDesign = "system-design"
	IntentClarify      = "clarification"
	IntentUnknown      = "unknown"
	IntentNone         = "none"
)
