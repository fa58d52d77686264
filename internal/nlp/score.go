// Package nlp scores and classifies finalized transcripts so the session
// layer can decide which utterances deserve a generated answer.
//
// The pipeline applies two stages per utterance: a cheap lexical
// QuestionScorer gates obviously non-question speech, then a Classifier
// assigns an intent and a respond/ignore/wait action. Classification is
// either rule-based (no network) or model-backed, selected by configuration.
package nlp

import "strings"

// DefaultScoreThreshold is the question score at or above which an utterance
// proceeds to classification.
const DefaultScoreThreshold = 0.5

// Signal weights. Each matched signal adds its weight; the sum is clamped
// to 1.0.
const (
	weightLength        = 0.2
	weightInterrogative = 0.3
	weightAuxiliary     = 0.3
	weightImperative    = 0.2

	// minQuestionWords is the word count at which length contributes.
	minQuestionWords = 6
)

var interrogatives = []string{
	"what", "why", "how", "when", "where", "which", "who",
}

var auxiliaries = map[string]bool{
	"do": true, "does": true, "did": true,
	"have": true, "has": true,
	"can": true, "could": true, "would": true, "will": true, "should": true,
	"are": true, "is": true,
}

var imperativeLeads = []string{
	"explain",
	"describe",
	"tell me",
	"walk me through",
	"talk about",
}

// QuestionScorer estimates how likely an utterance is a question directed at
// the candidate. It is purely lexical: no network, no state, deterministic.
type QuestionScorer struct{}

// Score returns a value in [0, 1]. The score accumulates independent
// signals — utterance length, interrogative words, auxiliary verbs, and
// imperative leads like "walk me through" — and clamps the sum.
func (QuestionScorer) Score(text string) float64 {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return 0
	}
	words := strings.Fields(normalized)

	var score float64

	if len(words) >= minQuestionWords {
		score += weightLength
	}

	for _, w := range interrogatives {
		if strings.Contains(normalized, w) {
			score += weightInterrogative
			break
		}
	}

	for _, w := range words {
		if auxiliaries[strings.Trim(w, ",.?!")] {
			score += weightAuxiliary
			break
		}
	}

	for _, lead := range imperativeLeads {
		if strings.HasPrefix(normalized, lead) {
			score += weightImperative
			break
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}
