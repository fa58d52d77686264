package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sotto-ai/sotto/internal/answer"
	"github.com/sotto-ai/sotto/internal/nlp"
	"github.com/sotto-ai/sotto/internal/observe"
)

// Hooks are the UI-facing callbacks of a session. All hooks are invoked from
// session goroutines, never from the audio callback thread; implementations
// must be safe for that and should return quickly. Any hook may be nil.
type Hooks struct {
	// OnPartial receives interim transcripts. Best-effort.
	OnPartial func(speaker, text string)

	// OnFinal receives every finalized utterance, including ones that are
	// not answered.
	OnFinal func(speaker, text string)

	// OnAnswer receives generated (or fallback) answer text. When the
	// generator streams, OnAnswer is called repeatedly with growing text;
	// the last call carries the complete answer.
	OnAnswer func(text string)
}

// OrchestratorConfig assembles an Orchestrator.
type OrchestratorConfig struct {
	// Scorer gates utterances before classification.
	Scorer nlp.QuestionScorer

	// ScoreThreshold is the minimum question score that proceeds to
	// classification. Non-positive selects nlp.DefaultScoreThreshold.
	ScoreThreshold float64

	// Classifier decides intent and action per utterance.
	Classifier nlp.Classifier

	// Generator produces answers for respond-classified utterances.
	Generator *answer.Generator

	// Mode selects the answer length budget.
	Mode answer.Mode

	// Hooks receive transcripts and answers.
	Hooks Hooks

	// Metrics records instrumentation. Nil disables it.
	Metrics *observe.Metrics

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Orchestrator consumes finalized utterances and decides, one at a time,
// whether each deserves a generated answer.
//
// Concurrency contract: Run is a single goroutine and generation happens
// inline in it, so at most one generation is ever in flight and answers come
// out in utterance order. A burst of N respond-classified utterances yields
// exactly N generations, serialized FIFO by the input channel.
type Orchestrator struct {
	cfg       OrchestratorConfig
	logger    *slog.Logger
	threshold float64
	context   *ConversationContext

	mu   sync.Mutex
	mode answer.Mode
}

// NewOrchestrator creates an Orchestrator from cfg.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.ScoreThreshold
	if threshold <= 0 {
		threshold = nlp.DefaultScoreThreshold
	}
	return &Orchestrator{
		cfg:       cfg,
		logger:    logger,
		threshold: threshold,
		context:   NewConversationContext(maxContextTurns),
		mode:      cfg.Mode,
	}
}

// SetMode switches the answer length budget for subsequent generations.
// Safe while the orchestrator is running.
func (o *Orchestrator) SetMode(m answer.Mode) {
	o.mu.Lock()
	o.mode = m
	o.mu.Unlock()
}

func (o *Orchestrator) answerMode() answer.Mode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}

// Run processes utterances until the channel closes or ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, utterances <-chan Utterance) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-utterances:
			if !ok {
				return nil
			}
			o.handle(ctx, u)
		}
	}
}

// handle runs the score → classify → generate chain for one utterance.
func (o *Orchestrator) handle(ctx context.Context, u Utterance) {
	if o.cfg.Hooks.OnFinal != nil {
		o.cfg.Hooks.OnFinal(u.Speaker, u.Text)
	}
	// Snapshot the conversation so far before this utterance joins it; the
	// generator gets the background, not the question twice.
	background := o.context.Transcript()
	o.context.Add("user", u.Speaker+": "+u.Text)

	if !u.Respond {
		return
	}

	threshold := o.threshold
	if u.Threshold > 0 {
		threshold = u.Threshold
	}
	score := o.cfg.Scorer.Score(u.Text)
	if score < threshold {
		o.logger.Debug("utterance below question threshold",
			"speaker", u.Speaker, "score", score)
		return
	}

	start := time.Now()
	result := o.cfg.Classifier.Classify(ctx, u.Text)
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.ClassificationDone(ctx, string(result.Action), time.Since(start))
	}

	switch result.Action {
	case nlp.ActionRespond:
		// Proceed to generation below.
	case nlp.ActionWait:
		// The utterance may be the front half of a question; the follow-up
		// will arrive as its own final.
		o.logger.Debug("deferring utterance", "speaker", u.Speaker, "reason", result.Reasoning)
		return
	default:
		o.logger.Debug("ignoring utterance", "speaker", u.Speaker, "reason", result.Reasoning)
		return
	}

	genStart := time.Now()
	ans := o.cfg.Generator.Generate(ctx, answer.Request{
		Question:   u.Text,
		Intent:     result.Intent,
		Mode:       o.answerMode(),
		Transcript: background,
		OnDelta:    o.cfg.Hooks.OnAnswer,
	})
	if ctx.Err() != nil {
		// Session is shutting down; whatever came back is discarded.
		return
	}
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.AnswerGenerated(ctx, result.Intent,
			ans.Confidence < generatedAnswerConfidence, time.Since(genStart))
	}

	o.context.Add("assistant", ans.Text)
	if o.cfg.Hooks.OnAnswer != nil {
		o.cfg.Hooks.OnAnswer(ans.Text)
	}
}

// generatedAnswerConfidence mirrors the confidence the generator reports on
// a successful (non-fallback) answer.
const generatedAnswerConfidence = 0.9

// Reset clears the conversation context and classifier history.
func (o *Orchestrator) Reset() {
	o.context.Reset()
	if o.cfg.Classifier != nil {
		o.cfg.Classifier.Reset()
	}
	if o.cfg.Generator != nil {
		o.cfg.Generator.Reset()
	}
}

// Context exposes the rolling conversation context, mainly for tests.
func (o *Orchestrator) Context() *ConversationContext { return o.context }
