package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sotto-ai/sotto/internal/observe"
	"github.com/sotto-ai/sotto/internal/transcript"
	"github.com/sotto-ai/sotto/pkg/audio"
	"github.com/sotto-ai/sotto/pkg/provider/stt"
)

// Utterance is one finalized, recognizer-delimited span of speech.
type Utterance struct {
	// Speaker is the configured identity of the channel ("Me",
	// "Interviewer").
	Speaker string

	// Text is the corrected transcript, non-empty and trimmed.
	Text string

	// Confidence is the recognizer's confidence in [0, 1], zero when the
	// backend does not report one.
	Confidence float64

	// Timestamp marks the utterance start relative to session start.
	Timestamp time.Duration

	// Respond reports whether this channel is configured for answer
	// generation (as opposed to transcript-only).
	Respond bool

	// Threshold is the channel's question-score threshold. Zero means the
	// orchestrator default.
	Threshold float64
}

// PipelineConfig assembles one per-speaker Pipeline.
type PipelineConfig struct {
	// Speaker is the logical identity attached to every utterance.
	Speaker string

	// Respond marks the channel as answer-eligible.
	Respond bool

	// ScoreThreshold overrides the orchestrator's question-score threshold
	// for this channel. Zero keeps the default.
	ScoreThreshold float64

	// Source delivers captured audio frames.
	Source audio.FrameSource

	// STT opens the transcription session.
	STT stt.Provider

	// Vocabulary biases recognition and drives transcript correction.
	Vocabulary []string

	// Language is the recognition language tag. Empty lets the provider
	// decide.
	Language string

	// OnPartial, when set, receives interim transcripts. Invoked from the
	// pipeline's forwarder goroutine; losing a partial under load is
	// acceptable and expected.
	OnPartial func(speaker, text string)

	// Metrics records pipeline instrumentation. Nil disables it.
	Metrics *observe.Metrics

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Pipeline owns one speaker channel: it feeds captured frames to the
// recognizer in arrival order and emits finalized utterances. Exactly one
// feeder goroutine talks to the recognizer session, because recognizers
// accumulate context across frames and are not safe for concurrent feeding.
//
// Finals are never dropped: when the consumer of Utterances lags, the
// pipeline blocks cooperatively. Partials are fire-and-forget.
type Pipeline struct {
	cfg     PipelineConfig
	logger  *slog.Logger
	out     chan Utterance
	started chan error

	// mu guards the hot-reloadable knobs below.
	mu        sync.RWMutex
	corrector *transcript.Corrector
	threshold float64
}

// NewPipeline creates a Pipeline from cfg.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Speaker == "" {
		return nil, fmt.Errorf("session: pipeline speaker must not be empty")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("session: pipeline %q needs a frame source", cfg.Speaker)
	}
	if cfg.STT == nil {
		return nil, fmt.Errorf("session: pipeline %q needs an STT provider", cfg.Speaker)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:       cfg,
		logger:    logger.With("speaker", cfg.Speaker),
		out:       make(chan Utterance),
		started:   make(chan error, 1),
		corrector: transcript.NewCorrector(cfg.Vocabulary),
		threshold: cfg.ScoreThreshold,
	}, nil
}

// Utterances returns the stream of finalized utterances, in recognition
// order. Closed when Run returns.
func (p *Pipeline) Utterances() <-chan Utterance { return p.out }

// Started reports the outcome of the startup phase: nil once the recognizer
// stream and the capture device are both open, or the error that prevented
// them. Run signals it exactly once.
func (p *Pipeline) Started() <-chan error { return p.started }

// SetVocabulary swaps the transcript-correction vocabulary. Safe while the
// pipeline is running; it applies to the next transcript. The recognizer's
// own bias list is fixed at stream open and is not touched.
func (p *Pipeline) SetVocabulary(words []string) {
	c := transcript.NewCorrector(words)
	p.mu.Lock()
	p.corrector = c
	p.mu.Unlock()
}

// SetScoreThreshold replaces the channel's question-score threshold for
// subsequent utterances.
func (p *Pipeline) SetScoreThreshold(v float64) {
	p.mu.Lock()
	p.threshold = v
	p.mu.Unlock()
}

func (p *Pipeline) correct(text string) string {
	p.mu.RLock()
	c := p.corrector
	p.mu.RUnlock()
	return c.Correct(text)
}

func (p *Pipeline) scoreThreshold() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.threshold
}

// Run starts capture and transcription and blocks until ctx is cancelled or
// the recognizer session ends. Startup failure (device or recognizer) is the
// only error surfaced, both here and on [Pipeline.Started]; after a
// successful start the pipeline degrades by dropping rather than failing.
func (p *Pipeline) Run(ctx context.Context) error {
	defer close(p.out)

	sess, err := p.cfg.STT.StartStream(ctx, stt.StreamConfig{
		SampleRate: audio.RecognizerFormat.SampleRate,
		Channels:   audio.RecognizerFormat.Channels,
		Language:   p.cfg.Language,
		Vocabulary: p.cfg.Vocabulary,
	})
	if err != nil {
		err = fmt.Errorf("session: start transcription for %q: %w", p.cfg.Speaker, err)
		p.started <- err
		return err
	}
	defer sess.Close()

	if err := p.cfg.Source.Start(ctx); err != nil {
		err = fmt.Errorf("session: start capture for %q: %w", p.cfg.Speaker, err)
		p.started <- err
		return err
	}
	p.started <- nil

	feederDone := make(chan struct{})
	go p.feed(ctx, sess, feederDone)

	forwarderDone := make(chan struct{})
	go p.forwardPartials(sess, forwarderDone)

	err = p.consumeFinals(ctx, sess)

	// Stopping the source closes the frame stream, which releases the
	// feeder; closing the session releases the forwarder.
	if stopErr := p.cfg.Source.Stop(); stopErr != nil {
		p.logger.Warn("capture stop failed", "error", stopErr)
	}
	sess.Close()
	<-feederDone
	<-forwarderDone
	return err
}

// feed is the single goroutine that owns the recognizer input: it converts
// each frame to mono 16 kHz and sends it in arrival order.
func (p *Pipeline) feed(ctx context.Context, sess stt.SessionHandle, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-p.cfg.Source.Frames():
			if !ok {
				return
			}
			pcm := audio.ToMono16k(frame.Data, frame.SampleRate, frame.Channels)
			if len(pcm) == 0 {
				continue
			}
			if err := sess.SendAudio(pcm); err != nil {
				// Session closed; nothing more to feed.
				return
			}
		}
	}
}

// forwardPartials relays interim transcripts to the OnPartial hook.
func (p *Pipeline) forwardPartials(sess stt.SessionHandle, done chan<- struct{}) {
	defer close(done)
	for t := range sess.Partials() {
		if p.cfg.OnPartial == nil || t.Text == "" {
			continue
		}
		p.cfg.OnPartial(p.cfg.Speaker, p.correct(t.Text))
	}
}

// consumeFinals converts final transcripts into Utterances, in order,
// blocking on the consumer rather than dropping.
func (p *Pipeline) consumeFinals(ctx context.Context, sess stt.SessionHandle) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-sess.Finals():
			if !ok {
				return nil
			}
			text := p.correct(t.Text)
			if text == "" {
				continue
			}
			if p.cfg.Metrics != nil {
				p.cfg.Metrics.UtteranceFinalized(ctx, p.cfg.Speaker)
			}
			u := Utterance{
				Speaker:    p.cfg.Speaker,
				Text:       text,
				Confidence: t.Confidence,
				Timestamp:  t.Timestamp,
				Respond:    p.cfg.Respond,
				Threshold:  p.scoreThreshold(),
			}
			select {
			case p.out <- u:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
