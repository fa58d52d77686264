// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a transcription service (a local Whisper server, the
// Deepgram streaming API) and exposes a uniform streaming interface. The
// central abstraction is SessionHandle: once opened, a session accepts raw PCM
// audio and emits two streams of Transcript values — low-latency partials for
// display and authoritative finals that drive classification and answering.
//
// Delivery contract: finals are never dropped; a slow consumer backpressures
// the session instead. Partials are best-effort and may be discarded when the
// consumer lags.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"time"
)

// StreamConfig describes the audio format and recognition hints for a new STT
// session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Sessions are fed
	// recognizer-format audio, so this is normally 16000.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono, which every
	// supported backend requires.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// Empty lets the provider auto-detect, if supported.
	Language string

	// Vocabulary lists domain terms (product names, algorithm names,
	// framework names) whose recognition the provider should favour.
	// Providers without vocabulary support ignore it.
	Vocabulary []string
}

// Transcript is a speech-to-text result. Both partial (interim) and final
// transcripts use this type.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal distinguishes authoritative results from interim guesses.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). Zero if the
	// provider does not report confidence.
	Confidence float64

	// Timestamp marks when the utterance started, relative to session start.
	Timestamp time.Duration

	// Duration is the length of the utterance, when known.
	Duration time.Duration
}

// SessionHandle represents an open STT streaming session. It is an interface
// so test code can provide mock implementations without a live connection.
//
// Callers must call Close when the session is no longer needed; failing to do
// so leaks goroutines and network connections inside the provider. All methods
// must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio bytes for transcription.
	// The chunk must match the SampleRate, Channels, and 16-bit depth agreed
	// in StreamConfig. Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Partials returns a read-only channel of interim Transcript values.
	// Delivery is best-effort: values may be dropped if the consumer lags.
	// The channel is closed when the session ends.
	Partials() <-chan Transcript

	// Finals returns a read-only channel of authoritative Transcript values.
	// Finals are delivered in recognition order and never dropped; a slow
	// consumer stalls the session rather than losing a result.
	// The channel is closed when the session ends.
	Finals() <-chan Transcript

	// Close terminates the session, flushes pending audio, and releases all
	// resources. After Close returns, Partials and Finals are closed. Calling
	// Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any STT backend.
//
// Implementations must be safe for concurrent use. Multiple sessions may be
// open simultaneously (one per captured channel).
type Provider interface {
	// StartStream opens a new streaming transcription session. The returned
	// SessionHandle is ready to accept audio immediately.
	//
	// Returns an error if the session cannot be established (authentication
	// failure, unsupported configuration, ctx already cancelled). The caller
	// owns the SessionHandle and must call Close when done.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
