// Package audio defines the types and conversion primitives for audio flowing
// through the sotto capture pipeline.
//
// The atomic unit of transport is the [AudioFrame]: a chunk of interleaved
// little-endian int16 PCM captured from one input device. Frames are produced
// by a [FrameSource] on a latency-sensitive callback, handed across the
// thread boundary by a [BoundedRelay], converted to the recognizer's format
// by the pure functions in convert.go, and consumed exactly once downstream.
package audio

import "time"

// AudioFrame represents a single frame of captured audio. Frames are treated
// as immutable after creation; no pipeline stage retains a frame past the
// point where it consumes it.
type AudioFrame struct {
	// Data is interleaved little-endian int16 PCM.
	Data []byte

	// SampleRate in Hz at capture time (e.g., 44100).
	SampleRate int

	// Channels is the interleaved channel count (2 for most capture devices).
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// RecognizerFormat is the fixed format every speech recognizer session is fed:
// mono 16 kHz int16 PCM.
var RecognizerFormat = Format{SampleRate: 16000, Channels: 1}
