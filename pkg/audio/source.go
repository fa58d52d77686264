package audio

import "context"

// FrameSource wraps one audio input device and exposes its capture stream.
//
// Implementations are provided by device-specific adapter packages (e.g.,
// audio/portaudio) and by audio/mock for tests. The interface is intentionally
// narrow so the session layer stays decoupled from capture details.
type FrameSource interface {
	// Start opens the device and begins delivering frames. The supplied ctx
	// governs the lifetime of the open attempt only; once started, capture
	// continues until Stop is called. Device-open failure is the only error
	// a FrameSource may surface — everything after Start degrades by
	// dropping frames, never by failing.
	Start(ctx context.Context) error

	// Frames returns the read-only stream of captured frames. The channel is
	// closed after Stop returns. Frames arrive in capture order; under
	// backpressure frames are dropped, never reordered.
	Frames() <-chan AudioFrame

	// Format reports the device's capture format (rate and channel count).
	Format() Format

	// Stop ends capture, releases the device handle, and terminates the
	// internal relay. It is idempotent and safe to call from a different
	// goroutine than the one consuming Frames.
	Stop() error
}

// Drain reads from ch until the channel is closed, discarding all values.
// Use this to prevent goroutine leaks when the data from a streaming channel
// is not needed.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
