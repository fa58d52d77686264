// Package mock provides a test double for the audio.FrameSource interface.
//
// Use Source in unit tests to feed scripted frames through the pipeline
// without opening a hardware device. Set ScriptedFrames before calling Start;
// mutating fields during a concurrent call is the caller's responsibility.
package mock

import (
	"context"
	"sync"

	"github.com/sotto-ai/sotto/pkg/audio"
)

// Source is a mock implementation of audio.FrameSource. On Start it emits
// ScriptedFrames on the Frames channel in order, then leaves the channel open
// (and empty) until Stop is called.
type Source struct {
	// ScriptedFrames are emitted in order after Start.
	ScriptedFrames []audio.AudioFrame

	// StartErr, if non-nil, is returned from Start without emitting frames.
	StartErr error

	// SourceFormat is returned by Format.
	SourceFormat audio.Format

	mu        sync.Mutex
	frames    chan audio.AudioFrame
	done      chan struct{}
	started   bool
	stopCalls int
	wg        sync.WaitGroup
}

// Compile-time check that *Source satisfies audio.FrameSource.
var _ audio.FrameSource = (*Source)(nil)

// Start emits the scripted frames on a background goroutine.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.StartErr != nil {
		return s.StartErr
	}
	if s.started {
		return nil
	}
	s.started = true
	s.frames = make(chan audio.AudioFrame, len(s.ScriptedFrames)+1)
	s.done = make(chan struct{})

	frames := make([]audio.AudioFrame, len(s.ScriptedFrames))
	copy(frames, s.ScriptedFrames)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for _, f := range frames {
			select {
			case s.frames <- f:
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Frames returns the scripted frame stream. Returns nil before Start.
func (s *Source) Frames() <-chan audio.AudioFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Format returns SourceFormat.
func (s *Source) Format() audio.Format {
	return s.SourceFormat
}

// Stop closes the frame stream. Safe to call multiple times.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopCalls++
	if s.done != nil {
		select {
		case <-s.done:
			// Already stopped.
		default:
			close(s.done)
			s.wg.Wait()
			close(s.frames)
		}
	}
	return nil
}

// StopCalls reports how many times Stop has been invoked.
func (s *Source) StopCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls
}
