// Package mock provides test doubles for the stt package interfaces.
//
// Provider records StartStream calls and hands out *Session values whose
// transcript streams are driven by the test through EmitPartial and
// EmitFinal. Audio sent into a session is recorded for assertions.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/sotto-ai/sotto/pkg/provider/stt"
)

// StartStreamCall records the arguments of one StartStream invocation.
type StartStreamCall struct {
	Config stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	// StartErr, if non-nil, is returned from StartStream.
	StartErr error

	mu       sync.Mutex
	calls    []StartStreamCall
	sessions []*Session
}

// Compile-time check that *Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// StartStream records the call and returns a fresh driveable Session.
func (p *Provider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, StartStreamCall{Config: cfg})
	if p.StartErr != nil {
		return nil, p.StartErr
	}

	s := NewSession()
	p.sessions = append(p.sessions, s)
	return s, nil
}

// Calls returns a copy of all recorded StartStream calls.
func (p *Provider) Calls() []StartStreamCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StartStreamCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// Sessions returns every session handed out so far, in creation order.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Session, len(p.sessions))
	copy(out, p.sessions)
	return out
}

// Session is a mock stt.SessionHandle driven by the test.
type Session struct {
	// SendErr, if non-nil, is returned from SendAudio.
	SendErr error

	mu       sync.Mutex
	sent     [][]byte
	partials chan stt.Transcript
	finals   chan stt.Transcript
	closed   bool
}

// Compile-time check that *Session satisfies stt.SessionHandle.
var _ stt.SessionHandle = (*Session)(nil)

// NewSession creates a Session with buffered transcript channels.
func NewSession() *Session {
	return &Session{
		partials: make(chan stt.Transcript, 64),
		finals:   make(chan stt.Transcript, 64),
	}
}

// SendAudio records the chunk. The slice is copied so later mutation by the
// caller cannot corrupt the record.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("mock: session is closed")
	}
	if s.SendErr != nil {
		return s.SendErr
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.sent = append(s.sent, cp)
	return nil
}

// SentAudio returns all recorded audio chunks in send order.
func (s *Session) SentAudio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.sent))
	copy(out, s.sent)
	return out
}

// Partials returns the partial transcript stream.
func (s *Session) Partials() <-chan stt.Transcript { return s.partials }

// Finals returns the final transcript stream.
func (s *Session) Finals() <-chan stt.Transcript { return s.finals }

// EmitPartial delivers an interim transcript to the consumer. No-op after
// Close.
func (s *Session) EmitPartial(t stt.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	t.IsFinal = false
	s.partials <- t
}

// EmitFinal delivers an authoritative transcript to the consumer. No-op after
// Close.
func (s *Session) EmitFinal(t stt.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	t.IsFinal = true
	s.finals <- t
}

// Close closes both transcript streams. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.partials)
	close(s.finals)
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
