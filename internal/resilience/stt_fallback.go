package resilience

import (
	"context"

	"github.com/sotto-ai/sotto/pkg/provider/stt"
)

// STTFailover implements [stt.Provider] with failover across multiple STT
// backends, each behind its own breaker. Only stream establishment fails
// over; once a session is open it belongs to whichever backend opened it.
type STTFailover struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTFailover)(nil)

// NewSTTFailover creates a failover provider with primary preferred.
func NewSTTFailover(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFailover {
	return &STTFailover{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional STT backend.
func (f *STTFailover) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// StartStream opens a transcription session on the first healthy backend.
func (f *STTFailover) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	return Try(f.group, func(p stt.Provider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
}
