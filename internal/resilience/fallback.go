package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sotto-ai/sotto/pkg/provider/llm"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or is
// behind an open breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures the per-entry breaker created for each provider
// in a [FallbackGroup].
type FallbackConfig struct {
	Breaker BreakerConfig
}

type entry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup wraps a primary and zero or more fallback instances of the
// same provider type. When the primary fails or its breaker is open, the next
// healthy fallback is tried in registration order.
//
// The group is safe for concurrent use once assembled; AddFallback must not
// race with Execute.
type FallbackGroup[T any] struct {
	entries []entry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a group with primary as the first entry.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	g := &FallbackGroup[T]{cfg: cfg}
	g.add(primaryName, primary)
	return g
}

// AddFallback appends a fallback, tried after all earlier entries.
func (g *FallbackGroup[T]) AddFallback(name string, fallback T) {
	g.add(name, fallback)
}

func (g *FallbackGroup[T]) add(name string, value T) {
	bc := g.cfg.Breaker
	bc.Name = name
	g.entries = append(g.entries, entry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(bc),
	})
}

// Execute tries fn against each entry in order until one succeeds. Entries
// behind an open breaker are skipped. Returns [ErrAllFailed] wrapping the
// last error when nothing succeeds.
func (g *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := Try(g, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// Try runs fn against each entry of g until one returns a value. A cancelled
// context aborts the chain immediately with the cancellation error, skipping
// the remaining entries. Try is a package-level function because Go methods
// cannot introduce type parameters.
func Try[T, R any](g *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range g.entries {
		e := &g.entries[i]
		var result R
		err := e.breaker.Do(func() error {
			var innerErr error
			result, innerErr = fn(e.value)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) {
			// The caller is gone; trying the next backend with a dead
			// context would just burn its breaker budget.
			return zero, err
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("skipping provider, breaker open", "provider", e.name)
		} else {
			slog.Warn("provider failed, trying next", "provider", e.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// LLMFailover implements [llm.Provider] with automatic failover across
// multiple backends, each behind its own breaker. The answer generator uses
// it so a Groq outage degrades to the configured fallback model instead of a
// scripted reply.
type LLMFailover struct {
	group *FallbackGroup[llm.Provider]
}

// Compile-time interface assertion.
var _ llm.Provider = (*LLMFailover)(nil)

// NewLLMFailover creates a failover provider with primary preferred.
func NewLLMFailover(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFailover {
	return &LLMFailover{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional backend, tried after earlier entries.
func (f *LLMFailover) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete sends the request to the first healthy backend.
func (f *LLMFailover) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Try(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// StreamCompletion opens a stream on the first healthy backend. Only the
// connection attempt participates in failover; mid-stream errors are the
// caller's to handle.
func (f *LLMFailover) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return Try(f.group, func(p llm.Provider) (<-chan llm.Chunk, error) {
		return p.StreamCompletion(ctx, req)
	})
}

// Capabilities reports the primary's capabilities; static metadata does not
// participate in failover.
func (f *LLMFailover) Capabilities() llm.ModelCapabilities {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.Capabilities()
	}
	return llm.ModelCapabilities{}
}
