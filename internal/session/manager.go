package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sotto-ai/sotto/internal/observe"
)

// ManagerConfig assembles a Manager.
type ManagerConfig struct {
	// Pipelines are the per-speaker capture/transcription pipelines. At
	// least one is required.
	Pipelines []*Pipeline

	// Orchestrator consumes the merged utterance stream. Required.
	Orchestrator *Orchestrator

	// Metrics records session lifecycle instrumentation. Nil disables it.
	Metrics *observe.Metrics

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Manager runs a full session: every pipeline plus the orchestrator, under
// one lifecycle. Start launches the goroutines; Stop tears everything down
// and waits. No hook fires after Stop returns.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// NewManager validates cfg and creates a Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if len(cfg.Pipelines) == 0 {
		return nil, fmt.Errorf("session: manager needs at least one pipeline")
	}
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("session: manager needs an orchestrator")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg, logger: logger}, nil
}

// Start launches all pipelines and the orchestrator. It blocks until every
// pipeline has confirmed startup; a device or recognizer that fails to open
// tears the session back down and surfaces the error here. Runtime errors
// after that point are logged and end the session. Calling Start on a
// running or stopped Manager is an error.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return fmt.Errorf("session: already started")
	}

	// Fresh session, fresh state.
	m.cfg.Orchestrator.Reset()

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	if m.cfg.Metrics != nil {
		m.cfg.Metrics.SessionStarted(runCtx)
	}

	g, gctx := errgroup.WithContext(runCtx)

	utterances := make(chan Utterance)

	// Fan the per-pipeline utterance streams into one channel. The merge
	// goroutines block with their pipelines, preserving the never-drop-finals
	// contract end to end.
	var fanIn sync.WaitGroup
	for _, p := range m.cfg.Pipelines {
		p := p
		g.Go(func() error {
			return p.Run(gctx)
		})
		fanIn.Add(1)
		go func() {
			defer fanIn.Done()
			for u := range p.Utterances() {
				select {
				case utterances <- u:
				case <-gctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		fanIn.Wait()
		close(utterances)
	}()

	g.Go(func() error {
		return m.cfg.Orchestrator.Run(gctx, utterances)
	})

	go func() {
		defer close(m.done)
		if err := g.Wait(); err != nil && err != context.Canceled {
			m.logger.Error("session ended with error", "error", err)
		} else {
			m.logger.Info("session ended")
		}
		if m.cfg.Metrics != nil {
			m.cfg.Metrics.SessionEnded(context.Background())
		}
	}()

	// A failed pipeline cancels gctx, which makes its siblings report
	// context errors; keep the first real cause.
	var startErr error
	for _, p := range m.cfg.Pipelines {
		err := <-p.Started()
		if err == nil {
			continue
		}
		if startErr == nil || (isCancellation(startErr) && !isCancellation(err)) {
			startErr = err
		}
	}
	if startErr != nil {
		cancel()
		<-m.done
		m.stopped = true
		return fmt.Errorf("session: start: %w", startErr)
	}

	m.logger.Info("session started", "pipelines", len(m.cfg.Pipelines))
	return nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Stop cancels the session and blocks until every goroutine has exited.
// Idempotent; safe to call concurrently.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.cancel == nil || m.stopped {
		m.mu.Unlock()
		if m.done != nil {
			<-m.done
		}
		return
	}
	m.stopped = true
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	cancel()
	<-done
}

// Wait blocks until the session ends on its own or Stop is called.
func (m *Manager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}
