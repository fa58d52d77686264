package audio

import (
	"sync"
	"sync/atomic"
)

const (
	// defaultCallbackDepth is the capacity of the first-stage queue fed by the
	// hardware callback. Sized for roughly four seconds of 23 ms frames so a
	// momentary consumer stall loses no audio.
	defaultCallbackDepth = 200

	// defaultSchedulerDepth is the capacity of the second-stage queue consumed
	// by the pipeline goroutine.
	defaultSchedulerDepth = 20
)

// RelayConfig tunes the two queue depths of a [BoundedRelay]. Zero values
// select the defaults (200 and 20).
type RelayConfig struct {
	CallbackDepth  int
	SchedulerDepth int
}

// BoundedRelay bridges a real-time audio callback into the cooperative
// pipeline via two bounded hops.
//
// The hardware callback calls [BoundedRelay.TryPush], which never blocks: when
// the first-stage queue is full the oldest unread frame is evicted to make
// room, so a stalled consumer costs stale audio rather than capture latency. A
// dedicated relay goroutine drains the first stage into the second; when the
// second stage is full the incoming frame is dropped instead. The relay
// goroutine is the only code that touches both queues, so neither side ever
// shares state across the thread boundary directly.
//
// TryPush is safe from exactly one producer; Frames is safe from exactly one
// consumer. Stop is safe from any goroutine and idempotent.
type BoundedRelay struct {
	callbackQ chan AudioFrame
	out       chan AudioFrame

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	droppedCallback  atomic.Int64
	droppedScheduler atomic.Int64
}

// NewBoundedRelay creates a relay and starts its bridging goroutine.
// Call [BoundedRelay.Stop] to terminate it.
func NewBoundedRelay(cfg RelayConfig) *BoundedRelay {
	if cfg.CallbackDepth <= 0 {
		cfg.CallbackDepth = defaultCallbackDepth
	}
	if cfg.SchedulerDepth <= 0 {
		cfg.SchedulerDepth = defaultSchedulerDepth
	}
	r := &BoundedRelay{
		callbackQ: make(chan AudioFrame, cfg.CallbackDepth),
		out:       make(chan AudioFrame, cfg.SchedulerDepth),
		done:      make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// TryPush offers a frame to the relay without blocking. It always returns in
// bounded time and never allocates. Returns false only if the frame could not
// be queued even after evicting the oldest entry (a second producer racing on
// the queue — not a supported configuration).
func (r *BoundedRelay) TryPush(frame AudioFrame) bool {
	select {
	case r.callbackQ <- frame:
		return true
	default:
	}

	// Queue full: evict the oldest unread frame, then retry once.
	select {
	case <-r.callbackQ:
		r.droppedCallback.Add(1)
	default:
	}
	select {
	case r.callbackQ <- frame:
		return true
	default:
		r.droppedCallback.Add(1)
		return false
	}
}

// Frames returns the consumer side of the relay. The channel is closed after
// [BoundedRelay.Stop] returns.
func (r *BoundedRelay) Frames() <-chan AudioFrame {
	return r.out
}

// Dropped reports how many frames were discarded at each hop: callback-side
// evictions and scheduler-side overflow drops.
func (r *BoundedRelay) Dropped() (callback, scheduler int64) {
	return r.droppedCallback.Load(), r.droppedScheduler.Load()
}

// Stop terminates the relay goroutine and closes the Frames channel. It is
// idempotent and safe to call from any goroutine; it returns once the relay
// goroutine has exited.
func (r *BoundedRelay) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}

// run is the relay goroutine: it drains the callback queue into the scheduler
// queue, dropping the incoming frame when the scheduler side is full.
func (r *BoundedRelay) run() {
	defer r.wg.Done()
	defer close(r.out)
	for {
		select {
		case <-r.done:
			return
		case frame := <-r.callbackQ:
			select {
			case r.out <- frame:
			default:
				r.droppedScheduler.Add(1)
			}
		}
	}
}
