package update

import (
	"log/slog"
	"time"
)

// DefaultQueueSize bounds the in-flight event backlog, matching the
// watcher's own default event buffer size.
const DefaultQueueSize = 1000

// DefaultBackpressureTimeout is how long a producer waits for room in the
// queue before dropping an event, per §5's backpressure policy.
const DefaultBackpressureTimeout = 50 * time.Millisecond

// Queue is the bounded FIFO feeding the UpdateWorker. Producers (the
// directory watcher, the watched-directories manager) never block longer
// than BackpressureTimeout; an event that can't be enqueued in time is
// dropped and logged, relying on the next reconciliation scan to recover
// consistency.
type Queue struct {
	ch                  chan WatchEvent
	backpressureTimeout time.Duration
}

// NewQueue creates a Queue with the given capacity and backpressure
// timeout. A non-positive size or timeout falls back to the defaults.
func NewQueue(size int, backpressureTimeout time.Duration) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if backpressureTimeout <= 0 {
		backpressureTimeout = DefaultBackpressureTimeout
	}
	return &Queue{
		ch:                  make(chan WatchEvent, size),
		backpressureTimeout: backpressureTimeout,
	}
}

// Push enqueues ev, blocking up to the configured backpressure timeout.
// If the queue is still full after that, the event is dropped and logged;
// the caller is expected to be a watcher whose next scan (or config
// reload) will reconcile the missed event.
func (q *Queue) Push(ev WatchEvent) {
	select {
	case q.ch <- ev:
	case <-time.After(q.backpressureTimeout):
		slog.Warn("update queue full, dropping event",
			slog.String("event", ev.String()))
	}
}

// Events returns the receive side of the queue for the UpdateWorker.
func (q *Queue) Events() <-chan WatchEvent {
	return q.ch
}
