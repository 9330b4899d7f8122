package update

import (
	"sync"
	"time"
)

// Status represents the overall state of the update worker's backlog.
type Status string

const (
	// StatusIndexing indicates the worker still has queued work.
	StatusIndexing Status = "indexing"
	// StatusReady indicates the worker has drained its queue at least once.
	StatusReady Status = "ready"
	// StatusError indicates the most recent event failed to apply.
	StatusError Status = "error"
)

// ProgressSnapshot is an immutable copy of Progress's current counters,
// suitable for serving over a status endpoint or CLI command.
type ProgressSnapshot struct {
	Status         string  `json:"status"`
	EventsTotal    int     `json:"events_total"`
	EventsHandled  int     `json:"events_handled"`
	ChunksIndexed  int     `json:"chunks_indexed"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	LastError      string  `json:"last_error,omitempty"`
}

// Progress provides thread-safe tracking of how far the update worker has
// gotten through its backlog, so a long catch-up run (initial enumeration of
// a newly-watched directory, or a restart with a large queued backlog) can
// report how much work remains instead of running silently.
type Progress struct {
	mu sync.RWMutex

	status        Status
	eventsTotal   int
	eventsHandled int
	chunksIndexed int
	startTime     time.Time
	lastError     string
}

// NewProgress creates a progress tracker starting in the indexing state.
func NewProgress() *Progress {
	return &Progress{status: StatusIndexing, startTime: time.Now()}
}

// SetEventsTotal records the size of the current batch of work, e.g. the
// number of files a fresh directory enumeration just queued.
func (p *Progress) SetEventsTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eventsTotal = total
}

// EventHandled increments the handled-event counter by one.
func (p *Progress) EventHandled() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eventsHandled++
}

// ChunksIndexed adds n to the running chunk count.
func (p *Progress) ChunksIndexed(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunksIndexed += n
}

// SetError marks the most recent event as having failed to apply, without
// stopping the worker: individual event failures are recorded per-path in
// the manifest, this just surfaces the latest one for status reporting.
func (p *Progress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusError
	p.lastError = message
}

// SetReady marks the worker as having drained its queue.
func (p *Progress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusError {
		p.status = StatusReady
	}
}

// Snapshot returns an immutable copy of the current progress state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var pct float64
	if p.eventsTotal > 0 {
		pct = float64(p.eventsHandled) / float64(p.eventsTotal) * 100.0
	}

	return ProgressSnapshot{
		Status:         string(p.status),
		EventsTotal:    p.eventsTotal,
		EventsHandled:  p.eventsHandled,
		ChunksIndexed:  p.chunksIndexed,
		ProgressPct:    pct,
		ElapsedSeconds: int(time.Since(p.startTime).Seconds()),
		LastError:      p.lastError,
	}
}
