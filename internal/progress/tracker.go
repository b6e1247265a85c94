// Package progress implements the process-wide operation registry: a
// pollable, monotonically advancing status record per long-running ingest,
// upload or re-embed job, plus a parallel active-task registry used for
// cooperative cancellation.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/archon-iirc/archon/internal/model"
)

// Tracker maintains operation_id -> OperationProgress and a mirrored
// active-task registry. Producers publish updates from inside the job
// goroutine; consumers poll or cancel from an HTTP handler goroutine.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*model.OperationProgress
	tasks   map[string]context.CancelFunc

	sweepInterval time.Duration
	retention     time.Duration
	stopSweep     chan struct{}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithSweepInterval sets how often the background sweep removes terminal
// records older than the retention window. Default 60s per-operator tuning.
func WithSweepInterval(d time.Duration) Option {
	return func(t *Tracker) { t.sweepInterval = d }
}

// WithRetention sets how long a terminal record survives before the sweep
// garbage-collects it.
func WithRetention(d time.Duration) Option {
	return func(t *Tracker) { t.retention = d }
}

// New creates a Tracker and starts its background sweep goroutine.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		records:       make(map[string]*model.OperationProgress),
		tasks:         make(map[string]context.CancelFunc),
		sweepInterval: 60 * time.Second,
		retention:     30 * time.Minute,
		stopSweep:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	go t.sweepLoop()
	return t
}

// Close stops the background sweep goroutine.
func (t *Tracker) Close() {
	close(t.stopSweep)
}

// Start inserts a new record in state "starting" and registers cancel as
// its cancellation handle, returned from Start so the caller's context
// derives from it.
func (t *Tracker) Start(id string, opType model.OperationType, initialPayload map[string]any, cancel context.CancelFunc) *model.OperationProgress {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	rec := &model.OperationProgress{
		ProgressID: id,
		Type:       opType,
		Status:     model.StatusStarting,
		Progress:   0,
		Payload:    initialPayload,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	t.records[id] = rec
	t.tasks[id] = cancel
	return rec
}

// Update applies a monotonic progress update: if newProgress is less than
// the current value it is clamped upward rather than rejected, since the
// invariant is non-decreasing progress, not strictly increasing.
func (t *Tracker) Update(id string, status model.OperationStatus, newProgress int, log string, payload map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[id]
	if !ok || rec.Status.Terminal() {
		return
	}

	if newProgress < rec.Progress {
		newProgress = rec.Progress
	}
	rec.Status = status
	rec.Progress = newProgress
	if log != "" {
		rec.Log = log
	}
	if payload != nil {
		rec.Payload = payload
	}
	rec.UpdatedAt = time.Now()
}

// Complete transitions id to StatusCompleted. Idempotent on an
// already-terminal record.
func (t *Tracker) Complete(id string, payload map[string]any) {
	t.finish(id, model.StatusCompleted, "", payload)
}

// Error transitions id to StatusError with a redacted message.
func (t *Tracker) Error(id string, message string) {
	t.finish(id, model.StatusError, message, nil)
}

// cancelledTerminal transitions id to StatusCancelled; called from Stop.
func (t *Tracker) cancelledTerminal(id string) {
	t.finish(id, model.StatusCancelled, "", nil)
}

func (t *Tracker) finish(id string, status model.OperationStatus, log string, payload map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[id]
	if !ok || rec.Status.Terminal() {
		return
	}
	rec.Status = status
	if log != "" {
		rec.Log = log
	}
	if payload != nil {
		rec.Payload = payload
	}
	rec.UpdatedAt = time.Now()
	delete(t.tasks, id)
}

// Get returns the current record and whether it exists.
func (t *Tracker) Get(id string) (model.OperationProgress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[id]
	if !ok {
		return model.OperationProgress{}, false
	}
	return *rec, true
}

// IsActive reports whether id is still in the live-tasks registry. Producers
// must check this at every safe checkpoint between batches.
func (t *Tracker) IsActive(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.tasks[id]
	return ok
}

// Stop removes id from the active-task registry and cancels its context.
// Stop marks the record StatusCancelled itself; the producer goroutine
// observes IsActive(id) == false at its next checkpoint and stops.
func (t *Tracker) Stop(id string) bool {
	t.mu.Lock()
	cancel, ok := t.tasks[id]
	if ok {
		delete(t.tasks, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	cancel()
	t.cancelledTerminal(id)
	return true
}

func (t *Tracker) sweepLoop() {
	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopSweep:
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *Tracker) sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	for id, rec := range t.records {
		if rec.Status.Terminal() && now.Sub(rec.UpdatedAt) > t.retention {
			delete(t.records, id)
		}
	}
}
