// Package progress provides thread-safe tracking of a long-running sync
// operation's progress: totals, completion, error counts, and a
// linear-extrapolation ETA.
package progress

import (
	"fmt"
	"sync"
	"time"
)

// Status is the overall state of a tracked sync run.
type Status string

const (
	// StatusRunning indicates the sync is still processing bookmarks.
	StatusRunning Status = "running"
	// StatusComplete indicates every bookmark has been processed.
	StatusComplete Status = "complete"
	// StatusError indicates the sync stopped because of a fatal error.
	StatusError Status = "error"
)

// Snapshot is an immutable view of a Tracker's state at one instant.
type Snapshot struct {
	Status             Status  `json:"status"`
	Total              int     `json:"total"`
	Completed          int     `json:"completed"`
	Errors             int     `json:"errors"`
	ProgressPct        float64 `json:"progress_pct"`
	ElapsedSeconds     float64 `json:"elapsed_seconds"`
	EstimatedRemaining float64 `json:"estimated_remaining_seconds"`
	ErrorMessage       string  `json:"error_message,omitempty"`
}

// String renders the snapshot as a one-line human-readable status for
// logging, e.g. "building: 40/120 (35.0%), 2 errors, 12s elapsed, ~23s left".
func (s Snapshot) String() string {
	marker := "building"
	switch s.Status {
	case StatusComplete:
		marker = "complete"
	case StatusError:
		marker = "error"
	}

	out := fmt.Sprintf("%s: %d/%d (%.1f%%)", marker, s.Completed, s.Total, s.ProgressPct)
	if s.Errors > 0 {
		out += fmt.Sprintf(", %d errors", s.Errors)
	}
	out += fmt.Sprintf(", %.0fs elapsed", s.ElapsedSeconds)
	if s.Status == StatusRunning && s.EstimatedRemaining > 0 {
		out += fmt.Sprintf(", ~%.0fs left", s.EstimatedRemaining)
	}
	return out
}

// Tracker tracks a sync_bookmarks run: how many bookmarks are expected,
// how many have been committed, and how many failed. All methods are safe
// for concurrent use since ingestion RPCs and a status poll can arrive on
// different goroutines.
type Tracker struct {
	mu sync.RWMutex

	status       Status
	total        int
	completed    int
	errors       int
	startTime    time.Time
	errorMessage string
}

// New creates a Tracker for a sync run expected to process total
// bookmarks. total may be updated later via SetTotal if the real count
// isn't known up front (e.g. streamed from the client).
func New(total int) *Tracker {
	return &Tracker{
		status:    StatusRunning,
		total:     total,
		startTime: time.Now(),
	}
}

// SetTotal updates the expected bookmark count.
func (t *Tracker) SetTotal(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = total
}

// Advance records n more bookmarks committed successfully.
func (t *Tracker) Advance(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed += n
}

// RecordError records n more bookmarks that failed to index. Ingestion
// failures are skip-and-continue, so the run keeps going.
func (t *Tracker) RecordError(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors += n
}

// Fail marks the run as stopped by a fatal (non-skippable) error.
func (t *Tracker) Fail(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusError
	t.errorMessage = message
}

// Complete marks the run finished; it is idempotent with Fail — once
// failed, a late Complete call does not resurrect the status.
func (t *Tracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusError {
		return
	}
	t.status = StatusComplete
}

// Done reports whether the run has reached a terminal state.
func (t *Tracker) Done() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status != StatusRunning
}

// Snapshot returns the current state, including a linear-extrapolation ETA
// based on throughput so far: remaining = elapsed * (outstanding/completed),
// where outstanding is total minus completed and failed bookmarks. The
// percentage counts both completed and failed bookmarks as processed.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	elapsed := time.Since(t.startTime).Seconds()

	var pct float64
	processed := t.completed + t.errors
	if t.total > 0 {
		pct = float64(processed) / float64(t.total) * 100.0
		if pct > 100.0 {
			pct = 100.0
		}
	}

	var eta float64
	if t.completed > 0 && t.total > processed {
		perItem := elapsed / float64(t.completed)
		eta = perItem * float64(t.total-processed)
	}

	return Snapshot{
		Status:             t.status,
		Total:              t.total,
		Completed:          t.completed,
		Errors:             t.errors,
		ProgressPct:        pct,
		ElapsedSeconds:     elapsed,
		EstimatedRemaining: eta,
		ErrorMessage:       t.errorMessage,
	}
}
