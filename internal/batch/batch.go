// Package batch implements the streaming batch-add state machine: it
// absorbs many small bookmark adds and commits them in amortized groups
// instead of one commit per add.
package batch

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nakamura-shuta/mcp-bookmark/internal/bookmark"
	"github.com/nakamura-shuta/mcp-bookmark/internal/docbuild"
	"github.com/nakamura-shuta/mcp-bookmark/internal/errors"
	"github.com/nakamura-shuta/mcp-bookmark/internal/progress"
	"github.com/nakamura-shuta/mcp-bookmark/internal/store"
)

// DefaultMaxBufferSize is the buffered-item count that triggers a flush.
const DefaultMaxBufferSize = 50

// StaleAfter is how long a batch may sit with no activity before the
// stale-eviction sweep reaps it.
const StaleAfter = 120 * time.Second

// immediateCommitMaxTotal is the "small-batch latency" threshold: a batch
// whose declared total is at or below this commits every single add
// immediately instead of buffering.
const immediateCommitMaxTotal = 2

// AddStatus is the result of a single Add call.
type AddStatus string

const (
	// AddStatusAdded means the index had not been received before.
	AddStatusAdded AddStatus = "added"
	// AddStatusDuplicate means this index was already received; the call
	// is idempotent and was ignored with a warning.
	AddStatusDuplicate AddStatus = "duplicate"
)

// Item is one buffered (bookmark, content) pair awaiting commit.
type Item struct {
	IndexName string
	Bookmark  bookmark.Bookmark
	Content   string
	PageInfo  *bookmark.PageInfo
}

// WriterResolver resolves the writer for a named index, used to commit
// buffered items without the batch manager owning writer lifecycle itself.
type WriterResolver func(indexName string) (*store.Writer, error)

// Manager owns every in-flight batch, keyed by batch id.
type Manager struct {
	mu            sync.Mutex
	batches       map[string]*batchState
	resolver      WriterResolver
	maxBufferSize int
}

type batchState struct {
	mu              sync.Mutex
	total           int
	received        map[int]struct{}
	buffer          []Item
	startedAt       time.Time
	lastActivity    time.Time
	immediateCommit bool
	closed          bool
	succeeded       int
	failed          int
	tracker         *progress.Tracker
}

// NewManager creates a Manager. resolver is used at commit time to obtain
// the writer for each item's index.
func NewManager(resolver WriterResolver) *Manager {
	return &Manager{
		batches:       make(map[string]*batchState),
		resolver:      resolver,
		maxBufferSize: DefaultMaxBufferSize,
	}
}

// Start opens a new batch. A total of zero or less is a validation error.
func (m *Manager) Start(batchID string, total int) error {
	if total <= 0 {
		return errors.ValidationError(fmt.Sprintf("batch %q: total must be > 0, got %d", batchID, total), nil).
			WithDetail("batch_id", batchID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.batches[batchID]; ok && !existing.closed {
		return errors.ValidationError(fmt.Sprintf("batch %q already open", batchID), nil).WithDetail("batch_id", batchID)
	}

	now := time.Now()
	m.batches[batchID] = &batchState{
		total:           total,
		received:        make(map[int]struct{}, total),
		startedAt:       now,
		lastActivity:    now,
		immediateCommit: total <= immediateCommitMaxTotal,
		tracker:         progress.New(total),
	}
	return nil
}

// Add buffers one item at the given index within batchID and applies the
// commit policy: immediate for tiny batches, threshold or completion flush
// otherwise. It returns the add's status plus the batch's current
// received/total counts for the RPC response.
func (m *Manager) Add(batchID string, index int, item Item) (status AddStatus, received, total int, err error) {
	m.mu.Lock()
	b, ok := m.batches[batchID]
	m.mu.Unlock()
	if !ok {
		return "", 0, 0, errors.NotFoundError(fmt.Sprintf("batch %q not found", batchID), nil).WithDetail("batch_id", batchID)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return "", 0, 0, errors.ValidationError(fmt.Sprintf("batch %q already closed", batchID), nil).WithDetail("batch_id", batchID)
	}

	if _, dup := b.received[index]; dup {
		slog.Warn("batch_duplicate_index", slog.String("batch_id", batchID), slog.Int("index", index))
		received, total = len(b.received), b.total
		b.mu.Unlock()
		return AddStatusDuplicate, received, total, nil
	}

	b.received[index] = struct{}{}
	b.buffer = append(b.buffer, item)
	b.lastActivity = time.Now()

	shouldFlush := b.immediateCommit ||
		len(b.buffer) >= m.maxBufferSize ||
		len(b.received) == b.total
	var toFlush []Item
	if shouldFlush {
		toFlush = b.buffer
		b.buffer = nil
	}
	received, total = len(b.received), b.total
	b.mu.Unlock()

	// Commits happen outside the batch lock so concurrent adds to other
	// batches (or further adds to this one) are never blocked on I/O.
	if len(toFlush) > 0 {
		succeeded, failed, flushErr := m.flush(toFlush)
		b.tracker.Advance(succeeded)
		b.tracker.RecordError(failed)
		b.mu.Lock()
		b.succeeded += succeeded
		b.failed += failed
		b.mu.Unlock()
		if flushErr != nil {
			b.tracker.Fail(flushErr.Error())
			return "", 0, 0, flushErr
		}
	}

	return AddStatusAdded, received, total, nil
}

// Summary reports a completed batch's lifetime outcome.
type Summary struct {
	SuccessCount int
	FailedCount  int
	Duration     time.Duration
}

// End closes a batch, flushing any residual buffer first, and returns the
// batch's lifetime success/failure counts and duration.
func (m *Manager) End(batchID string) (Summary, error) {
	m.mu.Lock()
	b, ok := m.batches[batchID]
	if ok {
		delete(m.batches, batchID)
	}
	m.mu.Unlock()
	if !ok {
		return Summary{}, errors.NotFoundError(fmt.Sprintf("batch %q not found", batchID), nil).WithDetail("batch_id", batchID)
	}

	b.mu.Lock()
	b.closed = true
	toFlush := b.buffer
	b.buffer = nil
	b.mu.Unlock()

	succeeded, failed, err := m.flush(toFlush)
	b.tracker.Advance(succeeded)
	b.tracker.RecordError(failed)
	if err != nil {
		b.tracker.Fail(err.Error())
	} else {
		b.tracker.Complete()
	}

	b.mu.Lock()
	b.succeeded += succeeded
	b.failed += failed
	summary := Summary{
		SuccessCount: b.succeeded,
		FailedCount:  b.failed,
		Duration:     time.Since(b.startedAt),
	}
	b.mu.Unlock()

	slog.Info("batch_ended",
		slog.String("batch_id", batchID), slog.String("status", b.tracker.Snapshot().String()))
	return summary, err
}

// flush drains items through document construction into their writers, one
// commit per distinct index name touched. Per-item failures are counted and
// skipped; only resolver and commit failures propagate as errors.
func (m *Manager) flush(items []Item) (succeeded, failed int, err error) {
	if len(items) == 0 {
		return 0, 0, nil
	}

	touched := make(map[string]*store.Writer)
	for _, item := range items {
		w, ok := touched[item.IndexName]
		if !ok {
			w, err = m.resolver(item.IndexName)
			if err != nil {
				failed += len(items) - succeeded - failed
				return succeeded, failed, errors.StorageError(fmt.Sprintf("resolve writer for index %q", item.IndexName), err).
					WithDetail("index_name", item.IndexName)
			}
			touched[item.IndexName] = w
		}
		if err := docbuild.IndexBookmark(w, item.Bookmark, item.Content, item.PageInfo); err != nil {
			slog.Warn("batch_item_index_failed",
				slog.String("bookmark_id", item.Bookmark.ID), slog.String("error", err.Error()))
			failed++
			continue
		}
		succeeded++
	}

	for name, w := range touched {
		if err := w.Commit(); err != nil {
			return 0, succeeded + failed, errors.StorageError(fmt.Sprintf("commit index %q", name), err).WithDetail("index_name", name)
		}
	}

	return succeeded, failed, nil
}

// EvictStale sweeps every open batch whose last activity exceeds
// StaleAfter, flushing its residual buffer before removal.
// It returns the ids of evicted batches.
func (m *Manager) EvictStale() []string {
	cutoff := time.Now().Add(-StaleAfter)

	m.mu.Lock()
	var stale []string
	for id, b := range m.batches {
		b.mu.Lock()
		if b.lastActivity.Before(cutoff) {
			stale = append(stale, id)
		}
		b.mu.Unlock()
	}
	toEvict := make(map[string]*batchState, len(stale))
	for _, id := range stale {
		toEvict[id] = m.batches[id]
		delete(m.batches, id)
	}
	m.mu.Unlock()

	for id, b := range toEvict {
		b.mu.Lock()
		toFlush := b.buffer
		b.buffer = nil
		b.closed = true
		b.mu.Unlock()

		if _, _, err := m.flush(toFlush); err != nil {
			slog.Error("batch_stale_eviction_flush_failed", slog.String("batch_id", id), slog.String("error", err.Error()))
		} else {
			slog.Info("batch_stale_evicted", slog.String("batch_id", id))
		}
	}

	return stale
}

// Progress returns the ingestion-progress snapshot for an open batch.
func (m *Manager) Progress(batchID string) (progress.Snapshot, bool) {
	m.mu.Lock()
	b, ok := m.batches[batchID]
	m.mu.Unlock()
	if !ok {
		return progress.Snapshot{}, false
	}
	return b.tracker.Snapshot(), true
}

// Open reports whether batchID currently exists and is open.
func (m *Manager) Open(batchID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[batchID]
	return ok && !b.closed
}
