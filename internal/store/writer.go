package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
)

// MinHeapSizeBytes is the minimum writer heap size accepted by NewWriter.
const MinHeapSizeBytes = 15 * 1024 * 1024

// DefaultHeapSizeBytes is the default writer heap size.
const DefaultHeapSizeBytes = 50 * 1024 * 1024

// WriterConfig configures a Writer.
type WriterConfig struct {
	// IndexName is the logical name of this index (used in metadata).
	IndexName string

	// HeapSizeBytes bounds the writer's in-memory buffer before a caller
	// should commit. Not enforced by bleve directly; NewWriter only
	// validates it against MinHeapSizeBytes at construction time, and no
	// other code reads it.
	HeapSizeBytes int64
}

// Writer owns the single bleve index writer for one index directory.
// It buffers adds/deletes and publishes them
// atomically on Commit; queries run after Commit returns observe the new
// data because readers of the same bleve Index always see the latest
// batch (Commit is the only synchronization barrier visible to readers).
type Writer struct {
	mu     sync.RWMutex
	path   string
	name   string
	index  bleve.Index
	batch  *bleve.Batch
	closed bool
}

// NewWriter creates or opens the index at path. An empty path creates an
// in-memory index (useful for tests). A corrupt bleve index at path is
// logged and recreated from scratch. A corrupt or missing metadata sidecar
// is logged and replaced with a fresh one, leaving the index itself as it
// is; a broken sidecar must never block queries.
func NewWriter(path string, cfg WriterConfig) (*Writer, error) {
	if cfg.HeapSizeBytes != 0 && cfg.HeapSizeBytes < MinHeapSizeBytes {
		return nil, fmt.Errorf("writer heap size %d below minimum %d", cfg.HeapSizeBytes, MinHeapSizeBytes)
	}

	im, err := CreateIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory index: %w", err)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}

		idx, err = bleve.Open(path)
		switch {
		case err == bleve.ErrorIndexPathDoesNotExist:
			idx, err = bleve.New(path, im)
			if err != nil {
				return nil, fmt.Errorf("failed to create index: %w", err)
			}
		case err != nil && isCorruptionError(err):
			slog.Warn("index_corrupted_recreating",
				slog.String("path", path), slog.String("error", err.Error()))
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, fmt.Errorf("index corrupted and cannot clear: %w (original: %v)", rmErr, err)
			}
			idx, err = bleve.New(path, im)
			if err != nil {
				return nil, fmt.Errorf("failed to recreate index after corruption: %w", err)
			}
		case err != nil:
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
	}

	w := &Writer{
		path:  path,
		name:  cfg.IndexName,
		index: idx,
		batch: idx.NewBatch(),
	}

	if path != "" {
		if m, mErr := loadMetadata(path); mErr != nil || m == nil {
			if mErr != nil {
				slog.Warn("index_metadata_corrupt",
					slog.String("path", path), slog.String("error", mErr.Error()))
			}
			_ = saveMetadata(path, &IndexMetadata{
				Version:     SchemaVersion,
				IndexName:   cfg.IndexName,
				CreatedAt:   time.Now(),
				LastUpdated: time.Now(),
			})
		}
	}

	return w, nil
}

// isCorruptionError reports whether err looks like on-disk index corruption
// rather than a normal open failure.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "unexpected end of JSON") ||
		strings.Contains(s, "error parsing mapping JSON") ||
		strings.Contains(s, "failed to load segment") ||
		strings.Contains(s, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// Add buffers a document for the next Commit.
func (w *Writer) Add(doc *Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("writer is closed")
	}
	return w.batch.Index(doc.ID, toBleveDoc(doc))
}

// DeleteID buffers a deletion of the document with the given id for the
// next Commit. A term deletion on the id field and a bleve document
// deletion are the same thing here: the bookmark id (or a derived
// "{id}_part_{n}") is also the bleve document id.
func (w *Writer) DeleteID(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("writer is closed")
	}
	w.batch.Delete(id)
	return nil
}

// Commit atomically publishes every buffered add/delete, persists the
// segments, updates the metadata sidecar, and is itself the
// happens-before edge readers rely on: any reader that
// executes a query after Commit returns observes everything committed.
// Bleve readers opened from the same Index handle always see the latest
// commit, so there is no separate "reload" step for same-process readers;
// Commit still persists metadata for other, out-of-process readers.
func (w *Writer) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("writer is closed")
	}
	if w.batch.Size() == 0 {
		return nil
	}

	if err := w.index.Batch(w.batch); err != nil {
		w.batch = w.index.NewBatch()
		return fmt.Errorf("commit failed: %w", err)
	}
	w.batch = w.index.NewBatch()

	if w.path != "" {
		if err := touchMetadata(w.path, w); err != nil {
			slog.Warn("index_metadata_update_failed", slog.String("error", err.Error()))
		}
	}

	return nil
}

// Index exposes the underlying bleve index for query execution.
func (w *Writer) Index() bleve.Index {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.index
}

// DocCount returns the current number of documents in the index.
func (w *Writer) DocCount() (uint64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return 0, fmt.Errorf("writer is closed")
	}
	return w.index.DocCount()
}

// Close releases the underlying index handle.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.index.Close()
}

// RecordBookmarkState updates the persisted check_for_updates sidecar entry
// for id. It is a no-op for in-memory writers (path == "").
func (w *Writer) RecordBookmarkState(id string, state BookmarkState) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.path == "" {
		return nil
	}

	meta, err := loadMetadata(w.path)
	if err != nil || meta == nil {
		meta = &IndexMetadata{Version: SchemaVersion, IndexName: w.name, CreatedAt: time.Now()}
	}
	if meta.Bookmarks == nil {
		meta.Bookmarks = make(map[string]BookmarkState)
	}
	meta.Bookmarks[id] = state
	meta.LastUpdated = time.Now()
	return saveMetadata(w.path, meta)
}

// BookmarkStates returns the current check_for_updates sidecar map. An
// in-memory writer, or one whose sidecar is missing/corrupt, returns an
// empty map rather than an error.
func (w *Writer) BookmarkStates() (map[string]BookmarkState, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.path == "" {
		return map[string]BookmarkState{}, nil
	}

	meta, err := loadMetadata(w.path)
	if err != nil || meta == nil || meta.Bookmarks == nil {
		return map[string]BookmarkState{}, nil
	}
	return meta.Bookmarks, nil
}

// MarkFullSync records that a complete sync_bookmarks run finished at t.
func (w *Writer) MarkFullSync(t time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.path == "" {
		return nil
	}

	meta, err := loadMetadata(w.path)
	if err != nil || meta == nil {
		meta = &IndexMetadata{Version: SchemaVersion, IndexName: w.name, CreatedAt: time.Now()}
	}
	meta.LastFullSync = t
	meta.LastUpdated = time.Now()
	return saveMetadata(w.path, meta)
}

func touchMetadata(path string, w *Writer) error {
	meta, err := loadMetadata(path)
	if err != nil || meta == nil {
		meta = &IndexMetadata{Version: SchemaVersion, IndexName: w.name, CreatedAt: time.Now()}
	}
	meta.LastUpdated = time.Now()
	count, _ := w.index.DocCount()
	meta.IndexedCount = int(count)
	return saveMetadata(path, meta)
}

func loadMetadata(dir string) (*IndexMetadata, error) {
	p := filepath.Join(dir, MetadataFileName)
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var m IndexMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("metadata corrupt: %w", err)
	}
	return &m, nil
}

func saveMetadata(dir string, m *IndexMetadata) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, MetadataFileName), data, 0o644)
}

// LoadMetadata reads the index_metadata.json sidecar for dir. Corruption
// or absence is not an error the caller must treat as fatal: a missing
// sidecar returns (nil, nil), and a corrupt one returns (nil, err) so the
// caller can log and proceed.
func LoadMetadata(dir string) (*IndexMetadata, error) {
	return loadMetadata(dir)
}
