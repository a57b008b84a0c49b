// Package multiindex fans a query out across several named bleve indices
// and merges the results into one ranked list.
package multiindex

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/nakamura-shuta/mcp-bookmark/internal/errors"
	"github.com/nakamura-shuta/mcp-bookmark/internal/query"
	"github.com/nakamura-shuta/mcp-bookmark/internal/search"
	"github.com/nakamura-shuta/mcp-bookmark/internal/store"
)

// openHandlesCacheSize bounds how many read-only index handles stay open at
// once, so fanning out across a long-lived daemon's full index set doesn't
// grow memory without limit.
const openHandlesCacheSize = 32

// fanoutBudgetMultiplier: each per-index search asks for limit*multiplier
// hits so that after merge-by-URL and truncation the final page is still
// full even when one index dominates.
const fanoutBudgetMultiplier = 2

// handle is one opened index (its Writer, shared by ingestion and search)
// plus its Searcher, evicted from the LRU cache by closing the underlying
// bleve index.
type handle struct {
	writer   *store.Writer
	searcher *search.Searcher
}

// Manager opens indices by name, on demand, under a root directory laid
// out as <root>/<name>/, and fans searches out across however
// many of them the caller names.
type Manager struct {
	root string

	mu    sync.Mutex
	cache *lru.Cache[string, *handle]
}

// New creates a Manager rooted at root, which must contain one
// subdirectory per named index.
func New(root string) (*Manager, error) {
	cache, err := lru.NewWithEvict[string, *handle](openHandlesCacheSize, func(name string, h *handle) {
		if err := h.writer.Close(); err != nil {
			slog.Warn("multiindex_evict_close_failed", slog.String("index", name), slog.Any("error", err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create index handle cache: %w", err)
	}
	return &Manager{root: root, cache: cache}, nil
}

// ListIndexes enumerates the subdirectories of root that look like index
// directories.
func (m *Manager) ListIndexes() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list index root %s: %w", m.root, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		// Presence of the metadata sidecar is the well-known marker that an
		// index exists; a directory without one isn't ready yet.
		if _, err := os.Stat(filepath.Join(m.root, e.Name(), store.MetadataFileName)); err != nil {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// open returns the handle for name, opening it through store.NewWriter
// (which creates the index if its directory does not exist yet) and
// caching it on first use.
func (m *Manager) open(name string) (*handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.cache.Get(name); ok {
		return h, nil
	}

	w, err := store.NewWriter(filepath.Join(m.root, name), store.WriterConfig{IndexName: name})
	if err != nil {
		return nil, errors.StorageError(fmt.Sprintf("failed to open index %q", name), err).WithDetail("index_name", name)
	}
	h := &handle{writer: w, searcher: search.New(w)}
	m.cache.Add(name, h)
	return h, nil
}

// Stat reports the on-disk size and document count of a named index.
func (m *Manager) Stat(name string) (sizeBytes int64, docCount uint64, err error) {
	h, err := m.open(name)
	if err != nil {
		return 0, 0, err
	}
	docCount, err = h.writer.DocCount()
	if err != nil {
		return 0, 0, err
	}

	dir := filepath.Join(m.root, name)
	err = filepath.Walk(dir, func(_ string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !info.IsDir() {
			sizeBytes += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, docCount, fmt.Errorf("failed to size index %q: %w", name, err)
	}
	return sizeBytes, docCount, nil
}

// Writer returns the writer for the named index, opening it on first use.
// Ingestion RPCs and searches share this single handle per index, matching
// the one-writer-per-index-directory ownership rule.
func (m *Manager) Writer(name string) (*store.Writer, error) {
	h, err := m.open(name)
	if err != nil {
		return nil, err
	}
	return h.writer, nil
}

// Searcher returns the Searcher for the named index, opening it on first
// use.
func (m *Manager) Searcher(name string) (*search.Searcher, error) {
	h, err := m.open(name)
	if err != nil {
		return nil, err
	}
	return h.searcher, nil
}

// Close evicts and closes every cached handle.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Purge()
	return nil
}

// Search fans q out across every name in indexNames, merges hits for the
// same URL by keeping the highest score, sorts by descending score, and
// truncates to limit. An index that fails to open or query
// is skipped and logged; the overall call fails only if none of the named
// indices could be searched.
func (m *Manager) Search(ctx context.Context, indexNames []string, q string, filters query.Filters, limit int) ([]search.Result, error) {
	perIndexLimit := limit * fanoutBudgetMultiplier
	if perIndexLimit < limit {
		perIndexLimit = limit
	}

	perIndex := make([][]search.Result, len(indexNames))
	ok := make([]bool, len(indexNames))

	// Each named index is queried concurrently: the indices don't share
	// state (every handle owns its own bleve reader), so there is no
	// reason to serialize the fan-out on the slowest index.
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range indexNames {
		i, name := i, name
		g.Go(func() error {
			h, err := m.open(name)
			if err != nil {
				slog.Warn("multiindex_skip_open_failed", slog.String("index", name), slog.Any("error", err))
				return nil
			}

			results, err := h.searcher.SearchAdvanced(gctx, q, filters, perIndexLimit)
			if err != nil {
				slog.Warn("multiindex_skip_search_failed", slog.String("index", name), slog.Any("error", err))
				return nil
			}
			perIndex[i] = results
			ok[i] = true
			return nil
		})
	}
	// g.Wait() only returns an error if a goroutine returns one; every
	// per-index failure above is swallowed and logged instead, so this
	// is unreachable in practice but kept for future stages that fail
	// the whole group.
	_ = g.Wait()

	merged := make(map[string]search.Result)
	var okCount int
	for i, results := range perIndex {
		if !ok[i] {
			continue
		}
		okCount++
		for _, r := range results {
			existing, exists := merged[r.URL]
			if !exists || r.Score > existing.Score {
				merged[r.URL] = r
			}
		}
	}

	if okCount == 0 && len(indexNames) > 0 {
		return nil, errors.NotFoundError(fmt.Sprintf("no index in %v could be searched", indexNames), nil)
	}

	out := make([]search.Result, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].URL < out[j].URL // deterministic order on score ties
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
