package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nakamura-shuta/mcp-bookmark/internal/batch"
	"github.com/nakamura-shuta/mcp-bookmark/internal/bookmark"
	"github.com/nakamura-shuta/mcp-bookmark/internal/chunksession"
	"github.com/nakamura-shuta/mcp-bookmark/internal/contentfetch"
	"github.com/nakamura-shuta/mcp-bookmark/internal/docbuild"
	"github.com/nakamura-shuta/mcp-bookmark/internal/errors"
	"github.com/nakamura-shuta/mcp-bookmark/internal/multiindex"
	"github.com/nakamura-shuta/mcp-bookmark/internal/store"
)

// DefaultIndexName is used whenever a request omits index_name.
const DefaultIndexName = "default"

// Service implements every ingestion method by wiring together the
// document builder, batch manager, chunk reassembler and the multi-index
// manager, which itself owns every index writer. It is the Dispatcher a
// Server drives.
type Service struct {
	indices *multiindex.Manager
	batches *batch.Manager
	chunks  *chunksession.Manager
	fetcher *contentfetch.Fetcher // nil disables the fallback fetch

	mu           sync.Mutex
	chunkIndexOf map[string]string       // session id -> index name, from chunk 0
	chunkSeen    map[string]map[int]bool // session id -> indices seen so far
	batchIndexOf map[string]string       // batch id -> index name, from batch_start

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// sweepInterval is how often abandoned batches are checked for eviction.
const sweepInterval = 30 * time.Second

// NewService creates a Service rooted at the given index directory root,
// laid out as one subdirectory per index name.
func NewService(indexRoot string) (*Service, error) {
	indices, err := multiindex.New(indexRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to create index manager: %w", err)
	}
	s := &Service{
		indices:      indices,
		batches:      batch.NewManager(indices.Writer),
		chunks:       chunksession.NewManager(),
		chunkIndexOf: make(map[string]string),
		chunkSeen:    make(map[string]map[int]bool),
		batchIndexOf: make(map[string]string),
		sweepStop:    make(chan struct{}),
		sweepDone:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s, nil
}

// sweepLoop periodically evicts batches abandoned mid-stream, flushing
// their residual buffers so a crashed client doesn't lose committed-but-
// unflushed bookmarks.
func (s *Service) sweepLoop() {
	defer close(s.sweepDone)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.sweepStop:
			return
		case <-ticker.C:
			if evicted := s.batches.EvictStale(); len(evicted) > 0 {
				s.mu.Lock()
				for _, id := range evicted {
					delete(s.batchIndexOf, id)
				}
				s.mu.Unlock()
			}
		}
	}
}

// SetContentFetcher enables the HTTP fallback fetch: an index_bookmark
// request arriving without content gets its page fetched directly. A fetch
// failure never fails the request; the bookmark is indexed metadata-only.
func (s *Service) SetContentFetcher(f *contentfetch.Fetcher) {
	s.fetcher = f
}

// Close stops the eviction sweep and releases every index handle the
// service has opened.
func (s *Service) Close() error {
	close(s.sweepStop)
	<-s.sweepDone
	if s.fetcher != nil {
		s.fetcher.Close()
	}
	return s.indices.Close()
}

func toBookmark(p BookmarkParams) bookmark.Bookmark {
	return bookmark.Bookmark{
		ID:           p.ID,
		Title:        p.Title,
		URL:          p.URL,
		FolderPath:   p.FolderPath,
		DateAdded:    p.DateAdded,
		DateModified: p.DateModified,
	}
}

func toPageInfo(p *PageInfoParams) *bookmark.PageInfo {
	if p == nil {
		return nil
	}
	return &bookmark.PageInfo{
		PageCount:   p.PageCount,
		PageOffsets: p.PageOffsets,
		ContentType: p.ContentType,
		CharCount:   p.CharCount,
	}
}

func indexNameOr(name string) string {
	if name == "" {
		return DefaultIndexName
	}
	return name
}

// mapError turns a domain error into a JSON-RPC error code, using the
// custom codes from protocol.go where the error's category names a more
// specific failure than "internal error".
func mapError(err error) int {
	switch errors.GetCategory(err) {
	case errors.CategoryNotFound:
		return ErrCodeNotFound
	case errors.CategoryStorage:
		return ErrCodeStorage
	case errors.CategoryValidation, errors.CategoryFormat:
		return ErrCodeInvalidParams
	default:
		return ErrCodeInternalError
	}
}

// Dispatch routes one decoded request to its handler. It
// never panics on bad params: malformed params surface as ErrCodeInvalidParams.
func (s *Service) Dispatch(ctx context.Context, req Request) Response {
	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Status: "ok", Initialized: true, IndexName: DefaultIndexName})

	case MethodIndexBookmark:
		return s.handleIndexBookmark(ctx, req)
	case MethodIndexBookmarksBatch:
		return s.handleIndexBookmarksBatch(req)
	case MethodIndexBookmarkChunk:
		return s.handleIndexBookmarkChunk(req)
	case MethodBatchStart:
		return s.handleBatchStart(req)
	case MethodBatchAdd:
		return s.handleBatchAdd(req)
	case MethodBatchEnd:
		return s.handleBatchEnd(req)
	case MethodCheckForUpdates:
		return s.handleCheckForUpdates(req)
	case MethodSyncBookmarks:
		return s.handleSyncBookmarks(req)
	case MethodListIndexes:
		return s.handleListIndexes(req)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func decodeParams[T any](req Request) (T, error) {
	var out T
	if err := remarshal(req.Params, &out); err != nil {
		return out, fmt.Errorf("failed to decode params: %w", err)
	}
	return out, nil
}

func (s *Service) handleIndexBookmark(ctx context.Context, req Request) Response {
	p, err := decodeParams[IndexBookmarkParams](req)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}
	if p.ID == "" {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "id is required")
	}

	indexName := indexNameOr(p.IndexName)
	w, err := s.indices.Writer(indexName)
	if err != nil {
		return NewErrorResponse(req.ID, mapError(err), err.Error())
	}

	if p.Content == "" && s.fetcher != nil && p.URL != "" {
		fetched, fetchErr := s.fetcher.Fetch(ctx, p.URL)
		if fetchErr != nil {
			slog.Warn("content_fetch_skipped",
				slog.String("url", p.URL), slog.String("error", fetchErr.Error()))
		} else {
			p.Content = fetched
		}
	}

	if p.SkipIfUnchanged {
		states, _ := w.BookmarkStates()
		if prev, ok := states[p.ID]; ok && p.Content != "" && prev.ContentHash == bookmark.ContentHash(p.Content) {
			return NewSuccessResponse(req.ID, IndexBookmarkResult{Status: "skipped", URL: p.URL})
		}
	}

	b := toBookmark(p.BookmarkParams)
	if err := docbuild.IndexBookmark(w, b, p.Content, toPageInfo(p.PageInfo)); err != nil {
		return NewErrorResponse(req.ID, mapError(err), err.Error())
	}
	if err := w.Commit(); err != nil {
		return NewErrorResponse(req.ID, mapError(err), err.Error())
	}

	_ = w.RecordBookmarkState(p.ID, indexedState(p.URL, p.DateModified, p.Content))

	return NewSuccessResponse(req.ID, IndexBookmarkResult{Status: "indexed", URL: p.URL})
}

func (s *Service) handleIndexBookmarksBatch(req Request) Response {
	p, err := decodeParams[IndexBookmarksBatchParams](req)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	indexName := indexNameOr(p.IndexName)
	w, err := s.indices.Writer(indexName)
	if err != nil {
		return NewErrorResponse(req.ID, mapError(err), err.Error())
	}

	var successCount, errorCount int
	for _, bp := range p.Bookmarks {
		b := toBookmark(bp)
		if err := docbuild.IndexBookmark(w, b, bp.Content, toPageInfo(bp.PageInfo)); err != nil {
			errorCount++
			continue
		}
		successCount++
		_ = w.RecordBookmarkState(bp.ID, indexedState(bp.URL, bp.DateModified, bp.Content))
	}

	if err := w.Commit(); err != nil {
		return NewErrorResponse(req.ID, mapError(err), err.Error())
	}

	return NewSuccessResponse(req.ID, IndexBookmarksBatchResult{
		SuccessCount: successCount,
		ErrorCount:   errorCount,
		Total:        len(p.Bookmarks),
	})
}

func (s *Service) handleIndexBookmarkChunk(req Request) Response {
	p, err := decodeParams[IndexBookmarkChunkParams](req)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	chunk := chunksession.Chunk{
		SessionID:   p.ChunkSessionID,
		BookmarkID:  p.BookmarkID,
		Index:       p.ChunkIndex,
		TotalChunks: p.TotalChunks,
		Text:        p.ChunkContent,
	}
	if p.ChunkIndex == 0 {
		meta := bookmark.Bookmark{
			ID: p.BookmarkID, Title: p.Title, URL: p.URL, FolderPath: p.FolderPath,
			DateAdded: p.DateAdded, DateModified: p.DateModified,
		}
		chunk.Meta = &meta
		chunk.PageInfo = toPageInfo(p.PageInfo)

		s.mu.Lock()
		s.chunkIndexOf[p.ChunkSessionID] = indexNameOr(p.IndexName)
		s.mu.Unlock()
	}

	s.mu.Lock()
	seen := s.chunkSeen[p.ChunkSessionID]
	if seen == nil {
		seen = make(map[int]bool)
		s.chunkSeen[p.ChunkSessionID] = seen
	}
	seen[p.ChunkIndex] = true
	received := len(seen)
	indexName := s.chunkIndexOf[p.ChunkSessionID]
	s.mu.Unlock()

	result, err := s.chunks.Add(chunk)
	if err != nil {
		s.mu.Lock()
		delete(s.chunkSeen, p.ChunkSessionID)
		delete(s.chunkIndexOf, p.ChunkSessionID)
		s.mu.Unlock()
		return NewErrorResponse(req.ID, mapError(err), err.Error())
	}

	if result == nil {
		return NewSuccessResponse(req.ID, IndexBookmarkChunkResult{
			Status: "chunk_received", ChunksReceived: received, TotalChunks: p.TotalChunks,
		})
	}

	s.mu.Lock()
	delete(s.chunkSeen, p.ChunkSessionID)
	delete(s.chunkIndexOf, p.ChunkSessionID)
	s.mu.Unlock()

	w, err := s.indices.Writer(indexNameOr(indexName))
	if err != nil {
		return NewErrorResponse(req.ID, mapError(err), err.Error())
	}
	if err := docbuild.IndexBookmark(w, result.Bookmark, result.Content, result.PageInfo); err != nil {
		return NewErrorResponse(req.ID, mapError(err), err.Error())
	}
	if err := w.Commit(); err != nil {
		return NewErrorResponse(req.ID, mapError(err), err.Error())
	}
	_ = w.RecordBookmarkState(result.Bookmark.ID, indexedState(result.Bookmark.URL, result.Bookmark.DateModified, result.Content))

	return NewSuccessResponse(req.ID, IndexBookmarkChunkResult{
		Status: "indexed", ChunksReceived: p.TotalChunks, TotalChunks: p.TotalChunks,
	})
}

func (s *Service) handleBatchStart(req Request) Response {
	p, err := decodeParams[BatchStartParams](req)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}
	if err := s.batches.Start(p.BatchID, p.Total); err != nil {
		return NewErrorResponse(req.ID, mapError(err), err.Error())
	}

	s.mu.Lock()
	s.batchIndexOf[p.BatchID] = indexNameOr(p.IndexName)
	s.mu.Unlock()

	return NewSuccessResponse(req.ID, BatchStartResult{Status: "started", BatchID: p.BatchID})
}

func (s *Service) handleBatchAdd(req Request) Response {
	p, err := decodeParams[BatchAddParams](req)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	s.mu.Lock()
	indexName, ok := s.batchIndexOf[p.BatchID]
	s.mu.Unlock()
	if !ok {
		indexName = DefaultIndexName
	}

	item := batch.Item{
		IndexName: indexName,
		Bookmark:  toBookmark(p.Bookmark),
		Content:   p.Content,
	}
	status, received, total, err := s.batches.Add(p.BatchID, p.Index, item)
	if err != nil {
		return NewErrorResponse(req.ID, mapError(err), err.Error())
	}
	return NewSuccessResponse(req.ID, BatchAddResult{Status: string(status), Received: received, Total: total})
}

func (s *Service) handleBatchEnd(req Request) Response {
	p, err := decodeParams[BatchEndParams](req)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	summary, err := s.batches.End(p.BatchID)
	if err != nil {
		return NewErrorResponse(req.ID, mapError(err), err.Error())
	}

	s.mu.Lock()
	delete(s.batchIndexOf, p.BatchID)
	s.mu.Unlock()

	return NewSuccessResponse(req.ID, BatchEndResult{
		SuccessCount: summary.SuccessCount,
		FailedCount:  summary.FailedCount,
		DurationMs:   summary.Duration.Milliseconds(),
	})
}

func (s *Service) handleCheckForUpdates(req Request) Response {
	p, err := decodeParams[CheckForUpdatesParams](req)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	w, err := s.indices.Writer(DefaultIndexName)
	if err != nil {
		return NewErrorResponse(req.ID, mapError(err), err.Error())
	}
	states, _ := w.BookmarkStates()

	var newB, updatedB []string
	for _, b := range p.Bookmarks {
		prev, ok := states[b.ID]
		switch {
		case !ok:
			newB = append(newB, b.ID)
		case prev.DateModified != b.DateModified:
			updatedB = append(updatedB, b.ID)
		}
	}

	docCount, _ := w.DocCount()
	return NewSuccessResponse(req.ID, CheckForUpdatesResult{
		NewBookmarks: newB, UpdatedBookmarks: updatedB, TotalIndexed: int(docCount),
	})
}

func (s *Service) handleSyncBookmarks(req Request) Response {
	w, err := s.indices.Writer(DefaultIndexName)
	if err != nil {
		return NewErrorResponse(req.ID, mapError(err), err.Error())
	}
	if err := w.MarkFullSync(time.Now()); err != nil {
		return NewErrorResponse(req.ID, mapError(err), err.Error())
	}

	docCount, err := w.DocCount()
	if err != nil {
		return NewErrorResponse(req.ID, mapError(err), err.Error())
	}
	return NewSuccessResponse(req.ID, SyncBookmarksResult{Status: "synced", BookmarkCount: int(docCount)})
}

func (s *Service) handleListIndexes(req Request) Response {
	names, err := s.indices.ListIndexes()
	if err != nil {
		return NewErrorResponse(req.ID, mapError(err), err.Error())
	}

	summaries := make([]IndexSummary, 0, len(names))
	for _, name := range names {
		size, docCount, err := s.indices.Stat(name)
		if err != nil {
			continue
		}
		summaries = append(summaries, IndexSummary{Name: name, Size: size, DocCount: docCount})
	}
	return NewSuccessResponse(req.ID, ListIndexesResult{Indexes: summaries})
}

// indexedState builds the check_for_updates sidecar entry recorded after a
// successful index.
func indexedState(url, dateModified, content string) store.BookmarkState {
	return store.BookmarkState{
		URL:          url,
		DateModified: dateModified,
		IndexedAt:    time.Now().UTC().Format(time.RFC3339),
		ContentHash:  bookmark.ContentHash(content),
	}
}

// remarshal round-trips src through JSON into dst, used to decode a
// request's loosely-typed Params into a concrete struct.
func remarshal(src any, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
