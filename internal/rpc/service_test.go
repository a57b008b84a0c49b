package rpc

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(filepath.Join(t.TempDir(), "indices"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func call(s *Service, method string, params any) Response {
	return s.Dispatch(context.Background(), Request{JSONRPC: "2.0", Method: method, ID: "1", Params: params})
}

func TestService_Ping(t *testing.T) {
	s := newTestService(t)
	resp := call(s, MethodPing, nil)
	require.Nil(t, resp.Error)
	result := resp.Result.(PingResult)
	assert.Equal(t, "ok", result.Status)
}

func TestService_UnknownMethod(t *testing.T) {
	s := newTestService(t)
	resp := call(s, "not_a_method", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
}

func TestService_IndexBookmarkRoundTrip(t *testing.T) {
	s := newTestService(t)
	resp := call(s, MethodIndexBookmark, IndexBookmarkParams{
		BookmarkParams: BookmarkParams{ID: "1", Title: "Example", URL: "https://example.com", Content: "hello world"},
	})
	require.Nil(t, resp.Error)
	result := resp.Result.(IndexBookmarkResult)
	assert.Equal(t, "indexed", result.Status)

	searcher, err := s.indices.Searcher(DefaultIndexName)
	require.NoError(t, err)
	results, err := searcher.Search(context.Background(), "hello", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].ID)
}

func TestService_IndexBookmarkSkipIfUnchanged(t *testing.T) {
	s := newTestService(t)
	params := IndexBookmarkParams{
		BookmarkParams: BookmarkParams{ID: "1", URL: "https://example.com", Content: "hello world", SkipIfUnchanged: true},
	}
	resp := call(s, MethodIndexBookmark, params)
	require.Nil(t, resp.Error)
	assert.Equal(t, "indexed", resp.Result.(IndexBookmarkResult).Status)

	resp = call(s, MethodIndexBookmark, params)
	require.Nil(t, resp.Error)
	assert.Equal(t, "skipped", resp.Result.(IndexBookmarkResult).Status)
}

// Scenario 1 of small-batch immediate commit.
func TestService_SmallBatchImmediateCommit(t *testing.T) {
	s := newTestService(t)

	resp := call(s, MethodBatchStart, BatchStartParams{BatchID: "b1", Total: 2})
	require.Nil(t, resp.Error)

	resp = call(s, MethodBatchAdd, BatchAddParams{BatchID: "b1", Index: 0, Bookmark: BookmarkParams{ID: "1", URL: "https://a"}})
	require.Nil(t, resp.Error)
	resp = call(s, MethodBatchAdd, BatchAddParams{BatchID: "b1", Index: 1, Bookmark: BookmarkParams{ID: "2", URL: "https://b"}})
	require.Nil(t, resp.Error)

	resp = call(s, MethodBatchEnd, BatchEndParams{BatchID: "b1"})
	require.Nil(t, resp.Error)
	ended := resp.Result.(BatchEndResult)
	assert.Equal(t, 2, ended.SuccessCount)
	assert.Equal(t, 0, ended.FailedCount)

	searcher, err := s.indices.Searcher(DefaultIndexName)
	require.NoError(t, err)
	results, err := searcher.Search(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

// Scenario 2 of duplicate index within a batch is idempotent.
func TestService_BatchAddDuplicateIndexIgnored(t *testing.T) {
	s := newTestService(t)

	resp := call(s, MethodBatchStart, BatchStartParams{BatchID: "b2", Total: 3})
	require.Nil(t, resp.Error)

	resp = call(s, MethodBatchAdd, BatchAddParams{BatchID: "b2", Index: 0, Bookmark: BookmarkParams{ID: "1", URL: "https://a"}})
	require.Nil(t, resp.Error)
	assert.Equal(t, "added", resp.Result.(BatchAddResult).Status)

	resp = call(s, MethodBatchAdd, BatchAddParams{BatchID: "b2", Index: 0, Bookmark: BookmarkParams{ID: "1", URL: "https://a"}})
	require.Nil(t, resp.Error)
	assert.Equal(t, "duplicate", resp.Result.(BatchAddResult).Status)

	resp = call(s, MethodBatchAdd, BatchAddParams{BatchID: "b2", Index: 1, Bookmark: BookmarkParams{ID: "2", URL: "https://b"}})
	require.Nil(t, resp.Error)
	added := resp.Result.(BatchAddResult)
	assert.Equal(t, 2, added.Received)
	assert.Equal(t, 3, added.Total)

	resp = call(s, MethodBatchEnd, BatchEndParams{BatchID: "b2"})
	require.Nil(t, resp.Error)
}

func TestService_ChunkedTransfer(t *testing.T) {
	s := newTestService(t)

	resp := call(s, MethodIndexBookmarkChunk, IndexBookmarkChunkParams{
		ChunkSessionID: "sess1", BookmarkID: "bm1", ChunkIndex: 0, TotalChunks: 3,
		ChunkContent: "AAA", IsLastChunk: false, Title: "Big doc", URL: "https://big.example.com",
	})
	require.Nil(t, resp.Error)
	assert.Equal(t, "chunk_received", resp.Result.(IndexBookmarkChunkResult).Status)

	resp = call(s, MethodIndexBookmarkChunk, IndexBookmarkChunkParams{
		ChunkSessionID: "sess1", BookmarkID: "bm1", ChunkIndex: 2, TotalChunks: 3, ChunkContent: "CCC",
	})
	require.Nil(t, resp.Error)
	assert.Equal(t, "chunk_received", resp.Result.(IndexBookmarkChunkResult).Status)

	resp = call(s, MethodIndexBookmarkChunk, IndexBookmarkChunkParams{
		ChunkSessionID: "sess1", BookmarkID: "bm1", ChunkIndex: 1, TotalChunks: 3, ChunkContent: "BBB", IsLastChunk: true,
	})
	require.Nil(t, resp.Error)
	assert.Equal(t, "indexed", resp.Result.(IndexBookmarkChunkResult).Status)

	searcher, err := s.indices.Searcher(DefaultIndexName)
	require.NoError(t, err)
	content, found, err := searcher.GetContentByURL(context.Background(), "https://big.example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "AAABBBCCC", content)
}

func TestService_ListIndexes(t *testing.T) {
	s := newTestService(t)
	call(s, MethodIndexBookmark, IndexBookmarkParams{
		IndexName:      "work",
		BookmarkParams: BookmarkParams{ID: "1", URL: "https://a.com"},
	})

	resp := call(s, MethodListIndexes, nil)
	require.Nil(t, resp.Error)
	result := resp.Result.(ListIndexesResult)
	require.Len(t, result.Indexes, 1)
	assert.Equal(t, "work", result.Indexes[0].Name)
	assert.Equal(t, uint64(1), result.Indexes[0].DocCount)
}

func TestService_CheckForUpdates(t *testing.T) {
	s := newTestService(t)
	call(s, MethodIndexBookmark, IndexBookmarkParams{
		BookmarkParams: BookmarkParams{ID: "1", URL: "https://a.com", DateModified: "2024-01-01T00:00:00Z"},
	})

	resp := call(s, MethodCheckForUpdates, CheckForUpdatesParams{
		Bookmarks: []struct {
			ID           string `json:"id"`
			DateModified string `json:"date_modified"`
		}{
			{ID: "1", DateModified: "2024-01-01T00:00:00Z"},
			{ID: "1", DateModified: "2024-02-01T00:00:00Z"},
			{ID: "2", DateModified: "2024-01-01T00:00:00Z"},
		},
	})
	require.Nil(t, resp.Error)
	result := resp.Result.(CheckForUpdatesResult)
	assert.Equal(t, []string{"2"}, result.NewBookmarks)
	assert.Equal(t, []string{"1"}, result.UpdatedBookmarks)
}

func TestService_SyncBookmarks(t *testing.T) {
	s := newTestService(t)
	call(s, MethodIndexBookmark, IndexBookmarkParams{
		BookmarkParams: BookmarkParams{ID: "1", URL: "https://a.com"},
	})

	resp := call(s, MethodSyncBookmarks, nil)
	require.Nil(t, resp.Error)
	result := resp.Result.(SyncBookmarksResult)
	assert.Equal(t, "synced", result.Status)
	assert.Equal(t, 1, result.BookmarkCount)
}
