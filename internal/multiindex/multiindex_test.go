package multiindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nakamura-shuta/mcp-bookmark/internal/bookmark"
	"github.com/nakamura-shuta/mcp-bookmark/internal/docbuild"
	"github.com/nakamura-shuta/mcp-bookmark/internal/query"
)

func TestManager_ListIndexesEmptyRoot(t *testing.T) {
	m, err := New(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	names, err := m.ListIndexes()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestManager_OpenWriteListStat(t *testing.T) {
	root := t.TempDir()
	m, err := New(root)
	require.NoError(t, err)
	defer m.Close()

	w, err := m.Writer("work")
	require.NoError(t, err)
	require.NoError(t, docbuild.IndexBookmark(w, bookmark.Bookmark{
		ID: "1", Title: "T", URL: "https://a.example.com",
	}, "hello", nil))
	require.NoError(t, w.Commit())

	names, err := m.ListIndexes()
	require.NoError(t, err)
	assert.Equal(t, []string{"work"}, names)

	size, docCount, err := m.Stat("work")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), docCount)
	assert.Greater(t, size, int64(0))
}

func TestManager_SearchMergesAcrossIndicesByURL(t *testing.T) {
	root := t.TempDir()
	m, err := New(root)
	require.NoError(t, err)
	defer m.Close()

	w1, err := m.Writer("idx1")
	require.NoError(t, err)
	require.NoError(t, docbuild.IndexBookmark(w1, bookmark.Bookmark{ID: "1", Title: "Shared", URL: "https://shared.example.com"}, "database connection pooling guide", nil))
	require.NoError(t, w1.Commit())

	w2, err := m.Writer("idx2")
	require.NoError(t, err)
	require.NoError(t, docbuild.IndexBookmark(w2, bookmark.Bookmark{ID: "2", Title: "Shared", URL: "https://shared.example.com"}, "database connection pooling guide database database", nil))
	require.NoError(t, w2.Commit())
	require.NoError(t, docbuild.IndexBookmark(w2, bookmark.Bookmark{ID: "3", Title: "Only in idx2", URL: "https://other.example.com"}, "database connection pooling", nil))
	require.NoError(t, w2.Commit())

	results, err := m.Search(context.Background(), []string{"idx1", "idx2"}, "database connection pooling", query.Filters{}, 10)
	require.NoError(t, err)

	var sharedCount int
	for _, r := range results {
		if r.URL == "https://shared.example.com" {
			sharedCount++
		}
	}
	assert.Equal(t, 1, sharedCount, "shared URL must be merged exactly once")
	assert.Len(t, results, 2)
}

func TestManager_SearchToleratesNonexistentIndexName(t *testing.T) {
	root := t.TempDir()
	m, err := New(root)
	require.NoError(t, err)
	defer m.Close()

	w, err := m.Writer("real")
	require.NoError(t, err)
	require.NoError(t, docbuild.IndexBookmark(w, bookmark.Bookmark{ID: "1", Title: "T", URL: "https://a.com"}, "content here", nil))
	require.NoError(t, w.Commit())

	// "not-yet-created" names an index directory that doesn't exist yet; it
	// contributes no hits but must not fail the overall fan-out.
	results, err := m.Search(context.Background(), []string{"real", "not-yet-created"}, "content", query.Filters{}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
