package mcpadapter

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nakamura-shuta/mcp-bookmark/internal/bookmark"
	"github.com/nakamura-shuta/mcp-bookmark/internal/docbuild"
	"github.com/nakamura-shuta/mcp-bookmark/internal/multiindex"
)

func newTestServer(t *testing.T, indexNames ...string) *Server {
	t.Helper()
	mgr, err := multiindex.New(filepath.Join(t.TempDir(), "indices"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	if len(indexNames) == 0 {
		indexNames = []string{"default"}
	}
	s, err := New(mgr, indexNames)
	require.NoError(t, err)
	return s
}

func indexInto(t *testing.T, s *Server, indexName string, b bookmark.Bookmark, content string) {
	t.Helper()
	w, err := s.indices.Writer(indexName)
	require.NoError(t, err)
	require.NoError(t, docbuild.IndexBookmark(w, b, content, nil))
	require.NoError(t, w.Commit())
}

func TestNew_RequiresIndicesAndDefaultNames(t *testing.T) {
	_, err := New(nil, []string{"default"})
	assert.Error(t, err)

	mgr, err := multiindex.New(filepath.Join(t.TempDir(), "indices"))
	require.NoError(t, err)
	defer mgr.Close()

	_, err = New(mgr, nil)
	assert.Error(t, err)
}

func TestHandleSearch_RequiresQuery(t *testing.T) {
	s := newTestServer(t)
	_, _, err := s.handleSearch(context.Background(), nil, SearchInput{})
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestHandleSearch_ReturnsRankedResults(t *testing.T) {
	s := newTestServer(t)
	indexInto(t, s, "default", bookmark.Bookmark{
		ID: "1", Title: "React hooks guide", URL: "https://react.dev/hooks",
		FolderPath: []string{"Bookmarks Bar", "Dev"},
	}, "useState and useEffect are the most common React hooks.")
	indexInto(t, s, "default", bookmark.Bookmark{
		ID: "2", Title: "Go concurrency", URL: "https://go.dev/doc/effective_go",
		FolderPath: []string{"Bookmarks Bar", "Dev"},
	}, "goroutines and channels are Go's concurrency primitives.")

	_, out, err := s.handleSearch(context.Background(), nil, SearchInput{Query: "React hooks"})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "1", out.Results[0].ID)
	assert.True(t, out.Results[0].HasContent)
	assert.NotEmpty(t, out.Results[0].Snippet)
}

func TestHandleSearchAdvanced_FiltersByFolder(t *testing.T) {
	s := newTestServer(t)
	indexInto(t, s, "default", bookmark.Bookmark{
		ID: "1", Title: "Work doc", URL: "https://work.example.com/a",
		FolderPath: []string{"Bookmarks Bar", "Work"},
	}, "quarterly planning notes")
	indexInto(t, s, "default", bookmark.Bookmark{
		ID: "2", Title: "Personal doc", URL: "https://personal.example.com/b",
		FolderPath: []string{"Bookmarks Bar", "Personal"},
	}, "quarterly planning notes")

	_, out, err := s.handleSearchAdvanced(context.Background(), nil, SearchAdvancedInput{
		Query: "quarterly", Folder: "Bookmarks Bar/Work",
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "1", out.Results[0].ID)
}

func TestHandleSearchAdvanced_ExplicitIndexNamesOverrideDefault(t *testing.T) {
	s := newTestServer(t, "work")
	indexInto(t, s, "personal", bookmark.Bookmark{
		ID: "1", Title: "Recipe", URL: "https://cook.example.com/a",
	}, "pasta carbonara recipe")

	_, out, err := s.handleSearchAdvanced(context.Background(), nil, SearchAdvancedInput{
		Query: "pasta", IndexNames: []string{"personal"},
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "1", out.Results[0].ID)
}

func TestHandleGetContentByURL_FoundAndNotFound(t *testing.T) {
	s := newTestServer(t)
	indexInto(t, s, "default", bookmark.Bookmark{ID: "1", URL: "https://example.com/a"}, "the full page content")

	_, out, err := s.handleGetContentByURL(context.Background(), nil, GetContentByURLInput{URL: "https://example.com/a"})
	require.NoError(t, err)
	assert.True(t, out.Found)
	assert.Equal(t, "the full page content", out.Content)

	_, out, err = s.handleGetContentByURL(context.Background(), nil, GetContentByURLInput{URL: "https://example.com/missing"})
	require.NoError(t, err)
	assert.False(t, out.Found)
}

func TestHandleGetContentByURL_RequiresURL(t *testing.T) {
	s := newTestServer(t)
	_, _, err := s.handleGetContentByURL(context.Background(), nil, GetContentByURLInput{})
	require.Error(t, err)
}

func TestHandleListFolders_DedupesAcrossBookmarks(t *testing.T) {
	s := newTestServer(t)
	indexInto(t, s, "default", bookmark.Bookmark{ID: "1", URL: "https://a", FolderPath: []string{"Bar", "Dev"}}, "")
	indexInto(t, s, "default", bookmark.Bookmark{ID: "2", URL: "https://b", FolderPath: []string{"Bar", "Dev"}}, "")
	indexInto(t, s, "default", bookmark.Bookmark{ID: "3", URL: "https://c", FolderPath: []string{"Bar", "Personal"}}, "")

	_, out, err := s.handleListFolders(context.Background(), nil, ListFoldersInput{})
	require.NoError(t, err)
	assert.Len(t, out.Folders, 2)
}

func TestHandleListFolders_ExplicitIndexName(t *testing.T) {
	s := newTestServer(t, "work")
	indexInto(t, s, "personal", bookmark.Bookmark{ID: "1", URL: "https://a", FolderPath: []string{"Home"}}, "")

	_, out, err := s.handleListFolders(context.Background(), nil, ListFoldersInput{IndexName: "personal"})
	require.NoError(t, err)
	require.Len(t, out.Folders, 1)
	assert.Equal(t, []string{"Home"}, out.Folders[0])
}
