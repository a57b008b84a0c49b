package docbuild

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nakamura-shuta/mcp-bookmark/internal/bookmark"
	"github.com/nakamura-shuta/mcp-bookmark/internal/store"
)

func testBookmark() bookmark.Bookmark {
	return bookmark.Bookmark{
		ID:         "b1",
		Title:      "Example",
		URL:        "https://Example.com/a",
		FolderPath: []string{"Bookmarks Bar", "Work"},
	}
}

func TestBuildDocument_NoContent(t *testing.T) {
	docs := BuildDocument(testBookmark(), "", nil)
	require.Len(t, docs, 1)
	assert.Equal(t, "b1", docs[0].ID)
	assert.Equal(t, "", docs[0].Content)
	assert.Equal(t, "example.com", docs[0].Domain)
	assert.Equal(t, "Bookmarks Bar/Work", docs[0].FolderPath)
}

func TestBuildDocument_ContentUnderCap(t *testing.T) {
	docs := BuildDocument(testBookmark(), "hello world", nil)
	require.Len(t, docs, 1)
	assert.Equal(t, "b1", docs[0].ID)
	assert.Equal(t, "hello world", docs[0].Content)
}

func TestBuildDocument_ContentOverCapNoPageInfo(t *testing.T) {
	content := strings.Repeat("a", bookmark.MaxPageSplitChars+10)
	docs := BuildDocument(testBookmark(), content, nil)
	require.Len(t, docs, 1, "no page info means no split regardless of size")
	assert.Equal(t, "b1", docs[0].ID)
}

func TestBuildDocument_PageSplit(t *testing.T) {
	pageSize := bookmark.MaxPageSplitChars/2 + 1
	content := strings.Repeat("a", pageSize) + strings.Repeat("b", pageSize) + strings.Repeat("c", pageSize)
	info := &bookmark.PageInfo{
		PageCount:   3,
		PageOffsets: []int{0, pageSize, 2 * pageSize},
		CharCount:   len(content),
	}

	docs := BuildDocument(testBookmark(), content, info)
	require.Len(t, docs, 3, "each page alone already exceeds half the cap, so no two pages fit together")

	for i, doc := range docs {
		assert.Equal(t, bookmark.PartID("b1", i), doc.ID)
		assert.Equal(t, "https://Example.com/a", doc.URL)
		assert.Equal(t, "Bookmarks Bar/Work", doc.FolderPath)
	}

	var reassembled string
	for _, doc := range docs {
		reassembled += doc.Content
	}
	assert.Equal(t, content, reassembled, "parts must cover the content with no gaps or overlaps")
}

func TestBuildDocument_PageSplitGroupsSmallPages(t *testing.T) {
	page := strings.Repeat("x", 10)
	var pages []string
	var offsets []int
	offset := 0
	for i := 0; i < 5; i++ {
		pages = append(pages, page)
		offsets = append(offsets, offset)
		offset += len(page)
	}
	content := strings.Join(pages, "")

	info := &bookmark.PageInfo{PageCount: len(pages), PageOffsets: offsets, CharCount: len(content)}
	docs := BuildDocument(testBookmark(), content, info)
	require.Len(t, docs, 1, "small pages well under the cap should be grouped into one part")
	assert.Equal(t, content, docs[0].Content)
}

func TestDeleteBookmark(t *testing.T) {
	w, err := store.NewWriter("", store.WriterConfig{IndexName: "test"})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Add(&store.Document{ID: "b1", Title: "x"}))
	require.NoError(t, w.Add(&store.Document{ID: "b1_part_0", Title: "x"}))
	require.NoError(t, w.Commit())

	count, err := w.DocCount()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	require.NoError(t, DeleteBookmark(w, "b1"))
	require.NoError(t, w.Commit())

	count, err = w.DocCount()
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestIndexBookmark_RoundTrip(t *testing.T) {
	w, err := store.NewWriter("", store.WriterConfig{IndexName: "test"})
	require.NoError(t, err)
	defer w.Close()

	b := testBookmark()
	require.NoError(t, IndexBookmark(w, b, "hello world", nil))
	require.NoError(t, w.Commit())

	count, err := w.DocCount()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
