package chunksession

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nakamura-shuta/mcp-bookmark/internal/bookmark"
)

func TestManager_InOrderReassembly(t *testing.T) {
	m := NewManager()
	meta := &bookmark.Bookmark{ID: "b1", Title: "Doc"}

	r, err := m.Add(Chunk{SessionID: "s1", BookmarkID: "b1", Index: 0, TotalChunks: 3, Text: "hello ", Meta: meta})
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = m.Add(Chunk{SessionID: "s1", BookmarkID: "b1", Index: 1, TotalChunks: 3, Text: "world "})
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = m.Add(Chunk{SessionID: "s1", BookmarkID: "b1", Index: 2, TotalChunks: 3, Text: "!"})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "hello world !", r.Content)
	assert.Equal(t, "b1", r.Bookmark.ID)

	assert.False(t, m.Open("s1"))
}

func TestManager_OutOfOrderReassembly(t *testing.T) {
	m := NewManager()
	meta := &bookmark.Bookmark{ID: "b2"}

	_, err := m.Add(Chunk{SessionID: "s2", BookmarkID: "b2", Index: 2, TotalChunks: 3, Text: "c"})
	require.NoError(t, err)
	_, err = m.Add(Chunk{SessionID: "s2", BookmarkID: "b2", Index: 0, TotalChunks: 3, Text: "a", Meta: meta})
	require.NoError(t, err)
	r, err := m.Add(Chunk{SessionID: "s2", BookmarkID: "b2", Index: 1, TotalChunks: 3, Text: "b"})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "abc", r.Content)
}

func TestManager_RepeatedIndexOverwrites(t *testing.T) {
	m := NewManager()
	meta := &bookmark.Bookmark{ID: "b3"}

	_, err := m.Add(Chunk{SessionID: "s3", BookmarkID: "b3", Index: 0, TotalChunks: 2, Text: "first", Meta: meta})
	require.NoError(t, err)
	_, err = m.Add(Chunk{SessionID: "s3", BookmarkID: "b3", Index: 0, TotalChunks: 2, Text: "second", Meta: meta})
	require.NoError(t, err)

	r, err := m.Add(Chunk{SessionID: "s3", BookmarkID: "b3", Index: 1, TotalChunks: 2, Text: "-tail"})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "second-tail", r.Content)
}

func TestManager_MissingMetadataOnCompletion(t *testing.T) {
	m := NewManager()
	_, err := m.Add(Chunk{SessionID: "s4", BookmarkID: "b4", Index: 0, TotalChunks: 1, Text: "x"})
	require.Error(t, err, "chunk 0 with no Meta must fail at completion")
}

func TestManager_InvalidIndex(t *testing.T) {
	m := NewManager()
	_, err := m.Add(Chunk{SessionID: "s5", BookmarkID: "b5", Index: 5, TotalChunks: 3, Text: "x"})
	assert.Error(t, err)

	_, err = m.Add(Chunk{SessionID: "s6", BookmarkID: "b6", Index: 0, TotalChunks: 0, Text: "x"})
	assert.Error(t, err)
}

func TestManager_Abandon(t *testing.T) {
	m := NewManager()
	_, err := m.Add(Chunk{SessionID: "s7", BookmarkID: "b7", Index: 0, TotalChunks: 2, Text: "x", Meta: &bookmark.Bookmark{ID: "b7"}})
	require.NoError(t, err)
	assert.True(t, m.Open("s7"))

	m.Abandon("s7")
	assert.False(t, m.Open("s7"))
}
