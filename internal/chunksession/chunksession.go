// Package chunksession reassembles a large bookmark's content from
// protocol chunks that may arrive out of order, handing the reassembled
// (bookmark, content, page info) tuple to the indexer once complete.
package chunksession

import (
	"fmt"
	"unicode/utf8"

	"github.com/nakamura-shuta/mcp-bookmark/internal/bookmark"
)

// Chunk is one protocol message carrying a content fragment.
// Meta and PageInfo are only populated on the first chunk (Index == 0).
type Chunk struct {
	SessionID   string
	BookmarkID  string
	Index       int
	TotalChunks int
	Text        string
	Meta        *bookmark.Bookmark
	PageInfo    *bookmark.PageInfo
}

// Reassembled is the completed payload handed off to the indexer.
type Reassembled struct {
	Bookmark bookmark.Bookmark
	Content  string
	PageInfo *bookmark.PageInfo
}

// session accumulates one in-flight chunk transfer.
type session struct {
	bookmarkID  string
	totalChunks int
	chunks      map[int]string
	meta        *bookmark.Bookmark
	pageInfo    *bookmark.PageInfo
}

// Manager owns every in-flight chunk session, keyed by session id.
// Unlike batch.Manager, sessions do not need fine-grained per-session
// locking: chunk arrival for one bookmark is expected to be effectively
// serialized by the client, and callers serialize access to a single
// Manager via the same dispatch loop that owns RPC request handling.
type Manager struct {
	sessions map[string]*session
}

// NewManager creates an empty chunk session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*session)}
}

// Add records one chunk. When it is the last missing index for its
// session, Add reassembles the content and returns it; otherwise it
// returns (nil, nil) to indicate the session is still open.
//
// A repeated index overwrites the earlier chunk rather than erroring: the
// wire format promises each index once per session but gives no ordering,
// and a retry after a dropped response resends the same index.
func (m *Manager) Add(c Chunk) (*Reassembled, error) {
	if c.TotalChunks <= 0 {
		return nil, fmt.Errorf("session %q: total_chunks must be > 0, got %d", c.SessionID, c.TotalChunks)
	}
	if c.Index < 0 || c.Index >= c.TotalChunks {
		return nil, fmt.Errorf("session %q: chunk index %d out of range [0,%d)", c.SessionID, c.Index, c.TotalChunks)
	}

	s, ok := m.sessions[c.SessionID]
	if !ok {
		s = &session{
			bookmarkID:  c.BookmarkID,
			totalChunks: c.TotalChunks,
			chunks:      make(map[int]string, c.TotalChunks),
		}
		m.sessions[c.SessionID] = s
	}

	if c.Index == 0 {
		s.meta = c.Meta
		s.pageInfo = c.PageInfo
	}
	s.chunks[c.Index] = c.Text

	if len(s.chunks) < s.totalChunks {
		return nil, nil
	}

	delete(m.sessions, c.SessionID)

	if s.meta == nil {
		return nil, fmt.Errorf("session %q: completed without chunk 0 metadata", c.SessionID)
	}

	content, err := concatenate(s)
	if err != nil {
		return nil, err
	}

	return &Reassembled{
		Bookmark: *s.meta,
		Content:  content,
		PageInfo: s.pageInfo,
	}, nil
}

// concatenate joins chunks 0..total-1 in order. A missing index at this
// point is fatal for the session; the client retries with a new session.
func concatenate(s *session) (string, error) {
	var out []byte
	for i := 0; i < s.totalChunks; i++ {
		text, ok := s.chunks[i]
		if !ok {
			return "", fmt.Errorf("session for bookmark %q: missing chunk %d of %d", s.bookmarkID, i, s.totalChunks)
		}
		out = append(out, text...)
	}

	if !utf8.Valid(out) {
		return "", fmt.Errorf("session for bookmark %q: reassembled content is not valid UTF-8", s.bookmarkID)
	}

	return string(out), nil
}

// Abandon drops a session without reassembling it, e.g. so a client can
// retry with a fresh session id.
func (m *Manager) Abandon(sessionID string) {
	delete(m.sessions, sessionID)
}

// Open reports whether sessionID currently has an in-flight reassembly.
func (m *Manager) Open(sessionID string) bool {
	_, ok := m.sessions[sessionID]
	return ok
}
