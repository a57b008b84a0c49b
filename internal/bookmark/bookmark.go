// Package bookmark defines the ingestion-side data model: the bookmark
// record and page info the external client streams in, and the derived-id
// helpers that keep page-split parts in sync with their parent.
package bookmark

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"
)

// MaxPageSplitChars is the safety cap beyond which a multi-page bookmark is
// split into multiple documents. The morphological tokenizer
// is super-linear in input length past this point.
const MaxPageSplitChars = 100_000

// MaxDerivedParts bounds how many `{id}_part_{n}` ids delete_bookmark will
// issue deletions for, regardless of how many parts the bookmark actually
// has.
const MaxDerivedParts = 1000

// Bookmark is one ingestion-input record. Title, URL and FolderPath are
// required by the protocol but never rejected if empty: missing fields
// degrade to empty strings rather than failing ingestion.
type Bookmark struct {
	ID           string
	Title        string
	URL          string
	FolderPath   []string
	DateAdded    string // opaque source timestamp, parsed by ParseDate
	DateModified string
}

// PageInfo describes how a bookmark's content is paginated.
// PageOffsets holds the byte offset of each page's start within the
// concatenated Content string that accompanies it.
type PageInfo struct {
	PageCount   int
	PageOffsets []int
	ContentType string
	CharCount   int
}

// PartID returns the derived id of page-split part n of bookmark id, e.g.
// "abc123_part_0".
func PartID(id string, n int) string {
	return fmt.Sprintf("%s_part_%d", id, n)
}

// IsPartID reports whether candidate looks like a derived part id of id.
func IsPartID(candidate, id string) bool {
	prefix := id + "_part_"
	return strings.HasPrefix(candidate, prefix)
}

// AllPotentialPartIDs returns every "{id}_part_{n}" id up to MaxDerivedParts,
// used to clear out stale parts before a re-ingest.
func AllPotentialPartIDs(id string) []string {
	ids := make([]string, MaxDerivedParts)
	for n := 0; n < MaxDerivedParts; n++ {
		ids[n] = PartID(id, n)
	}
	return ids
}

// FolderPathString joins FolderPath into the single slash-joined string the
// document schema stores.
func (b Bookmark) FolderPathString() string {
	return strings.Join(b.FolderPath, "/")
}

// Domain lower-cases the host component of a URL, returning "" when the
// URL is unparsable. It avoids net/url's stricter RFC 3986 validation for
// malformed-but-common bookmark URLs by extracting the authority segment
// directly.
func Domain(rawURL string) string {
	rest := rawURL
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	} else {
		return ""
	}

	end := len(rest)
	for _, sep := range []string{"/", "?", "#"} {
		if i := strings.Index(rest, sep); i >= 0 && i < end {
			end = i
		}
	}
	authority := rest[:end]

	if at := strings.LastIndex(authority, "@"); at >= 0 {
		authority = authority[at+1:]
	}
	if lb := strings.LastIndex(authority, "]"); lb >= 0 {
		// IPv6 literal, e.g. "[::1]:8080" — keep the bracketed form.
		return strings.ToLower(authority[:lb+1])
	}
	if colon := strings.LastIndex(authority, ":"); colon >= 0 {
		authority = authority[:colon]
	}

	return strings.ToLower(authority)
}

// ParseDate parses an opaque source timestamp into epoch milliseconds.
// Unparsable or empty input yields 0. It accepts RFC3339, and a bare
// integer read by magnitude: microseconds since the Windows epoch
// (Chrome's native bookmark timestamp format) above 1e15, milliseconds
// above 1e12, and seconds otherwise.
func ParseDate(s string) int64 {
	if s == "" {
		return 0
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli()
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		switch {
		case n > 1e15: // microseconds since the Windows epoch (Chrome format)
			return n/1000 - 11644473600000
		case n > 1e12: // already milliseconds
			return n
		case n > 0:
			return n * 1000 // seconds
		}
	}
	return 0
}

// ContentHash returns a nonce-free 64-bit hash of content as a hex string,
// or "" when content is empty. Collisions are acceptable:
// the check_for_updates comparison it feeds is advisory, not authoritative.
func ContentHash(content string) string {
	if content == "" {
		return ""
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(content))
	return fmt.Sprintf("%016x", h.Sum64())
}
