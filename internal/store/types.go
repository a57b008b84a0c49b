// Package store owns the on-disk bleve index: its schema, its custom
// tokenizer, the single writer coordinator, and the JSON metadata sidecar
// that describes an index directory. It is the persistence layer for every
// indexed bookmark.
package store

import "time"

// Field names of the bookmark document schema.
const (
	// FieldID is the unique-key field: a keyword, stored, not analyzed.
	// Used only for exact lookup and deletion.
	FieldID = "id"

	// FieldURL is indexed (tokenized) and stored.
	FieldURL = "url"

	// FieldURLKeyword holds the untokenized URL for exact-match lookups
	// (get_content_by_url).
	FieldURLKeyword = "url_keyword"

	// FieldTitle is indexed (tokenized, with position info) and stored.
	FieldTitle = "title"

	// FieldContent is indexed (tokenized, with position info for phrase
	// queries) and stored, so get_content_by_url can return it directly.
	FieldContent = "content"

	// FieldFolderPath is a single slash-joined string, stored as a keyword.
	FieldFolderPath = "folder_path"

	// FieldDomain is the lowercased host component of the URL, stored as a
	// keyword with fast (columnar) access for filtering.
	FieldDomain = "domain"

	// FieldDateAdded and FieldDateModified are signed 64-bit epoch
	// millisecond timestamps with fast access for filtering/range queries.
	FieldDateAdded    = "date_added"
	FieldDateModified = "date_modified"
)

// TokenizerName is the well-known name the Japanese-and-Latin tokenizer is
// registered under. It must be registered on the index mapping before any
// indexing or querying happens.
const TokenizerName = "bookmark_tokenizer"

// AnalyzerName is the custom analyzer built on top of TokenizerName.
const AnalyzerName = "bookmark_analyzer"

// DocType is the bleve document mapping's implicit type name.
const DocType = "bookmark"

// Document is the stored unit in the index. It corresponds
// either to a whole bookmark or to one page-split part.
type Document struct {
	ID           string
	URL          string
	Title        string
	Content      string
	FolderPath   string
	Domain       string
	DateAdded    int64
	DateModified int64
}

// SearchHit is a raw scored match returned by the writer's reader, before
// the searcher decorates it into a full search-result record.
type SearchHit struct {
	ID           string
	URL          string
	Title        string
	Content      string
	FolderPath   string
	Domain       string
	DateAdded    int64
	DateModified int64
	Score        float64
}

// IndexMetadata is the persisted, advisory JSON sidecar describing an index
// directory. Corruption must never block queries. It also carries the
// bookmark-state map used to answer check_for_updates, under the same
// index_metadata.json file; that map is rebuildable by re-scanning the
// index, so its loss is never fatal.
type IndexMetadata struct {
	Version       string    `json:"version"`
	IndexName     string    `json:"index_name"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdated   time.Time `json:"last_updated"`
	BookmarkCount int       `json:"bookmark_count"`
	IndexedCount  int       `json:"indexed_count"`

	LastFullSync time.Time                `json:"last_full_sync,omitempty"`
	Bookmarks    map[string]BookmarkState `json:"bookmarks,omitempty"`
}

// SchemaVersion is the current metadata schema version tag.
const SchemaVersion = "1.0.0"

// MetadataFileName is the well-known sidecar file inside an index directory.
const MetadataFileName = "index_metadata.json"

// BookmarkState is one entry of the persisted sidecar used to answer
// check_for_updates: a map from bookmark id to this shape.
type BookmarkState struct {
	URL          string `json:"url"`
	DateModified string `json:"date_modified,omitempty"`
	IndexedAt    string `json:"indexed_at"`
	ContentHash  string `json:"content_hash,omitempty"`
}
