// Package docbuild transforms a bookmark record (plus optional content and
// page info) into the one or more store.Document records the writer
// commits, and carries the corresponding deletion logic.
package docbuild

import (
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/nakamura-shuta/mcp-bookmark/internal/bookmark"
	"github.com/nakamura-shuta/mcp-bookmark/internal/store"
)

// BuildDocument turns a bookmark (with optional content/page info) into one
// or more store.Document records.
//
//   - No content: a single metadata-only document.
//   - Content present, no page-split needed (page info absent, or char
//     count ≤ bookmark.MaxPageSplitChars): a single document carrying the
//     full content.
//   - Content present, page info says page_count > 1 and the content
//     exceeds the cap: page-split into multiple documents, one per run of
//     whole pages that fits under the cap.
func BuildDocument(b bookmark.Bookmark, content string, info *bookmark.PageInfo) []*store.Document {
	base := &store.Document{
		ID:           b.ID,
		URL:          b.URL,
		Title:        b.Title,
		FolderPath:   b.FolderPathString(),
		Domain:       bookmark.Domain(b.URL),
		DateAdded:    bookmark.ParseDate(b.DateAdded),
		DateModified: bookmark.ParseDate(b.DateModified),
	}

	if content == "" {
		return []*store.Document{base}
	}

	needsSplit := info != nil && info.PageCount > 1 && utf8.RuneCountInString(content) > bookmark.MaxPageSplitChars
	if !needsSplit {
		doc := *base
		doc.Content = content
		return []*store.Document{&doc}
	}

	return splitPages(base, content, info)
}

// splitPages walks pages in order, accumulating them into a part until
// adding the next page would exceed bookmark.MaxPageSplitChars, then emits
// the part and continues. Each part shares every metadata field with base
// except id and content.
func splitPages(base *store.Document, content string, info *bookmark.PageInfo) []*store.Document {
	bounds := pageBounds(info.PageOffsets, len(content))
	numPages := len(bounds)

	var docs []*store.Document
	partStart := 0
	n := 0

	emit := func(end int) {
		doc := *base
		doc.ID = bookmark.PartID(base.ID, n)
		doc.Content = content[partStart:end]
		docs = append(docs, &doc)
		n++
		partStart = end
	}

	accumulatedEnd := partStart
	for i := 0; i < numPages; i++ {
		pageEnd := len(content)
		if i+1 < numPages {
			pageEnd = bounds[i+1]
		}
		if pageEnd-partStart > bookmark.MaxPageSplitChars && accumulatedEnd > partStart {
			emit(accumulatedEnd)
		}
		accumulatedEnd = pageEnd
	}
	emit(len(content))

	if len(docs) == 0 {
		doc := *base
		doc.Content = content
		return []*store.Document{&doc}
	}

	return docs
}

// pageBounds returns page start offsets clamped to [0, total], with a
// guaranteed leading 0.
func pageBounds(offsets []int, total int) []int {
	if len(offsets) == 0 {
		return []int{0}
	}
	out := make([]int, 0, len(offsets))
	for _, o := range offsets {
		if o < 0 {
			o = 0
		}
		if o > total {
			o = total
		}
		out = append(out, o)
	}
	if out[0] != 0 {
		out = append([]int{0}, out...)
	}
	return out
}

// DeleteBookmark issues deletions for the base id and every potential
// derived part id up to bookmark.MaxDerivedParts. This must
// run before re-indexing so that a shorter re-ingest doesn't leave stale
// parts from a previous, longer version.
func DeleteBookmark(w *store.Writer, id string) error {
	if err := w.DeleteID(id); err != nil {
		return fmt.Errorf("delete base id %q: %w", id, err)
	}
	for _, partID := range bookmark.AllPotentialPartIDs(id) {
		if err := w.DeleteID(partID); err != nil {
			return fmt.Errorf("delete part id %q: %w", partID, err)
		}
	}
	return nil
}

// IndexBookmark applies DeleteBookmark, then builds and adds the resulting
// document(s). Document construction never fails outright:
// missing fields degrade to empty strings/zero timestamps
// rather than failing ingestion; only the storage-layer writes below can
// return an error.
func IndexBookmark(w *store.Writer, b bookmark.Bookmark, content string, info *bookmark.PageInfo) error {
	if err := DeleteBookmark(w, b.ID); err != nil {
		return err
	}

	docs := BuildDocument(b, content, info)
	for _, doc := range docs {
		if err := w.Add(doc); err != nil {
			return fmt.Errorf("index document %q: %w", doc.ID, err)
		}
	}

	slog.Debug("bookmark_indexed",
		slog.String("id", b.ID), slog.Int("parts", len(docs)))
	return nil
}
