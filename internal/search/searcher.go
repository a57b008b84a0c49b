// Package search executes planned queries against the writer's index and
// assembles scored search-result records.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	bleveSearch "github.com/blevesearch/bleve/v2/search"

	"github.com/nakamura-shuta/mcp-bookmark/internal/query"
	"github.com/nakamura-shuta/mcp-bookmark/internal/snippet"
	"github.com/nakamura-shuta/mcp-bookmark/internal/store"
)

// Result is one search-result record.
type Result struct {
	ID             string
	Title          string
	URL            string
	FolderPath     string
	Domain         string
	Score          float64
	DateAdded      int64
	DateModified   int64
	Snippet        string
	ScoredSnippets []snippet.Snippet
	HasContent     bool
}

var storedFields = []string{
	store.FieldID, store.FieldURL, store.FieldTitle, store.FieldContent,
	store.FieldFolderPath, store.FieldDomain, store.FieldDateAdded, store.FieldDateModified,
}

// Searcher executes planned queries against one writer's index.
type Searcher struct {
	writer      *store.Writer
	snippetGen  *snippet.Generator
	snippetSize int
}

// New creates a Searcher backed by w, using the default snippet generator.
func New(w *store.Writer) *Searcher {
	return &Searcher{
		writer:      w,
		snippetGen:  snippet.DefaultGenerator(),
		snippetSize: snippet.DefaultMaxLength,
	}
}

// Search is the plain search entry point: q with no filters.
func (s *Searcher) Search(ctx context.Context, q string, limit int) ([]Result, error) {
	return s.SearchAdvanced(ctx, q, query.Filters{}, limit)
}

// SearchAdvanced executes q with optional folder/domain filters, returning
// up to limit results sorted by descending score.
func (s *Searcher) SearchAdvanced(ctx context.Context, q string, filters query.Filters, limit int) ([]Result, error) {
	planned := query.Plan(q, filters)

	req := bleve.NewSearchRequest(planned)
	req.Size = limit
	req.Fields = storedFields

	res, err := s.writer.Index().SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, s.decodeHit(hit, q))
	}

	return results, nil
}

func (s *Searcher) decodeHit(hit *bleveSearch.DocumentMatch, q string) Result {
	id := hit.ID
	r := Result{
		ID:           trimPartSuffix(id),
		Title:        fieldString(hit.Fields, store.FieldTitle),
		URL:          fieldString(hit.Fields, store.FieldURL),
		FolderPath:   fieldString(hit.Fields, store.FieldFolderPath),
		Domain:       fieldString(hit.Fields, store.FieldDomain),
		Score:        hit.Score,
		DateAdded:    fieldInt64(hit.Fields, store.FieldDateAdded),
		DateModified: fieldInt64(hit.Fields, store.FieldDateModified),
	}

	content := fieldString(hit.Fields, store.FieldContent)
	if content != "" {
		r.HasContent = true
		if q != "" {
			best := s.snippetGen.GenerateSnippet(content, q, s.snippetSize)
			r.Snippet = best.Text
			r.ScoredSnippets = s.snippetGen.GenerateScoredSnippets(content, q)
		}
	}

	return r
}

// trimPartSuffix strips a "_part_{n}" suffix so a page-split hit reports
// the bookmark's own id rather than the derived part id.
func trimPartSuffix(id string) string {
	if idx := strings.LastIndex(id, "_part_"); idx >= 0 {
		return id[:idx]
	}
	return id
}

// GetContentByURL performs a term query on the URL keyword field and
// returns the stored content of the first matching document, or false when
// no document matches.
func (s *Searcher) GetContentByURL(ctx context.Context, url string) (string, bool, error) {
	tq := bleve.NewTermQuery(url)
	tq.SetField(store.FieldURLKeyword)

	req := bleve.NewSearchRequest(tq)
	req.Size = 1
	req.Fields = []string{store.FieldContent}

	res, err := s.writer.Index().SearchInContext(ctx, req)
	if err != nil {
		return "", false, fmt.Errorf("get_content_by_url failed: %w", err)
	}
	if len(res.Hits) == 0 {
		return "", false, nil
	}

	return fieldString(res.Hits[0].Fields, store.FieldContent), true, nil
}

// ListFolders enumerates the distinct folder paths present in the index,
// split into path segments.
func (s *Searcher) ListFolders(ctx context.Context) ([][]string, error) {
	docCount, err := s.writer.DocCount()
	if err != nil {
		return nil, fmt.Errorf("list_folders: %w", err)
	}
	if docCount == 0 {
		return [][]string{}, nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(docCount)
	req.Fields = []string{store.FieldFolderPath}

	res, err := s.writer.Index().SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("list_folders: %w", err)
	}

	seen := make(map[string]bool)
	var folders [][]string
	for _, hit := range res.Hits {
		path := fieldString(hit.Fields, store.FieldFolderPath)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		folders = append(folders, strings.Split(path, "/"))
	}

	return folders, nil
}

func fieldString(fields map[string]interface{}, name string) string {
	v, ok := fields[name]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func fieldInt64(fields map[string]interface{}, name string) int64 {
	v, ok := fields[name]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}
