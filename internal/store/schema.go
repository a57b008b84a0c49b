package store

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

func init() {
	// Register the Japanese-and-Latin tokenizer before any index mapping
	// is built; it must exist before any indexing or querying happens.
	// Registration is idempotent.
	_ = registry.RegisterTokenizer(TokenizerName, bookmarkTokenizerConstructor)
}

// bookmarkTokenizerConstructor creates the tokenizer for bleve's registry.
func bookmarkTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bookmarkTokenizer{}, nil
}

// bookmarkTokenizer implements analysis.Tokenizer using TokenizeMixed.
type bookmarkTokenizer struct{}

// Tokenize implements analysis.Tokenizer. It re-locates each token's byte
// offset in the original input so phrase queries keep working even though
// the morphological analyzer re-segments Japanese runs.
func (t *bookmarkTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeMixed(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0

	for _, tok := range tokens {
		start := strings.Index(text[offset:], tok)
		if start == -1 {
			// Case changed by lowercasing; search case-insensitively.
			start = strings.Index(strings.ToLower(text[offset:]), tok)
		}
		if start == -1 {
			start = 0
		} else {
			start += offset
		}
		end := start + len(tok)

		result = append(result, &analysis.Token{
			Term:     []byte(tok),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.Ideographic,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}

	return result
}

// CreateIndexMapping builds the bleve mapping for the bookmark schema:
// id/folder_path/domain as keywords, url/title/content tokenized with the
// bookmark analyzer (content keeps position info for phrase queries), and
// the two date fields as numeric (bleve gives every indexed field
// columnar/"fast" access automatically in its scorch storage backend).
func CreateIndexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	if err := im.AddCustomAnalyzer(AnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": TokenizerName,
	}); err != nil {
		return nil, fmt.Errorf("failed to add bookmark analyzer: %w", err)
	}
	im.DefaultAnalyzer = AnalyzerName

	doc := bleve.NewDocumentMapping()

	idField := bleve.NewKeywordFieldMapping()
	doc.AddFieldMappingsAt(FieldID, idField)

	urlField := bleve.NewTextFieldMapping()
	urlField.Analyzer = AnalyzerName
	urlField.Store = true
	doc.AddFieldMappingsAt(FieldURL, urlField)

	urlKeyword := bleve.NewKeywordFieldMapping()
	urlKeyword.Store = false
	doc.AddFieldMappingsAt(FieldURLKeyword, urlKeyword)

	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = AnalyzerName
	titleField.Store = true
	doc.AddFieldMappingsAt(FieldTitle, titleField)

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = AnalyzerName
	contentField.Store = true
	contentField.IncludeTermVectors = true // required for phrase queries
	doc.AddFieldMappingsAt(FieldContent, contentField)

	folderField := bleve.NewKeywordFieldMapping()
	doc.AddFieldMappingsAt(FieldFolderPath, folderField)

	domainField := bleve.NewKeywordFieldMapping()
	doc.AddFieldMappingsAt(FieldDomain, domainField)

	dateAdded := bleve.NewNumericFieldMapping()
	doc.AddFieldMappingsAt(FieldDateAdded, dateAdded)

	dateModified := bleve.NewNumericFieldMapping()
	doc.AddFieldMappingsAt(FieldDateModified, dateModified)

	im.AddDocumentMapping(DocType, doc)
	im.DefaultMapping = doc

	return im, nil
}

// bleveDoc is the shape bleve indexes; it mirrors Document but adds the
// untokenized URL keyword sub-field.
type bleveDoc struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	URLKeyword   string `json:"url_keyword"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	FolderPath   string `json:"folder_path"`
	Domain       string `json:"domain"`
	DateAdded    int64  `json:"date_added"`
	DateModified int64  `json:"date_modified"`
}

func toBleveDoc(d *Document) bleveDoc {
	return bleveDoc{
		ID:           d.ID,
		URL:          d.URL,
		URLKeyword:   d.URL,
		Title:        d.Title,
		Content:      d.Content,
		FolderPath:   d.FolderPath,
		Domain:       d.Domain,
		DateAdded:    d.DateAdded,
		DateModified: d.DateModified,
	}
}
