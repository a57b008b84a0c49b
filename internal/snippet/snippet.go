// Package snippet implements the scored snippet generator: sliding a
// window over a document's content to find and rank the passages most
// relevant to a query, expanding each to sentence boundaries, and
// classifying its content type.
package snippet

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ContextType classifies the kind of passage a snippet was drawn from.
type ContextType string

const (
	Content       ContextType = "content"
	CodeExample   ContextType = "code_example"
	ImportantNote ContextType = "important_note"
	Procedure     ContextType = "procedure"
	Header        ContextType = "header"
	ListItem      ContextType = "list_item"
	Mixed         ContextType = "mixed"
)

// contextBoost returns the relevance boost for a given content type.
func contextBoost(t ContextType) float64 {
	switch t {
	case CodeExample:
		return 0.8
	case Procedure:
		return 0.9
	case ImportantNote:
		return 0.85
	case Header:
		return 0.7
	case ListItem:
		return 0.75
	case Content:
		return 0.6
	default: // Mixed
		return 0.5
	}
}

// Snippet is one scored excerpt.
type Snippet struct {
	Text           string
	RelevanceScore float64
	Position       int
	ContextType    ContextType
	MatchDensity   float64
	Section        string // empty means no detected heading
}

// DefaultMaxLength is the default post-truncation snippet length in bytes.
// It is a package constant, not a per-query parameter.
const DefaultMaxLength = 300

const defaultMaxSnippets = 5

// Generator produces scored snippets for a (content, query) pair.
type Generator struct {
	windowSize    int
	step          int
	maxSnippets   int
	contextWindow int // used both as the sliding step and the overlap radius
}

// NewGenerator builds a Generator with an explicit window size. Step and
// the overlap-detection context window are both one third of windowSize.
func NewGenerator(windowSize int) *Generator {
	if windowSize <= 0 {
		windowSize = DefaultMaxLength
	}
	step := windowSize / 3
	if step <= 0 {
		step = 1
	}
	return &Generator{
		windowSize:    windowSize,
		step:          step,
		maxSnippets:   defaultMaxSnippets,
		contextWindow: step,
	}
}

// DefaultGenerator returns a Generator configured with DefaultMaxLength.
func DefaultGenerator() *Generator {
	return NewGenerator(DefaultMaxLength)
}

// matchInfo is one scored sliding-window candidate.
type matchInfo struct {
	position    int
	relevance   float64
	density     float64
	contextType ContextType
}

// GenerateScoredSnippets produces up to 5 non-overlapping, ranked excerpts
// of content for query. If content or query is
// empty, it returns nil. If no window matches any query term, it returns a
// single low-relevance fallback snippet drawn from the content's prefix.
func (g *Generator) GenerateScoredSnippets(content, q string) []Snippet {
	if content == "" || q == "" {
		return nil
	}

	queryTerms := strings.Fields(strings.ToLower(q))
	if len(queryTerms) == 0 {
		return nil
	}

	matches := g.findMatches(content, queryTerms)
	if len(matches) == 0 {
		return []Snippet{g.fallbackSnippet(content)}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].relevance > matches[j].relevance })

	var (
		snippets   []Snippet
		usedRanges [][2]int
	)

	candidateCap := g.maxSnippets * 2
	if candidateCap > len(matches) {
		candidateCap = len(matches)
	}

	for _, m := range matches[:candidateCap] {
		if overlaps(m.position, usedRanges) {
			continue
		}

		s, ok := g.buildSnippet(content, m, queryTerms)
		if !ok {
			continue
		}

		start := m.position - g.contextWindow
		if start < 0 {
			start = 0
		}
		end := m.position + g.contextWindow
		if end > len(content) {
			end = len(content)
		}
		usedRanges = append(usedRanges, [2]int{start, end})
		snippets = append(snippets, s)

		if len(snippets) >= g.maxSnippets {
			break
		}
	}

	if len(snippets) == 0 {
		return []Snippet{g.fallbackSnippet(content)}
	}

	return snippets
}

// GenerateSnippet returns the single best excerpt, truncated to maxLen
// bytes (sliding left to a code-point boundary) with a trailing "...".
func (g *Generator) GenerateSnippet(content, q string, maxLen int) Snippet {
	snippets := g.GenerateScoredSnippets(content, q)
	if len(snippets) == 0 {
		return g.fallbackSnippet(content)
	}

	best := snippets[0]
	if len(best.Text) > maxLen {
		pos := floorToRuneBoundary(best.Text, maxLen)
		best.Text = best.Text[:pos]
		if !strings.HasSuffix(best.Text, "...") {
			best.Text += "..."
		}
	}
	return best
}

// findMatches slides a window of g.windowSize bytes, stepping by g.step,
// over content and scores every window containing at least one query-term
// match.
func (g *Generator) findMatches(content string, queryTerms []string) []matchInfo {
	lower := strings.ToLower(content)
	var matches []matchInfo

	for start := 0; start < len(content); start += g.step {
		startByte := ceilToRuneBoundary(content, start)
		if startByte >= len(content) {
			break
		}

		end := startByte + g.windowSize
		if end > len(content) {
			end = len(content)
		}
		endByte := ceilToRuneBoundary(content, end)

		window := lower[startByte:endByte]
		original := content[startByte:endByte]

		matchCount, uniqueTerms := countMatches(window, queryTerms)
		if matchCount == 0 {
			continue
		}

		density := float64(matchCount) / (float64(g.windowSize) / 100.0)
		termCoverage := float64(uniqueTerms) / float64(len(queryTerms))
		ctxType := detectContextType(original)
		boost := contextBoost(ctxType)

		relevance := density*0.4 + termCoverage*0.4 + boost*0.2
		if relevance > 1.0 {
			relevance = 1.0
		}

		matches = append(matches, matchInfo{
			position:    startByte,
			relevance:   relevance,
			density:     density,
			contextType: ctxType,
		})
	}

	return matches
}

func countMatches(text string, queryTerms []string) (total, unique int) {
	for _, term := range queryTerms {
		if term == "" {
			continue
		}
		n := strings.Count(text, term)
		if n > 0 {
			total += n
			unique++
		}
	}
	return total, unique
}

// detectContextType classifies a window's original-case text. Checks run
// most-specific first: ImportantNote, CodeExample, Procedure, ListItem,
// Header, then Content as the default.
func detectContextType(text string) ContextType {
	if containsAny(text, "重要", "注意", "WARNING", "NOTE:", "Note:", "！", "!") {
		return ImportantNote
	}
	if strings.Contains(text, "```") ||
		strings.Contains(text, "function") ||
		strings.Contains(text, "class") ||
		(strings.Contains(text, "import") && !strings.Contains(text, "important")) ||
		strings.Contains(text, "export") ||
		strings.Contains(text, "{") {
		return CodeExample
	}
	if containsAny(text, "Step", "手順", "1.", "2.") {
		return Procedure
	}
	if containsAny(text, "- ", "* ", "• ") {
		return ListItem
	}
	if len(text) < 100 && (strings.Contains(text, "#") || countUpper(text) > len(text)/3) {
		return Header
	}
	return Content
}

func containsAny(text string, substrs ...string) bool {
	for _, s := range substrs {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

func countUpper(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsUpper(r) {
			n++
		}
	}
	return n
}

func overlaps(position int, ranges [][2]int) bool {
	for _, r := range ranges {
		if position >= r[0] && position <= r[1] {
			return true
		}
	}
	return false
}

// buildSnippet expands a match to sentence boundaries, attaches its
// section heading, and renders the excerpt text.
func (g *Generator) buildSnippet(content string, m matchInfo, queryTerms []string) (Snippet, bool) {
	rawStart := m.position - g.contextWindow
	if rawStart < 0 {
		rawStart = 0
	}
	start := findSentenceStart(content, rawStart)

	rawEnd := m.position + g.contextWindow
	if rawEnd > len(content) {
		rawEnd = len(content)
	}
	end := findSentenceEnd(content, rawEnd)

	startByte := ceilToRuneBoundary(content, start)
	endByte := floorToRuneBoundaryFrom(content, end, startByte)

	if startByte >= endByte {
		return Snippet{}, false
	}

	text := strings.TrimSpace(content[startByte:endByte])
	if startByte > 0 {
		text = "..." + text
	}
	if endByte < len(content) {
		text += "..."
	}

	return Snippet{
		Text:           text,
		RelevanceScore: m.relevance,
		Position:       m.position,
		ContextType:    m.contextType,
		MatchDensity:   m.density,
		Section:        findSectionHeading(content, m.position),
	}, true
}

// fallbackSnippet returns the content's prefix, truncated to windowSize
// bytes at a code-point boundary, with relevance 0.1.
func (g *Generator) fallbackSnippet(content string) Snippet {
	maxLen := g.windowSize
	if maxLen > len(content) {
		maxLen = len(content)
	}
	endByte := floorToRuneBoundary(content, maxLen)

	text := content
	if len(content) > maxLen {
		text = content[:endByte] + "..."
	}

	return Snippet{
		Text:           text,
		RelevanceScore: 0.1,
		Position:       0,
		ContextType:    Content,
		MatchDensity:   0,
	}
}

// findSectionHeading scans up to 1000 bytes before position for the last
// markdown heading line (a newline followed by '#', read to end of line).
func findSectionHeading(content string, position int) string {
	searchStart := position - 1000
	if searchStart < 0 {
		searchStart = 0
	}
	searchStart = ceilToRuneBoundary(content, searchStart)
	searchEnd := floorToRuneBoundaryFrom(content, position, searchStart)

	if searchStart >= searchEnd {
		return ""
	}

	searchText := content[searchStart:searchEnd]
	headerPos := strings.LastIndex(searchText, "\n#")
	if headerPos < 0 {
		return ""
	}

	headerStart := ceilToRuneBoundary(content, searchStart+headerPos+1)
	if headerStart >= len(content) {
		return ""
	}

	rel := strings.IndexByte(content[headerStart:], '\n')
	if rel < 0 {
		return ""
	}
	headerEnd := floorToRuneBoundaryFrom(content, headerStart+rel, headerStart)
	if headerStart >= headerEnd {
		return ""
	}

	return strings.TrimSpace(strings.TrimLeft(content[headerStart:headerEnd], "#"))
}

// findSentenceStart walks backward from position to the nearest sentence
// or paragraph boundary.
func findSentenceStart(content string, position int) int {
	if position == 0 {
		return 0
	}
	b := []byte(content)
	pos := position

	for pos > 0 {
		if pos >= 2 {
			prev, prevPrev := b[pos-1], b[pos-2]
			if (prevPrev == '.' || prevPrev == '!' || prevPrev == '?') && prev == ' ' {
				return pos
			}
		}
		if b[pos-1] == '\n' {
			return pos
		}
		pos--
	}
	return 0
}

// findSentenceEnd walks forward from position to the nearest sentence or
// paragraph boundary.
func findSentenceEnd(content string, position int) int {
	b := []byte(content)
	pos := position

	for pos < len(content) {
		c := b[pos]
		if c == '.' || c == '!' || c == '?' {
			if pos+1 >= len(content) {
				return len(content)
			}
			if b[pos+1] == ' ' || b[pos+1] == '\n' {
				return pos + 1
			}
		}
		if c == '\n' {
			return pos
		}
		pos++
	}
	return len(content)
}

// ceilToRuneBoundary slides pos forward to the next valid UTF-8 code-point
// boundary. Every byte index is slid to a boundary before slicing.
func ceilToRuneBoundary(s string, pos int) int {
	if pos <= 0 {
		return 0
	}
	if pos >= len(s) {
		return len(s)
	}
	for pos < len(s) && !utf8.RuneStart(s[pos]) {
		pos++
	}
	return pos
}

// floorToRuneBoundary slides pos backward to the previous valid code-point
// boundary.
func floorToRuneBoundary(s string, pos int) int {
	return floorToRuneBoundaryFrom(s, pos, 0)
}

// floorToRuneBoundaryFrom slides pos backward to a valid code-point
// boundary, never going below lowerBound.
func floorToRuneBoundaryFrom(s string, pos, lowerBound int) int {
	if pos <= lowerBound {
		return lowerBound
	}
	if pos >= len(s) {
		return len(s)
	}
	for pos > lowerBound && !utf8.RuneStart(s[pos]) {
		pos--
	}
	return pos
}
