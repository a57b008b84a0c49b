// Package query turns a raw user query string into a planned bleve query:
// a phrase-aware tokenizer followed by a boosted
// disjunction over title/url/content, with optional folder/domain filters.
package query

import "strings"

// TermKind distinguishes a phrase from a single word.
type TermKind int

const (
	// Word is a single unquoted token.
	Word TermKind = iota
	// Phrase is a double-quoted span that must match as position-adjacent
	// terms.
	Phrase
)

// Term is one parsed unit of a query string.
type Term struct {
	Kind TermKind
	Text string
}

// Parse splits query into Terms: double-quoted spans become Phrase terms
// (with `\"` as an escape for a literal quote), everything else splits on
// whitespace into Word terms. An unclosed quote extends to the end of the
// input. Empty or whitespace-only phrases are dropped.
func Parse(q string) []Term {
	var terms []Term
	var current strings.Builder
	inPhrase := false
	escapeNext := false

	flushWords := func() {
		for _, w := range strings.Fields(current.String()) {
			terms = append(terms, Term{Kind: Word, Text: w})
		}
		current.Reset()
	}

	flushPhrase := func() {
		p := strings.TrimSpace(current.String())
		if p != "" {
			terms = append(terms, Term{Kind: Phrase, Text: p})
		}
		current.Reset()
	}

	for _, ch := range q {
		if escapeNext {
			current.WriteRune(ch)
			escapeNext = false
			continue
		}

		switch ch {
		case '\\':
			escapeNext = true
		case '"':
			if inPhrase {
				flushPhrase()
				inPhrase = false
			} else {
				flushWords()
				inPhrase = true
			}
		case ' ', '\t', '\n', '\r':
			if inPhrase {
				current.WriteRune(ch)
			} else {
				flushWords()
			}
		default:
			current.WriteRune(ch)
		}
	}

	if inPhrase {
		flushPhrase()
	} else {
		flushWords()
	}

	return terms
}

// HasPhrases reports whether terms contains at least one Phrase.
func HasPhrases(terms []Term) bool {
	for _, t := range terms {
		if t.Kind == Phrase {
			return true
		}
	}
	return false
}

// Words returns the Word-kind terms, in order.
func Words(terms []Term) []string {
	var out []string
	for _, t := range terms {
		if t.Kind == Word {
			out = append(out, t.Text)
		}
	}
	return out
}

// Phrases returns the Phrase-kind terms, in order.
func Phrases(terms []Term) []string {
	var out []string
	for _, t := range terms {
		if t.Kind == Phrase {
			out = append(out, t.Text)
		}
	}
	return out
}
