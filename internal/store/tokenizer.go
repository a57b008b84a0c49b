package store

import (
	"strings"
	"unicode"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// jaTokenizer is the shared kagome morphological analyzer instance. It is
// expensive to build (loads the IPA dictionary), so it is constructed once
// per process and reused by every index handle.
var jaTokenizer *tokenizer.Tokenizer

func init() {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err == nil {
		jaTokenizer = t
	}
	// If dictionary construction fails we fall back to ASCII-only
	// splitting (TokenizeMixed degrades gracefully); this only happens in
	// environments where the embedded dictionary data is unavailable.
}

// isJapaneseRune reports whether r falls in a CJK/Kana block that the
// morphological analyzer should own, as opposed to the ASCII word splitter.
func isJapaneseRune(r rune) bool {
	return unicode.In(r,
		unicode.Han,
		unicode.Hiragana,
		unicode.Katakana,
	)
}

// isWordRune reports whether r can be part of an ASCII/Latin word token.
// Japanese script is excluded so a word run stops where a Japanese run
// begins.
func isWordRune(r rune) bool {
	return !isJapaneseRune(r) && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

// TokenizeMixed splits text into lowercased terms, routing contiguous runs
// of Japanese script through the morphological analyzer (which decomposes
// compounds into their smallest meaningful units, e.g. "石川さんの出社日" →
// "石川", "さん", "の", "出社", "日") and contiguous runs of Latin/ASCII
// script through a simple split on non-alphanumeric separators ("/", "-",
// "." and the like all yield distinct tokens).
func TokenizeMixed(text string) []string {
	var tokens []string
	runes := []rune(text)
	n := len(runes)

	for i := 0; i < n; {
		r := runes[i]
		switch {
		case isJapaneseRune(r):
			j := i
			for j < n && isJapaneseRune(runes[j]) {
				j++
			}
			tokens = append(tokens, tokenizeJapanese(string(runes[i:j]))...)
			i = j
		case isWordRune(r):
			j := i
			for j < n && isWordRune(runes[j]) {
				j++
			}
			tokens = append(tokens, strings.ToLower(string(runes[i:j])))
			i = j
		default:
			i++
		}
	}

	return tokens
}

// tokenizeJapanese decomposes a run of Japanese script into its smallest
// meaningful morphological units. Falls back to returning the run whole if
// the dictionary failed to load.
func tokenizeJapanese(run string) []string {
	if jaTokenizer == nil {
		return []string{run}
	}

	morphs := jaTokenizer.Wakati(run)
	out := make([]string, 0, len(morphs))
	for _, m := range morphs {
		m = strings.TrimSpace(m)
		if m != "" {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return []string{run}
	}
	return out
}
