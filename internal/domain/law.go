package domain

import "unicode/utf8"

// ReducedTextLength is the byte length of the text_reduced prefix kept for
// fast lexical filtering.
const ReducedTextLength = 1024

// Law is a single legal provision. Owned by the persistence layer; the core
// reads it and writes back embeddings only.
type Law struct {
	ID          int64
	BookCode    string
	Title       string
	Text        string
	TextReduced string
	SourceURL   string
}

// ReduceText returns the bounded-length prefix of text stored as text_reduced.
// The cut backs off to a rune boundary so a multibyte character straddling the
// limit is dropped whole rather than split.
func ReduceText(text string) string {
	if len(text) <= ReducedTextLength {
		return text
	}
	n := ReducedTextLength
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}

// ScoredLaw is an ephemeral (law id, relevance score) pair. Higher score
// means more relevant. Never persisted.
type ScoredLaw struct {
	LawID int64
	Score float64
}

// SearchResult is a law record with its relevance score, as returned to callers.
type SearchResult struct {
	ID       int64
	BookCode string
	Title    string
	Text     string
	Score    float64
}

// QueryRecord is a persisted search query. The full embedding vector is
// stored alongside it, keyed by the normalized query text.
type QueryRecord struct {
	ID          int64
	TextReduced string
}
