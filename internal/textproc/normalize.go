// Package textproc holds the pure text processing used by search and ingest:
// whitespace normalization, heuristic keyword extraction, and token-aware
// truncation for embedding inputs.
package textproc

import (
	"regexp"
	"strings"
)

var (
	newlineRuns = regexp.MustCompile(`\n{4,}`)
	spaceRuns   = regexp.MustCompile(` {2,}`)
	nonWord     = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
)

// Normalize trims leading/trailing whitespace, collapses runs of 4+ newlines
// to exactly 2, and collapses runs of 2+ spaces to a single space.
// Idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = newlineRuns.ReplaceAllString(s, "\n\n")
	s = spaceRuns.ReplaceAllString(s, " ")
	return s
}

// Keywords extracts lexical search terms heuristically: normalize, strip
// everything that is neither letter, digit, underscore nor whitespace, and
// split on whitespace. Duplicates are kept, order follows appearance.
func Keywords(query string) []string {
	cleaned := nonWord.ReplaceAllString(Normalize(query), "")
	return strings.Fields(cleaned)
}
