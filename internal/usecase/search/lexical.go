package search

import (
	"sort"
	"strings"

	"github.com/normtext/lawdex/internal/domain"
)

// lexicalRank scores every law against the keyword set and returns the laws
// with a positive score, sorted by score descending. An empty keyword set
// yields no results.
func lexicalRank(laws []domain.Law, keywords []string) []domain.ScoredLaw {
	if len(keywords) == 0 {
		return nil
	}

	results := make([]domain.ScoredLaw, 0, len(laws))
	for _, law := range laws {
		if score := lexicalScore(law, keywords); score > 0 {
			results = append(results, domain.ScoredLaw{LawID: law.ID, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].LawID < results[j].LawID
	})
	return results
}

// lexicalScore is the keyword match density of one law. Title hits weigh
// most, scaled down by the title's word count so long titles matched only
// partially do not dominate; the score is normalized by the keyword count so
// queries of different sizes stay comparable.
func lexicalScore(law domain.Law, keywords []string) float64 {
	title := strings.ToLower(law.Title)
	text := strings.ToLower(law.TextReduced)

	var titleUnique, textUnique, textTotal int
	for _, kw := range keywords {
		k := strings.ToLower(kw)
		if k == "" {
			continue
		}
		if strings.Contains(title, k) {
			titleUnique++
		}
		if n := strings.Count(text, k); n > 0 {
			textUnique++
			textTotal += n
		}
	}

	var score float64
	if titleUnique > 0 {
		if wc := len(strings.Fields(law.Title)); wc > 0 {
			score += 5 * float64(titleUnique) / float64(wc)
		}
	}
	score += 0.3*float64(textUnique) + 0.1*float64(textTotal)

	return score / float64(len(keywords))
}
