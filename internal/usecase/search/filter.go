package search

import (
	"math"

	"github.com/normtext/lawdex/internal/domain"
)

// statisticalFilter keeps only the candidates that score above a threshold
// derived from the score distribution of the top 2×maxResults entries:
// mean − stddev·(1+aggressiveness). Aggressiveness 0 cuts at one standard
// deviation below the mean; raising it toward 1 lowers the threshold and
// keeps more of the tail, so a higher-aggressiveness filter always retains a
// superset of a lower one on the same input. The result is truncated to
// maxResults. Input must already be sorted by score descending.
func statisticalFilter(list []domain.ScoredLaw, maxResults int, aggressiveness float64) []domain.ScoredLaw {
	if len(list) == 0 || maxResults <= 0 {
		return nil
	}

	window := list
	if len(window) > 2*maxResults {
		window = window[:2*maxResults]
	}

	mean, stddev := meanStddev(window)
	threshold := mean - stddev*(1+aggressiveness)

	kept := make([]domain.ScoredLaw, 0, min(len(window), maxResults))
	for _, s := range window {
		// A flat distribution carries no filtering signal; keep everything.
		if stddev > 0 && s.Score <= threshold {
			continue
		}
		kept = append(kept, s)
		if len(kept) == maxResults {
			break
		}
	}
	return kept
}

func meanStddev(list []domain.ScoredLaw) (float64, float64) {
	var sum float64
	for _, s := range list {
		sum += s.Score
	}
	mean := sum / float64(len(list))

	var sq float64
	for _, s := range list {
		d := s.Score - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(list)))
}
