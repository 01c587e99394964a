package domain

// Rating is a user relevance judgement on a (query, law) pair.
type Rating string

const (
	// RatingPositive marks a result as relevant to the query.
	RatingPositive Rating = "positive"
	// RatingNegative marks a result as not relevant to the query.
	RatingNegative Rating = "negative"
)

// Valid reports whether the rating is one of the accepted values.
func (r Rating) Valid() bool {
	return r == RatingPositive || r == RatingNegative
}

// Score maps a rating to its numeric feedback score. Unknown ratings map to
// 0 so they cannot move an embedding; validation rejects them upstream.
func (r Rating) Score() float64 {
	switch r {
	case RatingPositive:
		return 1.0
	case RatingNegative:
		return -1.0
	default:
		return 0.0
	}
}
