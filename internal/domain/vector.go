package domain

// Clamp limits v to the [lo, hi] range.
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Lerp interpolates component-wise between a and b by factor t:
// out = a + t*(b-a). t=0 returns a, t=1 returns b. Negative t moves away
// from b. Both vectors must have the same length; Lerp panics otherwise
// because a dimension mismatch here means corrupted stored state.
func Lerp(a, b []float32, t float64) []float32 {
	if len(a) != len(b) {
		panic("lerp: vector dimension mismatch")
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] + float32(t)*(b[i]-a[i])
	}
	return out
}

// SquaredL2 returns the squared Euclidean distance between a and b.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// DistanceToScore converts a squared L2 distance into a bounded relevance
// score in (0, 1]. Distance 0 maps to 1.
func DistanceToScore(d float64) float64 {
	return 1.0 / (1.0 + d)
}
