package match

import "math"

// Cosine is dot(a,b)/(|a||b|). Vectors of different length or with zero
// norm score 0 rather than NaN.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// DistanceToSimilarity maps a non-negative distance into (0, 1]: distance 0
// is similarity 1 and similarity falls towards 0 as distance grows.
func DistanceToSimilarity(d float64) float64 {
	if d < 0 {
		d = 0
	}
	return 1 / (1 + d)
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
