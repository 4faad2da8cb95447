package vector

import "math"

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	sum := 0.0
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// Dot returns the dot product of two equal-length vectors.
func Dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Cosine returns the cosine similarity of a and b. ok is false when either
// vector has zero norm or the lengths differ.
func Cosine(a, b []float32) (score float64, ok bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0, false
	}
	return Dot(a, b) / (na * nb), true
}

// Normalize scales v in place to unit length. A zero vector is left unchanged.
func Normalize(v []float32) {
	n := Norm(v)
	if n == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
}

// IsZero reports whether every element of v is zero.
func IsZero(v []float32) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}
