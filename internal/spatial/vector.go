package spatial

import (
	"math"

	"github.com/golang/geo/r3"
)

// Normalize returns the unit direction of v together with its length.
// The zero vector yields a zero direction and zero length.
func Normalize(v r3.Vector) (r3.Vector, float64) {
	n := v.Norm()
	if n == 0 || math.IsNaN(n) {
		return r3.Vector{}, 0
	}
	return v.Mul(1 / n), n
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// ClampSymmetric limits x to [-bound, bound].
func ClampSymmetric(x, bound float64) float64 {
	return Clamp(x, -bound, bound)
}
