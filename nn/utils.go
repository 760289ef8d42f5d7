package nn

import (
	"math"
)

// ShapeSize returns the number of elements in a shape (product of dims)
func ShapeSize(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// MaxAbsDiff calculates the maximum absolute difference between two slices
func MaxAbsDiff(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	m := 0.0
	for i := 0; i < n; i++ {
		d := math.Abs(a[i] - b[i])
		if d > m {
			m = d
		}
	}
	return m
}

// AbsKernel returns a copy of kernel with every weight replaced by its
// absolute value.
func AbsKernel(kernel []float64) []float64 {
	out := make([]float64, len(kernel))
	for i, w := range kernel {
		out[i] = math.Abs(w)
	}
	return out
}
