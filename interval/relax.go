package interval

import "gonum.org/v1/gonum/mat"

// relaxedUnit is one ambiguous pre-activation that receives a fresh error
// term.
type relaxedUnit struct {
	sample, unit int
	magnitude    float64
}

// relaxation is the triangle relaxation of ReLU over a batch of bounds.
type relaxation struct {
	slope   *mat.Dense // 0, 1 or u/(u-l) per unit
	offset  *mat.Dense // λ(-l)/2 on ambiguous units, 0 elsewhere
	relaxed []relaxedUnit
	stats   ReLUStats
}

// relax classifies every unit. The u ≤ 0 and l ≥ 0 tests run first, so the
// ambiguous branch only sees l < 0 < u and never divides by zero.
func relax(lower, upper *mat.Dense) relaxation {
	r, c := lower.Dims()
	rx := relaxation{
		slope:  mat.NewDense(r, c, nil),
		offset: mat.NewDense(r, c, nil),
		stats:  ReLUStats{PerSample: make([]int, r)},
	}

	for b := 0; b < r; b++ {
		lrow := lower.RawRowView(b)
		urow := upper.RawRowView(b)
		srow := rx.slope.RawRowView(b)
		orow := rx.offset.RawRowView(b)
		for j := 0; j < c; j++ {
			l, u := lrow[j], urow[j]
			if l == u {
				rx.stats.Degenerate++
			}
			switch {
			case u <= 0:
				rx.stats.Negative++
			case l >= 0:
				srow[j] = 1
				rx.stats.Positive++
			default:
				lambda := u / (u - l)
				e := lambda * (-l) / 2
				srow[j] = lambda
				orow[j] = e
				rx.relaxed = append(rx.relaxed, relaxedUnit{sample: b, unit: j, magnitude: e})
				rx.stats.Ambiguous++
				rx.stats.PerSample[b]++
			}
		}
	}
	return rx
}
