package interval

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Domain is an abstract set of activations for a batch of samples: every
// concrete activation reachable from the input ball lies inside Bounds.
//
// The two implementations are *Box and *Symbolic. The interface is sealed;
// transfer functions reach the per-variant behavior through the unexported
// hooks, so the driver holds no variant-specific logic.
//
// A transfer function takes ownership of the domain it receives and returns
// the domain to use afterwards. Callers must not keep using the value they
// passed in.
type Domain interface {
	// Bounds returns the current lower and upper bounds, batch × units.
	// The matrices are owned by the domain; copy before mutating.
	Bounds() (lower, upper *mat.Dense)
	// Shape is the per-sample activation shape.
	Shape() []int
	// BatchSize is the number of samples.
	BatchSize() int
	// WorstCase pins each sample's true-label output to its lower bound and
	// every other output to its upper bound.
	WorstCase(labels []int) (*mat.Dense, error)

	affine(m affineMap) error
	relu() ReLUStats
	reshape(shape []int) error
	errorRows() int
}

// Method selects the domain used for a verification call.
type Method int

const (
	MethodNaive    Method = 0 // Box intervals
	MethodSymbolic Method = 1 // Symbolic intervals with error terms
)

func (m Method) String() string {
	switch m {
	case MethodNaive:
		return "naive"
	case MethodSymbolic:
		return "symbolic"
	default:
		return "unknown"
	}
}

// ParseMethod maps "naive"/"box" and "symbolic"/"sym" to a Method.
func ParseMethod(s string) (Method, bool) {
	switch s {
	case "naive", "box", "interval":
		return MethodNaive, true
	case "symbolic", "sym":
		return MethodSymbolic, true
	default:
		return -1, false
	}
}

// ReLUStats counts how a ReLU layer classified its units.
type ReLUStats struct {
	Negative   int   // upper ≤ 0, output fixed at 0
	Positive   int   // lower ≥ 0, identity
	Ambiguous  int   // lower < 0 < upper, relaxed
	Degenerate int   // lower == upper exactly
	PerSample  []int // ambiguous units per sample
}

// checkBounds fails on the first unit with lower > upper or a NaN bound.
func checkBounds(lower, upper *mat.Dense) error {
	r, c := lower.Dims()
	ur, uc := upper.Dims()
	if r != ur || c != uc {
		return ErrShapeMismatch
	}
	for b := 0; b < r; b++ {
		lrow := lower.RawRowView(b)
		urow := upper.RawRowView(b)
		for j := 0; j < c; j++ {
			l, u := lrow[j], urow[j]
			if l > u || math.IsNaN(l) || math.IsNaN(u) {
				return &InvalidBoundsError{Sample: b, Unit: j, Lower: l, Upper: u}
			}
		}
	}
	return nil
}

// rawData returns the row-major contents of m without the stride gaps.
func rawData(m *mat.Dense) []float64 {
	raw := m.RawMatrix()
	if raw.Stride == raw.Cols {
		return raw.Data[:raw.Rows*raw.Cols]
	}
	out := make([]float64, 0, raw.Rows*raw.Cols)
	for i := 0; i < raw.Rows; i++ {
		out = append(out, m.RawRowView(i)...)
	}
	return out
}

// absDense returns a new matrix holding |m| elementwise.
func absDense(m *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return math.Abs(v) }, m)
	return &out
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
