package interval

import (
	"fmt"
	"math"

	"github.com/openfluke/intervalnet/nn"
	"gonum.org/v1/gonum/mat"
)

// Symbolic tracks every unit as an affine form over the input perturbation
// plus independent error terms introduced by ReLU relaxations.
//
// For a batch of B samples with n input dimensions and N current units:
//
//	center        B × N
//	exact         B·n × N, row b·n+i is the dependence on input dimension i
//	errs[k]       m_k × N, one row per error term introduced at relaxation k
//	owners[k]     m_k × B, one-hot sample ownership of each errs[k] row
//
// Error entries are only appended, one per ReLU layer that relaxed at least
// one unit.
type Symbolic struct {
	center *mat.Dense
	exact  *mat.Dense
	errs   []*mat.Dense
	owners []*mat.Dense

	shape    []int
	inputDim int

	lower, upper *mat.Dense
}

// NewSymbolic builds a symbolic domain over the input box [lower, upper].
// Concretizing it immediately reproduces lower and upper.
func NewSymbolic(lower, upper *mat.Dense, shape []int) (*Symbolic, error) {
	if lower == nil || upper == nil || lower.IsEmpty() {
		return nil, ErrEmptyBatch
	}
	if err := checkBounds(lower, upper); err != nil {
		return nil, err
	}
	r, n := lower.Dims()
	if n != nn.ShapeSize(shape) {
		return nil, &ShapeMismatchError{Layer: "symbolic", Want: shape, Got: []int{n}}
	}

	center := mat.NewDense(r, n, nil)
	center.Add(lower, upper)
	center.Scale(0.5, center)

	exact := mat.NewDense(r*n, n, nil)
	for b := 0; b < r; b++ {
		for i := 0; i < n; i++ {
			exact.Set(b*n+i, i, (upper.At(b, i)-lower.At(b, i))/2)
		}
	}

	s := &Symbolic{
		center:   center,
		exact:    exact,
		shape:    append([]int(nil), shape...),
		inputDim: n,
	}
	s.Concretize()
	return s, nil
}

// Concretize recomputes the bounds from the affine form:
// radius = Σ_i |exact_i| + Σ_k owners[k]ᵀ·|errs[k]|.
func (s *Symbolic) Concretize() {
	r, c := s.center.Dims()
	rad := mat.NewDense(r, c, nil)

	for b := 0; b < r; b++ {
		row := rad.RawRowView(b)
		for i := 0; i < s.inputDim; i++ {
			for j, v := range s.exact.RawRowView(b*s.inputDim + i) {
				row[j] += math.Abs(v)
			}
		}
	}

	var contrib mat.Dense
	for k, e := range s.errs {
		contrib.Reset()
		contrib.Mul(s.owners[k].T(), absDense(e))
		rad.Add(rad, &contrib)
	}

	s.lower = mat.NewDense(r, c, nil)
	s.upper = mat.NewDense(r, c, nil)
	s.lower.Sub(s.center, rad)
	s.upper.Add(s.center, rad)
}

func (s *Symbolic) Bounds() (lower, upper *mat.Dense) { return s.lower, s.upper }
func (s *Symbolic) Shape() []int                      { return s.shape }

func (s *Symbolic) BatchSize() int {
	r, _ := s.center.Dims()
	return r
}

// InputDim is the number of input perturbation dimensions per sample.
func (s *Symbolic) InputDim() int { return s.inputDim }

func (s *Symbolic) Center() *mat.Dense        { return s.center }
func (s *Symbolic) ExactDep() *mat.Dense      { return s.exact }
func (s *Symbolic) ErrorDeps() []*mat.Dense   { return s.errs }
func (s *Symbolic) ErrorOwners() []*mat.Dense { return s.owners }

// WorstCase concretizes, then pins each label to its lower bound and every
// other class to its upper bound.
func (s *Symbolic) WorstCase(labels []int) (*mat.Dense, error) {
	s.Concretize()
	return worstCase(s.lower, s.upper, labels)
}

// ReshapeForConv views the flat per-sample layout as [channels, height,
// width]. Storage is row-major, so only the shape changes.
func (s *Symbolic) ReshapeForConv(channels, height, width int) error {
	return s.reshape([]int{channels, height, width})
}

// ReshapeFromConv flattens a spatial layout back to one dimension.
func (s *Symbolic) ReshapeFromConv() error {
	return s.reshape([]int{nn.ShapeSize(s.shape)})
}

func (s *Symbolic) affine(m affineMap) error {
	center, err := m.apply(s.center, true)
	if err != nil {
		return err
	}
	exact, err := m.apply(s.exact, false)
	if err != nil {
		return err
	}
	errs := make([]*mat.Dense, len(s.errs))
	for k, e := range s.errs {
		if errs[k], err = m.apply(e, false); err != nil {
			return err
		}
	}

	s.center, s.exact, s.errs = center, exact, errs
	s.shape = m.outShape()
	s.Concretize()
	return nil
}

func (s *Symbolic) relu() ReLUStats {
	rx := relax(s.lower, s.upper)
	batch, width := s.center.Dims()

	s.center.MulElem(s.center, rx.slope)
	s.center.Add(s.center, rx.offset)

	for b := 0; b < batch; b++ {
		mask := rx.slope.RawRowView(b)
		for i := 0; i < s.inputDim; i++ {
			row := s.exact.RawRowView(b*s.inputDim + i)
			for j := range row {
				row[j] *= mask[j]
			}
		}
	}

	// Existing error rows are scaled by the slope of the sample that owns
	// them, before the new rows are appended.
	var scale mat.Dense
	for k, e := range s.errs {
		scale.Reset()
		scale.Mul(s.owners[k], rx.slope)
		e.MulElem(e, &scale)
	}

	if n := len(rx.relaxed); n > 0 {
		errs := mat.NewDense(n, width, nil)
		owners := mat.NewDense(n, batch, nil)
		for row, u := range rx.relaxed {
			errs.Set(row, u.unit, u.magnitude)
			owners.Set(row, u.sample, 1)
		}
		s.errs = append(s.errs, errs)
		s.owners = append(s.owners, owners)
	}

	s.Concretize()
	return rx.stats
}

func (s *Symbolic) reshape(shape []int) error {
	if nn.ShapeSize(shape) != nn.ShapeSize(s.shape) {
		return &ShapeMismatchError{Layer: "reshape", Want: shape, Got: s.shape}
	}
	s.shape = append([]int(nil), shape...)
	return nil
}

func (s *Symbolic) errorRows() int {
	n := 0
	for _, e := range s.errs {
		r, _ := e.Dims()
		n += r
	}
	return n
}

func (s *Symbolic) String() string {
	return fmt.Sprintf("Symbolic{batch=%d shape=%v inputs=%d error_rows=%d}",
		s.BatchSize(), s.shape, s.inputDim, s.errorRows())
}
