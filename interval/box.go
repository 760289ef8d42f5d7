package interval

import (
	"fmt"
	"math"

	"github.com/openfluke/intervalnet/nn"
	"gonum.org/v1/gonum/mat"
)

// Box is the naive interval domain: independent per-unit bounds.
type Box struct {
	lower, upper *mat.Dense
	shape        []int
	masks        []*mat.Dense
}

// NewBox builds a box over a batch of bounds, one sample per row. shape is
// the per-sample activation shape and must account for every column.
func NewBox(lower, upper *mat.Dense, shape []int) (*Box, error) {
	if lower == nil || upper == nil || lower.IsEmpty() {
		return nil, ErrEmptyBatch
	}
	if _, c := lower.Dims(); c != nn.ShapeSize(shape) {
		return nil, &ShapeMismatchError{Layer: "box", Want: shape, Got: []int{c}}
	}
	b := &Box{shape: append([]int(nil), shape...)}
	if err := b.Update(lower, upper); err != nil {
		return nil, err
	}
	return b, nil
}

// Update replaces the bounds with copies of lower and upper.
func (b *Box) Update(lower, upper *mat.Dense) error {
	if err := checkBounds(lower, upper); err != nil {
		return err
	}
	b.lower = mat.DenseCopyOf(lower)
	b.upper = mat.DenseCopyOf(upper)
	return nil
}

func (b *Box) Bounds() (lower, upper *mat.Dense) { return b.lower, b.upper }
func (b *Box) Shape() []int                      { return b.shape }

func (b *Box) BatchSize() int {
	r, _ := b.lower.Dims()
	return r
}

// Center returns (lower+upper)/2.
func (b *Box) Center() *mat.Dense {
	var c mat.Dense
	c.Add(b.lower, b.upper)
	c.Scale(0.5, &c)
	return &c
}

// Radius returns (upper-lower)/2.
func (b *Box) Radius() *mat.Dense {
	var r mat.Dense
	r.Sub(b.upper, b.lower)
	r.Scale(0.5, &r)
	return &r
}

// Masks returns the ReLU slope mask recorded at every activation layer so
// far, in layer order. Masks never feed back into the bounds.
func (b *Box) Masks() []*mat.Dense { return b.masks }

func (b *Box) WorstCase(labels []int) (*mat.Dense, error) {
	return worstCase(b.lower, b.upper, labels)
}

func (b *Box) affine(m affineMap) error {
	nc, err := m.apply(b.Center(), true)
	if err != nil {
		return err
	}
	nr, err := m.applyAbs(b.Radius())
	if err != nil {
		return err
	}
	var lower, upper mat.Dense
	lower.Sub(nc, nr)
	upper.Add(nc, nr)
	b.lower, b.upper = &lower, &upper
	b.shape = m.outShape()
	return nil
}

// relu maps every unit to [relu(l), relu(u)], the exact image of the box.
func (b *Box) relu() ReLUStats {
	rx := relax(b.lower, b.upper)
	b.masks = append(b.masks, rx.slope)

	clip := func(_, _ int, v float64) float64 { return math.Max(v, 0) }
	b.lower.Apply(clip, b.lower)
	b.upper.Apply(clip, b.upper)
	return rx.stats
}

func (b *Box) reshape(shape []int) error {
	if nn.ShapeSize(shape) != nn.ShapeSize(b.shape) {
		return &ShapeMismatchError{Layer: "reshape", Want: shape, Got: b.shape}
	}
	b.shape = append([]int(nil), shape...)
	return nil
}

func (b *Box) errorRows() int { return 0 }

// worstCase pins the label column of every row to lower and every other
// column to upper.
func worstCase(lower, upper *mat.Dense, labels []int) (*mat.Dense, error) {
	r, c := lower.Dims()
	if len(labels) != r {
		return nil, fmt.Errorf("%w: %d labels for batch of %d", ErrLabelOutOfRange, len(labels), r)
	}
	out := mat.DenseCopyOf(upper)
	for b, y := range labels {
		if y < 0 || y >= c {
			return nil, fmt.Errorf("%w: label %d for sample %d with %d classes", ErrLabelOutOfRange, y, b, c)
		}
		out.Set(b, y, lower.At(b, y))
	}
	return out, nil
}
