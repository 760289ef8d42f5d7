package interval

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// rowsOf builds a batch matrix from per-sample rows.
func rowsOf(rows ...[]float64) *mat.Dense {
	m := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, r := range rows {
		m.SetRow(i, r)
	}
	return m
}

func row(m *mat.Dense, i int) []float64 {
	return mat.Row(nil, i, m)
}

func TestNewBoxRejectsInvertedBounds(t *testing.T) {
	_, err := NewBox(rowsOf([]float64{0, 2}), rowsOf([]float64{1, 1}), []int{2})
	require.ErrorIs(t, err, ErrInvalidBounds)

	var ib *InvalidBoundsError
	require.ErrorAs(t, err, &ib)
	assert.Equal(t, 0, ib.Sample)
	assert.Equal(t, 1, ib.Unit)
	assert.Equal(t, 2.0, ib.Lower)
	assert.Equal(t, 1.0, ib.Upper)
}

func TestBoxUpdate(t *testing.T) {
	b, err := NewBox(rowsOf([]float64{0, 0}), rowsOf([]float64{1, 1}), []int{2})
	require.NoError(t, err)

	require.NoError(t, b.Update(rowsOf([]float64{-1, 0}), rowsOf([]float64{1, 3})))
	assert.Equal(t, []float64{0, 1.5}, row(b.Center(), 0))
	assert.Equal(t, []float64{1, 1.5}, row(b.Radius(), 0))

	err = b.Update(rowsOf([]float64{2, 0}), rowsOf([]float64{1, 3}))
	require.ErrorIs(t, err, ErrInvalidBounds)
	// failed update leaves the bounds alone
	lower, _ := b.Bounds()
	assert.Equal(t, []float64{-1, 0}, row(lower, 0))
}

func TestNewBoxShapeMismatch(t *testing.T) {
	_, err := NewBox(rowsOf([]float64{0, 0}), rowsOf([]float64{1, 1}), []int{3})
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, err = NewBox(nil, nil, []int{1})
	require.ErrorIs(t, err, ErrEmptyBatch)
}

func TestWorstCasePinning(t *testing.T) {
	lower := rowsOf([]float64{-1, 2})
	upper := rowsOf([]float64{1, 5})

	b, err := NewBox(lower, upper, []int{2})
	require.NoError(t, err)
	wc, err := b.WorstCase([]int{0})
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 5}, row(wc, 0))

	s, err := NewSymbolic(lower, upper, []int{2})
	require.NoError(t, err)
	wc, err = s.WorstCase([]int{0})
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 5}, row(wc, 0))

	wc, err = s.WorstCase([]int{1})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, row(wc, 0))
}

func TestWorstCaseLabelOutOfRange(t *testing.T) {
	b, err := NewBox(rowsOf([]float64{0, 0}, []float64{0, 0}), rowsOf([]float64{1, 1}, []float64{1, 1}), []int{2})
	require.NoError(t, err)

	_, err = b.WorstCase([]int{0, 2})
	assert.ErrorIs(t, err, ErrLabelOutOfRange)
	_, err = b.WorstCase([]int{0})
	assert.ErrorIs(t, err, ErrLabelOutOfRange)
	_, err = b.WorstCase([]int{-1, 0})
	assert.ErrorIs(t, err, ErrLabelOutOfRange)
}

func TestNewSymbolicReproducesInputBounds(t *testing.T) {
	lower := rowsOf([]float64{0, -1, 2}, []float64{1, 1, 1})
	upper := rowsOf([]float64{1, 1, 4}, []float64{1, 3, 1.5})

	s, err := NewSymbolic(lower, upper, []int{3})
	require.NoError(t, err)
	assert.Equal(t, 3, s.InputDim())
	assert.Empty(t, s.ErrorDeps())
	assert.Empty(t, s.ErrorOwners())

	r, c := s.ExactDep().Dims()
	assert.Equal(t, 6, r)
	assert.Equal(t, 3, c)
	// diagonal per sample: dimension i only depends on input i
	assert.Equal(t, []float64{0, 1, 0}, row(s.ExactDep(), 1))
	assert.Equal(t, []float64{0, 0, 0.25}, row(s.ExactDep(), 5))

	gotL, gotU := s.Bounds()
	assert.True(t, mat.EqualApprox(lower, gotL, 1e-12))
	assert.True(t, mat.EqualApprox(upper, gotU, 1e-12))
}

func TestNewSymbolicRejectsInvertedBounds(t *testing.T) {
	_, err := NewSymbolic(rowsOf([]float64{1}), rowsOf([]float64{0}), []int{1})
	require.ErrorIs(t, err, ErrInvalidBounds)
}

func TestSymbolicReshape(t *testing.T) {
	lower := mat.NewDense(1, 12, nil)
	upper := mat.NewDense(1, 12, nil)
	for i := 0; i < 12; i++ {
		upper.Set(0, i, float64(i))
	}
	s, err := NewSymbolic(lower, upper, []int{12})
	require.NoError(t, err)

	require.NoError(t, s.ReshapeForConv(3, 2, 2))
	if diff := cmp.Diff([]int{3, 2, 2}, s.Shape()); diff != "" {
		t.Errorf("shape after ReshapeForConv (-want +got):\n%s", diff)
	}
	_, gotU := s.Bounds()
	assert.True(t, mat.Equal(upper, gotU), "reshape must not touch the coefficients")

	require.NoError(t, s.ReshapeFromConv())
	assert.Equal(t, []int{12}, s.Shape())

	err = s.ReshapeForConv(2, 2, 2)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestParseMethod(t *testing.T) {
	m, ok := ParseMethod("symbolic")
	require.True(t, ok)
	assert.Equal(t, MethodSymbolic, m)

	m, ok = ParseMethod("box")
	require.True(t, ok)
	assert.Equal(t, "naive", m.String())

	_, ok = ParseMethod("zonotope")
	assert.False(t, ok)
}
