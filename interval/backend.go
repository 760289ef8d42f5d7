package interval

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Backend performs the dense matrix products of the affine transfer
// functions. Convolutions always run on the CPU.
type Backend interface {
	// MulTrans returns rows·wᵀ for rows r×in and w out×in.
	MulTrans(rows, w *mat.Dense) (*mat.Dense, error)
	Name() string
}

// CPUBackend multiplies with gonum in float64.
type CPUBackend struct{}

func (CPUBackend) Name() string { return "cpu" }

func (CPUBackend) MulTrans(rows, w *mat.Dense) (*mat.Dense, error) {
	r, in := rows.Dims()
	out, win := w.Dims()
	if in != win {
		return nil, fmt.Errorf("%w: rows have %d columns, weight has %d", ErrShapeMismatch, in, win)
	}
	res := mat.NewDense(r, out, nil)
	res.Mul(rows, w.T())
	return res, nil
}
