package interval

import (
	"fmt"

	"github.com/openfluke/intervalnet/gpu"
	"gonum.org/v1/gonum/mat"
)

// GPUBackend runs dense products through a WebGPU compute shader.
//
// The shader works in float32, so bounds computed on this backend can be
// off by float32 rounding and are not guaranteed to enclose the exact
// float64 result. Use CPUBackend when the bounds back a certificate.
type GPUBackend struct{}

// NewGPUBackend initializes the GPU context and fails if no adapter is
// available.
func NewGPUBackend() (GPUBackend, error) {
	if err := gpu.EnsureGPU(); err != nil {
		return GPUBackend{}, fmt.Errorf("gpu backend: %w", err)
	}
	return GPUBackend{}, nil
}

func (GPUBackend) Name() string { return "gpu" }

func (GPUBackend) MulTrans(rows, w *mat.Dense) (*mat.Dense, error) {
	r, in := rows.Dims()
	out, win := w.Dims()
	if in != win {
		return nil, fmt.Errorf("%w: rows have %d columns, weight has %d", ErrShapeMismatch, in, win)
	}

	res, err := gpu.MatMulTrans(toFloat32(rawData(rows)), r, in, toFloat32(rawData(w)), out)
	if err != nil {
		return nil, fmt.Errorf("gpu matmul: %w", err)
	}
	return mat.NewDense(r, out, toFloat64(res)), nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
