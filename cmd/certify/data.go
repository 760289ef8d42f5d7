package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/openfluke/intervalnet/nn"
	"gonum.org/v1/gonum/mat"
)

// batchFile is the on-disk input batch.
type batchFile struct {
	Inputs [][]float64 `json:"inputs"`
	Labels []int       `json:"labels"`
	Shape  []int       `json:"shape"`
}

// batch is a loaded input batch, one flattened sample per row.
type batch struct {
	X      *mat.Dense
	Labels []int
	Shape  []int
}

func (b *batch) size() int { return len(b.Labels) }

// loadBatch reads the input JSON and keeps the first limit samples
// (all when limit is 0).
func loadBatch(path string, limit int) (*batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inputs: %w", err)
	}

	var f batchFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse inputs: %w", err)
	}
	if len(f.Inputs) == 0 {
		return nil, fmt.Errorf("%s: no inputs", path)
	}
	if len(f.Labels) != len(f.Inputs) {
		return nil, fmt.Errorf("%s: %d inputs but %d labels", path, len(f.Inputs), len(f.Labels))
	}
	if limit > 0 && limit < len(f.Inputs) {
		f.Inputs = f.Inputs[:limit]
		f.Labels = f.Labels[:limit]
	}

	width := len(f.Inputs[0])
	if len(f.Shape) == 0 {
		f.Shape = []int{width}
	}
	if nn.ShapeSize(f.Shape) != width {
		return nil, fmt.Errorf("%s: shape %v does not match %d values per input", path, f.Shape, width)
	}

	x := mat.NewDense(len(f.Inputs), width, nil)
	for i, row := range f.Inputs {
		if len(row) != width {
			return nil, fmt.Errorf("%s: input %d has %d values, want %d", path, i, len(row), width)
		}
		x.SetRow(i, row)
	}

	return &batch{X: x, Labels: f.Labels, Shape: f.Shape}, nil
}

// checkAgainst fails when the batch does not fit the model input.
func (b *batch) checkAgainst(model *nn.Network) error {
	if nn.ShapeSize(b.Shape) != model.InputSize() {
		return fmt.Errorf("inputs have shape %v, model expects %v", b.Shape, model.InputShape)
	}
	return nil
}
