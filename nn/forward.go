package nn

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Forward runs a batch of flattened inputs through every layer.
// activations[0] = input, activations[i+1] = output of layer i.
// Layers of unrecognized kind pass their input through unchanged.
func (n *Network) Forward(input []float64, batchSize int) ([][]float64, error) {
	inSize := n.InputSize()
	if batchSize <= 0 || len(input) != batchSize*inSize {
		return nil, fmt.Errorf("input has %d values, want batch %d × %d", len(input), batchSize, inSize)
	}

	activations := make([][]float64, len(n.Layers)+1)
	activations[0] = input
	cur := input

	for i := range n.Layers {
		l := &n.Layers[i]
		width := len(cur) / batchSize

		switch l.Type {
		case LayerDense:
			if width != l.InputSize {
				return nil, fmt.Errorf("layer %d (dense): input size mismatch: got %d, expected %d", i, width, l.InputSize)
			}
			cur = denseForwardCPU(cur, l, batchSize)
		case LayerConv2D:
			if width != l.InputChannels*l.InputHeight*l.InputWidth {
				return nil, fmt.Errorf("layer %d (conv2d): input size mismatch: got %d, expected %d",
					i, width, l.InputChannels*l.InputHeight*l.InputWidth)
			}
			cur = conv2DForwardCPU(cur, l, batchSize)
		case LayerReLU:
			cur = reluCPU(cur)
		default:
			// Flatten and unknown kinds: data layout is unchanged
			cur = append([]float64(nil), cur...)
		}
		activations[i+1] = cur
	}

	return activations, nil
}

// Predict returns the argmax class of every sample's final output.
func (n *Network) Predict(input []float64, batchSize int) ([]int, error) {
	acts, err := n.Forward(input, batchSize)
	if err != nil {
		return nil, err
	}
	out := acts[len(acts)-1]
	width := len(out) / batchSize

	preds := make([]int, batchSize)
	for b := 0; b < batchSize; b++ {
		preds[b] = floats.MaxIdx(out[b*width : (b+1)*width])
	}
	return preds, nil
}
