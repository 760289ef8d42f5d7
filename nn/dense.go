package nn

import (
	"math"
	"math/rand"
)

// InitDenseLayer initializes a dense (fully-connected) layer
func InitDenseLayer(inputSize, outputSize int, rng *rand.Rand) LayerConfig {
	// He initialization for weights
	stddev := math.Sqrt(2.0 / float64(inputSize))

	weights := make([]float64, inputSize*outputSize)
	for i := range weights {
		weights[i] = rng.NormFloat64() * stddev
	}

	// Biases initialized to zero
	bias := make([]float64, outputSize)

	return LayerConfig{
		Type:       LayerDense,
		InputSize:  inputSize,
		OutputSize: outputSize,
		Kernel:     weights,
		Bias:       bias,
	}
}

// NewDenseLayer builds a dense layer from a [out][in] weight matrix.
func NewDenseLayer(weight [][]float64, bias []float64) LayerConfig {
	outputSize := len(weight)
	inputSize := 0
	if outputSize > 0 {
		inputSize = len(weight[0])
	}

	kernel := make([]float64, 0, inputSize*outputSize)
	for _, row := range weight {
		kernel = append(kernel, row...)
	}

	return LayerConfig{
		Type:       LayerDense,
		InputSize:  inputSize,
		OutputSize: outputSize,
		Kernel:     kernel,
		Bias:       append([]float64(nil), bias...),
	}
}

// DenseLinear applies y = W·x + b to every row of input.
// input: [rows * InputSize]
// kernel: [OutputSize * InputSize]
// bias may be nil, in which case no offset is added.
func DenseLinear(input, kernel, bias []float64, config *LayerConfig, rows int) []float64 {
	inputSize := config.InputSize
	outputSize := config.OutputSize
	out := make([]float64, rows*outputSize)

	for r := 0; r < rows; r++ {
		x := input[r*inputSize : (r+1)*inputSize]
		for o := 0; o < outputSize; o++ {
			w := kernel[o*inputSize : (o+1)*inputSize]
			sum := 0.0
			for i, v := range x {
				sum += w[i] * v
			}
			if bias != nil {
				sum += bias[o]
			}
			out[r*outputSize+o] = sum
		}
	}

	return out
}

// denseForwardCPU performs forward pass for dense layer
func denseForwardCPU(input []float64, config *LayerConfig, batchSize int) []float64 {
	return DenseLinear(input, config.Kernel, config.Bias, config, batchSize)
}
