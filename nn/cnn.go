package nn

import (
	"math"
	"math/rand"
)

// ConvOutputSize returns the spatial output size of a convolution
func ConvOutputSize(inputHeight, inputWidth, kernelSize, stride, padding int) (int, int) {
	if stride <= 0 {
		return 0, 0
	}
	outputHeight := (inputHeight+2*padding-kernelSize)/stride + 1
	outputWidth := (inputWidth+2*padding-kernelSize)/stride + 1
	return outputHeight, outputWidth
}

// InitConv2DLayer initializes a Conv2D layer with random weights
func InitConv2DLayer(
	inputHeight, inputWidth, inputChannels int,
	kernelSize, stride, padding, filters int,
	rng *rand.Rand,
) LayerConfig {
	kernelTotal := filters * inputChannels * kernelSize * kernelSize
	kernel := make([]float64, kernelTotal)
	stddev := math.Sqrt(2.0 / float64(inputChannels*kernelSize*kernelSize))

	for i := range kernel {
		kernel[i] = rng.NormFloat64() * stddev
	}

	return NewConv2DLayer(kernel, make([]float64, filters),
		inputHeight, inputWidth, inputChannels, kernelSize, stride, padding, filters)
}

// NewConv2DLayer builds a Conv2D layer from explicit weights.
// kernel: [filters][inputChannels][kernelSize][kernelSize] (flattened)
func NewConv2DLayer(
	kernel, bias []float64,
	inputHeight, inputWidth, inputChannels int,
	kernelSize, stride, padding, filters int,
) LayerConfig {
	outputHeight, outputWidth := ConvOutputSize(inputHeight, inputWidth, kernelSize, stride, padding)

	return LayerConfig{
		Type:          LayerConv2D,
		KernelSize:    kernelSize,
		Stride:        stride,
		Padding:       padding,
		Filters:       filters,
		Kernel:        kernel,
		Bias:          bias,
		InputHeight:   inputHeight,
		InputWidth:    inputWidth,
		InputChannels: inputChannels,
		OutputHeight:  outputHeight,
		OutputWidth:   outputWidth,
	}
}

// Conv2DLinear performs 2D convolution over every row of input.
// input shape: [rows][inChannels][height][width] (flattened)
// output shape: [rows][filters][outHeight][outWidth] (flattened)
// kernel has the layout of config.Kernel; bias may be nil.
func Conv2DLinear(input, kernel, bias []float64, config *LayerConfig, rows int) []float64 {
	inH := config.InputHeight
	inW := config.InputWidth
	inC := config.InputChannels
	kSize := config.KernelSize
	stride := config.Stride
	padding := config.Padding
	filters := config.Filters
	outH := config.OutputHeight
	outW := config.OutputWidth

	output := make([]float64, rows*filters*outH*outW)

	for b := 0; b < rows; b++ {
		for f := 0; f < filters; f++ {
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					sum := 0.0
					if bias != nil {
						sum = bias[f]
					}

					// Convolve over input channels
					for ic := 0; ic < inC; ic++ {
						for kh := 0; kh < kSize; kh++ {
							ih := oh*stride + kh - padding
							if ih < 0 || ih >= inH {
								continue
							}
							for kw := 0; kw < kSize; kw++ {
								iw := ow*stride + kw - padding
								if iw < 0 || iw >= inW {
									continue
								}
								inputIdx := b*inC*inH*inW + ic*inH*inW + ih*inW + iw
								kernelIdx := f*inC*kSize*kSize + ic*kSize*kSize + kh*kSize + kw
								sum += input[inputIdx] * kernel[kernelIdx]
							}
						}
					}

					outputIdx := b*filters*outH*outW + f*outH*outW + oh*outW + ow
					output[outputIdx] = sum
				}
			}
		}
	}

	return output
}

// conv2DForwardCPU performs 2D convolution on CPU
func conv2DForwardCPU(input []float64, config *LayerConfig, batchSize int) []float64 {
	return Conv2DLinear(input, config.Kernel, config.Bias, config, batchSize)
}
