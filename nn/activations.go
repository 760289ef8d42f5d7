package nn

// NewReLULayer returns a ReLU layer descriptor
func NewReLULayer() LayerConfig {
	return LayerConfig{Type: LayerReLU}
}

// NewFlattenLayer returns a Flatten layer descriptor
func NewFlattenLayer() LayerConfig {
	return LayerConfig{Type: LayerFlatten}
}

// reluCPU applies max(0, v) elementwise into a fresh slice
func reluCPU(input []float64) []float64 {
	out := make([]float64, len(input))
	for i, v := range input {
		if v > 0 {
			out[i] = v
		}
	}
	return out
}

