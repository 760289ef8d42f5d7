// Package nn describes feed-forward networks as an ordered list of layers
// and evaluates them on concrete inputs.
//
// A network is built from four layer kinds:
//   - Dense:   y = W·x + b with W stored row-major as [out][in]
//   - Conv2D:  2D convolution over [channels][height][width] inputs
//   - ReLU:    elementwise max(0, x)
//   - Flatten: reshape [C,H,W] -> [C*H*W], data untouched
//
// Every activation is stored flattened per sample in row-major order, so a
// batch is a single []float64 of length batch × ShapeSize(shape).
//
// Example usage:
//
//	network := nn.NewNetwork([]int{2},
//		nn.NewDenseLayer([][]float64{{1, -1}}, []float64{0}),
//		nn.NewReLULayer(),
//		nn.NewDenseLayer([][]float64{{2}, {3}}, []float64{0, 0}),
//	)
//	acts, _ := network.Forward(input, batchSize)
//	logits := acts[len(acts)-1]
package nn
