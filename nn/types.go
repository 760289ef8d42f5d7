package nn

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// LayerType defines the type of network layer
type LayerType int

const (
	LayerDense   LayerType = 0 // Dense/Fully-connected layer: y = W·x + b
	LayerConv2D  LayerType = 1 // 2D Convolutional layer
	LayerReLU    LayerType = 2 // Elementwise max(0, x)
	LayerFlatten LayerType = 3 // Reshape [C,H,W] -> [C*H*W]

	// LayerUnknown marks a layer whose serialized type is not one of the
	// kinds above. It passes data through and is skipped by the verifier.
	LayerUnknown LayerType = -1
)

// supportedLayers is the set of layer kinds the verifier understands.
var supportedLayers = mapset.NewSet(LayerDense, LayerConv2D, LayerReLU, LayerFlatten)

// IsSupported reports whether lt is one of the recognized layer kinds.
func IsSupported(lt LayerType) bool {
	return supportedLayers.Contains(lt)
}

// LayerConfig holds configuration for a single layer in the network
type LayerConfig struct {
	Type LayerType
	Name string

	// RawType is the serialized type name of a LayerUnknown layer
	RawType string

	// Dense specific parameters
	InputSize  int // Number of input features
	OutputSize int // Number of output features

	// Conv2D specific parameters
	KernelSize int // Size of convolution kernel (e.g., 3 for 3x3)
	Stride     int // Stride for convolution
	Padding    int // Zero padding on every side
	Filters    int // Number of output filters/channels

	// Shape information (for Conv2D)
	InputHeight   int
	InputWidth    int
	InputChannels int
	OutputHeight  int
	OutputWidth   int

	// Dense: row-major [OutputSize][InputSize]
	// Conv2D: [Filters][InputChannels][KernelSize][KernelSize]
	Kernel []float64
	Bias   []float64
}

// Network is an ordered list of layers applied to inputs of InputShape.
type Network struct {
	InputShape []int
	Layers     []LayerConfig
}

// NewNetwork creates a network over per-sample inputs of the given shape.
func NewNetwork(inputShape []int, layers ...LayerConfig) *Network {
	return &Network{
		InputShape: append([]int(nil), inputShape...),
		Layers:     layers,
	}
}

// InputSize returns the flattened per-sample input size.
func (n *Network) InputSize() int {
	return ShapeSize(n.InputShape)
}

// OutputShapes walks the layer list and returns the per-sample shape after
// every layer. Layers of unrecognized kind leave the shape unchanged.
func (n *Network) OutputShapes() ([][]int, error) {
	shapes := make([][]int, len(n.Layers))
	cur := append([]int(nil), n.InputShape...)

	for i := range n.Layers {
		l := &n.Layers[i]
		switch l.Type {
		case LayerDense:
			if ShapeSize(cur) != l.InputSize {
				return nil, fmt.Errorf("layer %d (dense): input size %d, got shape %v", i, l.InputSize, cur)
			}
			cur = []int{l.OutputSize}
		case LayerConv2D:
			if ShapeSize(cur) != l.InputChannels*l.InputHeight*l.InputWidth {
				return nil, fmt.Errorf("layer %d (conv2d): input shape [%d %d %d], got %v",
					i, l.InputChannels, l.InputHeight, l.InputWidth, cur)
			}
			if len(cur) == 3 && cur[0] != l.InputChannels {
				return nil, fmt.Errorf("layer %d (conv2d): expected %d channels, got %d", i, l.InputChannels, cur[0])
			}
			cur = []int{l.Filters, l.OutputHeight, l.OutputWidth}
		case LayerFlatten:
			cur = []int{ShapeSize(cur)}
		}
		shapes[i] = append([]int(nil), cur...)
	}

	return shapes, nil
}

// Validate checks that weight buffers have the sizes their shape fields
// imply and that consecutive layers agree. Layers of unrecognized kind are
// not an error; see Unsupported.
func (n *Network) Validate() error {
	if ShapeSize(n.InputShape) <= 0 {
		return fmt.Errorf("invalid input shape %v", n.InputShape)
	}

	for i := range n.Layers {
		l := &n.Layers[i]
		if !IsSupported(l.Type) {
			continue
		}
		if err := l.checkWeights(); err != nil {
			return fmt.Errorf("layer %d (%s): %w", i, LayerTypeString(l.Type), err)
		}
	}

	_, err := n.OutputShapes()
	return err
}

// Unsupported returns the sorted, de-duplicated type names of every layer
// the verifier will skip. Empty when all layers are recognized.
func (n *Network) Unsupported() []string {
	unknown := mapset.NewSet[string]()
	for i := range n.Layers {
		if l := &n.Layers[i]; !IsSupported(l.Type) {
			unknown.Add(l.TypeName())
		}
	}
	names := unknown.ToSlice()
	sort.Strings(names)
	return names
}

func (l *LayerConfig) checkWeights() error {
	switch l.Type {
	case LayerDense:
		if l.InputSize <= 0 || l.OutputSize <= 0 {
			return fmt.Errorf("invalid dense size %dx%d", l.OutputSize, l.InputSize)
		}
		if len(l.Kernel) != l.InputSize*l.OutputSize {
			return fmt.Errorf("kernel has %d values, want %d", len(l.Kernel), l.InputSize*l.OutputSize)
		}
		if len(l.Bias) != l.OutputSize {
			return fmt.Errorf("bias has %d values, want %d", len(l.Bias), l.OutputSize)
		}
	case LayerConv2D:
		if l.Stride <= 0 || l.KernelSize <= 0 || l.Filters <= 0 || l.InputChannels <= 0 {
			return fmt.Errorf("invalid conv2d geometry")
		}
		want := l.Filters * l.InputChannels * l.KernelSize * l.KernelSize
		if len(l.Kernel) != want {
			return fmt.Errorf("kernel has %d values, want %d", len(l.Kernel), want)
		}
		if len(l.Bias) != l.Filters {
			return fmt.Errorf("bias has %d values, want %d", len(l.Bias), l.Filters)
		}
		outH, outW := ConvOutputSize(l.InputHeight, l.InputWidth, l.KernelSize, l.Stride, l.Padding)
		if outH != l.OutputHeight || outW != l.OutputWidth {
			return fmt.Errorf("output %dx%d does not match geometry %dx%d", l.OutputHeight, l.OutputWidth, outH, outW)
		}
	}
	return nil
}

// LayerTypeString converts LayerType to its serialized name
func LayerTypeString(lt LayerType) string {
	switch lt {
	case LayerDense:
		return "dense"
	case LayerConv2D:
		return "conv2d"
	case LayerReLU:
		return "relu"
	case LayerFlatten:
		return "flatten"
	default:
		return "unknown"
	}
}

// TypeName is the serialized type of the layer. Unknown layers keep the
// name they were loaded with.
func (l *LayerConfig) TypeName() string {
	if !IsSupported(l.Type) && l.RawType != "" {
		return l.RawType
	}
	return LayerTypeString(l.Type)
}

// ParseLayerType is the inverse of LayerTypeString
func ParseLayerType(s string) (LayerType, bool) {
	switch s {
	case "dense", "linear":
		return LayerDense, true
	case "conv2d":
		return LayerConv2D, true
	case "relu":
		return LayerReLU, true
	case "flatten":
		return LayerFlatten, true
	default:
		return LayerUnknown, false
	}
}
