package interval

import (
	"fmt"

	"github.com/openfluke/intervalnet/nn"
)

// Transfer is the abstract counterpart of one network layer.
//
// Forward takes ownership of d and returns the domain to continue with; the
// returned value may be d itself, mutated. Callers must not reuse d.
type Transfer interface {
	Kind() nn.LayerType
	Forward(d Domain) (Domain, error)

	apply(d Domain) (Domain, ReLUStats, error)
}

// DenseTransfer applies y = W·x + b. Both domains stay exact.
type DenseTransfer struct {
	m *denseMap
}

// NewDenseTransfer builds the transfer for a dense layer. The kernel is
// row-major [OutputSize][InputSize].
func NewDenseTransfer(cfg nn.LayerConfig, backend Backend) (*DenseTransfer, error) {
	if cfg.InputSize <= 0 || cfg.OutputSize <= 0 {
		return nil, fmt.Errorf("invalid dense size %dx%d", cfg.OutputSize, cfg.InputSize)
	}
	if len(cfg.Kernel) != cfg.InputSize*cfg.OutputSize {
		return nil, fmt.Errorf("kernel has %d values, want %d", len(cfg.Kernel), cfg.InputSize*cfg.OutputSize)
	}
	if cfg.Bias != nil && len(cfg.Bias) != cfg.OutputSize {
		return nil, fmt.Errorf("bias has %d values, want %d", len(cfg.Bias), cfg.OutputSize)
	}
	if backend == nil {
		backend = CPUBackend{}
	}
	return &DenseTransfer{m: newDenseMap(&cfg, backend)}, nil
}

func (t *DenseTransfer) Kind() nn.LayerType { return nn.LayerDense }

func (t *DenseTransfer) Forward(d Domain) (Domain, error) {
	d, _, err := t.apply(d)
	return d, err
}

func (t *DenseTransfer) apply(d Domain) (Domain, ReLUStats, error) {
	// Dense layers see their input flattened
	if nn.ShapeSize(d.Shape()) != t.m.cfg.InputSize {
		return nil, ReLUStats{}, &ShapeMismatchError{Layer: "dense", Want: t.m.inShape(), Got: d.Shape()}
	}
	return affineForward(d, t.m)
}

// ConvTransfer applies a 2D convolution with the layer's stride and
// padding. The radius of a Box goes through the same convolution with
// |kernel|.
type ConvTransfer struct {
	m *convMap
}

// NewConvTransfer builds the transfer for a conv2d layer. The kernel layout
// is [Filters][InputChannels][KernelSize][KernelSize].
func NewConvTransfer(cfg nn.LayerConfig) (*ConvTransfer, error) {
	if cfg.Stride <= 0 || cfg.KernelSize <= 0 || cfg.Filters <= 0 || cfg.InputChannels <= 0 {
		return nil, fmt.Errorf("invalid conv2d geometry")
	}
	want := cfg.Filters * cfg.InputChannels * cfg.KernelSize * cfg.KernelSize
	if len(cfg.Kernel) != want {
		return nil, fmt.Errorf("kernel has %d values, want %d", len(cfg.Kernel), want)
	}
	if cfg.Bias != nil && len(cfg.Bias) != cfg.Filters {
		return nil, fmt.Errorf("bias has %d values, want %d", len(cfg.Bias), cfg.Filters)
	}
	if cfg.OutputHeight == 0 && cfg.OutputWidth == 0 {
		cfg.OutputHeight, cfg.OutputWidth = nn.ConvOutputSize(
			cfg.InputHeight, cfg.InputWidth, cfg.KernelSize, cfg.Stride, cfg.Padding)
	}
	if cfg.OutputHeight <= 0 || cfg.OutputWidth <= 0 {
		return nil, fmt.Errorf("empty conv2d output %dx%d", cfg.OutputHeight, cfg.OutputWidth)
	}
	return &ConvTransfer{m: newConvMap(&cfg)}, nil
}

func (t *ConvTransfer) Kind() nn.LayerType { return nn.LayerConv2D }

func (t *ConvTransfer) Forward(d Domain) (Domain, error) {
	d, _, err := t.apply(d)
	return d, err
}

func (t *ConvTransfer) apply(d Domain) (Domain, ReLUStats, error) {
	want := t.m.inShape()
	got := d.Shape()
	switch {
	case sameShape(got, want):
	case len(got) == 1 && got[0] == nn.ShapeSize(want):
		// flat input is viewed as [C,H,W]
		if err := d.reshape(want); err != nil {
			return nil, ReLUStats{}, err
		}
	default:
		return nil, ReLUStats{}, &ShapeMismatchError{Layer: "conv2d", Want: want, Got: got}
	}
	return affineForward(d, t.m)
}

func affineForward(d Domain, m affineMap) (Domain, ReLUStats, error) {
	if err := d.affine(m); err != nil {
		return nil, ReLUStats{}, err
	}
	return d, ReLUStats{}, nil
}

// ReLUTransfer applies the triangle relaxation of max(0, x).
type ReLUTransfer struct{}

func NewReLUTransfer() *ReLUTransfer { return &ReLUTransfer{} }

func (t *ReLUTransfer) Kind() nn.LayerType { return nn.LayerReLU }

func (t *ReLUTransfer) Forward(d Domain) (Domain, error) {
	d, _, err := t.apply(d)
	return d, err
}

func (t *ReLUTransfer) apply(d Domain) (Domain, ReLUStats, error) {
	return d, d.relu(), nil
}

// FlattenTransfer collapses the per-sample shape to one dimension. No
// approximation is introduced.
type FlattenTransfer struct{}

func NewFlattenTransfer() *FlattenTransfer { return &FlattenTransfer{} }

func (t *FlattenTransfer) Kind() nn.LayerType { return nn.LayerFlatten }

func (t *FlattenTransfer) Forward(d Domain) (Domain, error) {
	d, _, err := t.apply(d)
	return d, err
}

func (t *FlattenTransfer) apply(d Domain) (Domain, ReLUStats, error) {
	if err := d.reshape([]int{nn.ShapeSize(d.Shape())}); err != nil {
		return nil, ReLUStats{}, err
	}
	return d, ReLUStats{}, nil
}
