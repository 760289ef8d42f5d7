package interval

import (
	"fmt"

	"github.com/openfluke/intervalnet/nn"
	"go.uber.org/zap"
)

// Network is the ordered list of transfer functions built from a layer
// list. It holds no per-run state and may be shared between goroutines as
// long as each run owns its own Domain.
type Network struct {
	steps     []step
	backend   Backend
	observers []Observer
}

type step struct {
	index    int // position in the original layer list
	transfer Transfer
}

// Option configures a Network.
type Option func(*Network)

// WithBackend selects the backend for dense products. Default CPUBackend.
func WithBackend(b Backend) Option {
	return func(n *Network) {
		if b != nil {
			n.backend = b
		}
	}
}

// WithObserver adds an observer notified after every transfer function.
func WithObserver(o Observer) Option {
	return func(n *Network) {
		if o != nil {
			n.observers = append(n.observers, o)
		}
	}
}

// NewNetwork builds the transfer functions for layers. Layers of
// unrecognized kind are skipped.
func NewNetwork(layers []nn.LayerConfig, opts ...Option) (*Network, error) {
	n := &Network{backend: CPUBackend{}}
	for _, opt := range opts {
		opt(n)
	}

	for i, cfg := range layers {
		var (
			t   Transfer
			err error
		)
		switch cfg.Type {
		case nn.LayerDense:
			t, err = NewDenseTransfer(cfg, n.backend)
		case nn.LayerConv2D:
			t, err = NewConvTransfer(cfg)
		case nn.LayerReLU:
			t = NewReLUTransfer()
		case nn.LayerFlatten:
			t = NewFlattenTransfer()
		default:
			logger.Debug("skipping unrecognized layer", zap.Int("layer", i), zap.String("type", cfg.TypeName()))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, nn.LayerTypeString(cfg.Type), err)
		}
		n.steps = append(n.steps, step{index: i, transfer: t})
	}

	return n, nil
}

// FromModel builds the transfer functions for a loaded nn.Network.
func FromModel(model *nn.Network, opts ...Option) (*Network, error) {
	return NewNetwork(model.Layers, opts...)
}

// Len is the number of transfer functions, skipped layers excluded.
func (n *Network) Len() int { return len(n.steps) }

// Backend returns the backend used by dense transfers.
func (n *Network) Backend() Backend { return n.backend }

// RunStats aggregates what happened during one run.
type RunStats struct {
	Layers     []LayerStats `json:"layers"`
	Ambiguous  int          `json:"ambiguous"`
	Degenerate int          `json:"degenerate"`
	ErrorRows  int          `json:"error_rows"`
}

// Run applies every transfer function in order and returns the final
// domain. d is consumed.
func (n *Network) Run(d Domain) (Domain, error) {
	d, _, err := n.Trace(d)
	return d, err
}

// Trace is Run that also reports per-layer statistics and notifies the
// network's observers.
func (n *Network) Trace(d Domain) (Domain, RunStats, error) {
	stats := RunStats{Layers: make([]LayerStats, 0, len(n.steps))}

	for _, s := range n.steps {
		kind := s.transfer.Kind()
		next, relu, err := s.transfer.apply(d)
		if err != nil {
			return nil, stats, fmt.Errorf("layer %d (%s): %w", s.index, nn.LayerTypeString(kind), err)
		}
		d = next

		lower, upper := d.Bounds()
		ls := computeLayerStats(lower, upper, kind)
		ls.ErrorRows = d.errorRows()

		event := LayerEvent{
			LayerIdx:  s.index,
			LayerType: kind,
			Shape:     d.Shape(),
			Lower:     lower,
			Upper:     upper,
		}
		if kind == nn.LayerReLU {
			ls.Ambiguous = relu.Ambiguous
			ls.Degenerate = relu.Degenerate
			stats.Ambiguous += relu.Ambiguous
			stats.Degenerate += relu.Degenerate
			event.ReLU = &relu
			if relu.Degenerate > 0 {
				logger.Debug("degenerate bounds at relu",
					zap.Int("layer", s.index), zap.Int("units", relu.Degenerate))
			}
		}
		event.Stats = ls
		stats.Layers = append(stats.Layers, ls)

		logger.Debug("transfer applied",
			zap.Int("layer", s.index),
			zap.String("type", ls.LayerType),
			zap.Int("ambiguous", ls.Ambiguous),
			zap.Float64("mean_width", ls.MeanWidth))

		for _, o := range n.observers {
			o.OnLayer(event)
		}
	}

	stats.ErrorRows = d.errorRows()
	return d, stats, nil
}
