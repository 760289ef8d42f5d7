package interval

import (
	"sync"

	"github.com/openfluke/intervalnet/nn"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LayerStats summarizes the bounds after one transfer function.
type LayerStats struct {
	LayerType  string  `json:"layer_type"`
	Units      int     `json:"units"`
	MeanWidth  float64 `json:"mean_width"`
	MaxWidth   float64 `json:"max_width"`
	Ambiguous  int     `json:"ambiguous"`
	Degenerate int     `json:"degenerate"`
	ErrorRows  int     `json:"error_rows"`
}

// LayerEvent is delivered to observers after every transfer function.
// Lower and Upper belong to the domain and are only valid during the
// callback.
type LayerEvent struct {
	LayerIdx  int          `json:"layer_idx"`
	LayerType nn.LayerType `json:"layer_type"`
	Shape     []int        `json:"shape"`
	Stats     LayerStats   `json:"stats"`
	ReLU      *ReLUStats   `json:"relu,omitempty"`
	Lower     *mat.Dense   `json:"-"`
	Upper     *mat.Dense   `json:"-"`
}

// Observer receives layer events from Network.Trace.
type Observer interface {
	OnLayer(event LayerEvent)
}

// computeLayerStats measures bound widths over the whole batch.
func computeLayerStats(lower, upper *mat.Dense, layerType nn.LayerType) LayerStats {
	var width mat.Dense
	width.Sub(upper, lower)
	w := rawData(&width)

	stats := LayerStats{LayerType: nn.LayerTypeString(layerType), Units: len(w)}
	if len(w) > 0 {
		stats.MeanWidth = floats.Sum(w) / float64(len(w))
		stats.MaxWidth = floats.Max(w)
	}
	return stats
}

// RecordingObserver keeps a copy of every event, including the bounds.
type RecordingObserver struct {
	mu     sync.Mutex
	Events []LayerEvent
}

func (o *RecordingObserver) OnLayer(event LayerEvent) {
	event.Lower = mat.DenseCopyOf(event.Lower)
	event.Upper = mat.DenseCopyOf(event.Upper)
	event.Shape = append([]int(nil), event.Shape...)

	o.mu.Lock()
	o.Events = append(o.Events, event)
	o.mu.Unlock()
}

// LoggingObserver writes one debug entry per layer.
type LoggingObserver struct {
	Logger *zap.Logger
}

func (o *LoggingObserver) OnLayer(event LayerEvent) {
	l := o.Logger
	if l == nil {
		l = logger
	}
	fields := []zap.Field{
		zap.Int("layer", event.LayerIdx),
		zap.String("type", event.Stats.LayerType),
		zap.Ints("shape", event.Shape),
		zap.Float64("mean_width", event.Stats.MeanWidth),
		zap.Float64("max_width", event.Stats.MaxWidth),
		zap.Int("error_rows", event.Stats.ErrorRows),
	}
	if event.ReLU != nil {
		fields = append(fields,
			zap.Int("ambiguous", event.ReLU.Ambiguous),
			zap.Int("degenerate", event.ReLU.Degenerate))
	}
	l.Debug("layer propagated", fields...)
}

// ChannelObserver forwards events to a channel without blocking; events
// are dropped when the buffer is full. Bounds are stripped.
type ChannelObserver struct {
	Events chan LayerEvent
}

func NewChannelObserver(bufferSize int) *ChannelObserver {
	return &ChannelObserver{
		Events: make(chan LayerEvent, bufferSize),
	}
}

func (o *ChannelObserver) OnLayer(event LayerEvent) {
	event.Lower, event.Upper = nil, nil
	select {
	case o.Events <- event:
	default:
	}
}
