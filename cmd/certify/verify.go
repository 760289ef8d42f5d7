package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/openfluke/intervalnet/config"
	"github.com/openfluke/intervalnet/interval"
	"github.com/openfluke/intervalnet/nn"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var traceLayers bool

// verifyCmd runs one verification call
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Bound a batch at one radius and report robust loss and error",
	Long: `Loads the model bundle and the input batch, propagates the epsilon ball
around every input and prints a JSON report.

Example:
  certify verify -m model.json -d inputs.json -e 0.01 --method symbolic`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("trace") {
			cfg.Verify.Trace = traceLayers
		}
		return runVerify(cfg, cmd.OutOrStdout())
	},
}

func init() {
	verifyCmd.Flags().BoolVar(&traceLayers, "trace", false, "Include per-layer bound statistics in the report")
}

// Report is the JSON document printed by verify.
type Report struct {
	RunID           string            `json:"run_id"`
	Model           string            `json:"model"`
	Method          string            `json:"method"`
	Backend         string            `json:"backend"`
	Epsilon         float64           `json:"epsilon"`
	Samples         int               `json:"samples"`
	NominalAccuracy float64           `json:"nominal_accuracy"`
	Loss            float64           `json:"robust_loss"`
	RobustError     float64           `json:"robust_error"`
	AvgPerLabel     float64           `json:"avg_per_label"`
	Verified        []bool            `json:"verified"`
	Stats           interval.RunStats `json:"stats"`
	Elapsed         string            `json:"elapsed"`

	Trace []interval.LayerEvent `json:"trace,omitempty"`
}

// session bundles what every command needs: the model, the batch and the
// transfer network.
type session struct {
	model  *nn.Network
	data   *batch
	net    *interval.Network
	method interval.Method
	tracer *interval.ChannelObserver
}

// openSession loads the model and the batch and builds the transfer
// network. With trace set, layer events of every run are buffered on
// the session's tracer.
func openSession(c *config.Config, trace bool) (*session, error) {
	model, err := nn.LoadModel(c.Model.Path, c.Model.ID)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", c.Model.Path, err)
	}
	if skipped := model.Unsupported(); len(skipped) > 0 {
		logger.Warn("unsupported layers are skipped during propagation",
			zap.Strings("types", skipped))
	}

	data, err := loadBatch(c.Data.Path, c.Data.Limit)
	if err != nil {
		return nil, err
	}
	if err := data.checkAgainst(model); err != nil {
		return nil, err
	}

	b, err := selectBackend(c.Backend)
	if err != nil {
		return nil, err
	}
	opts := []interval.Option{
		interval.WithBackend(b),
		interval.WithObserver(&interval.LoggingObserver{Logger: logger}),
	}
	var tracer *interval.ChannelObserver
	if trace {
		tracer = interval.NewChannelObserver(len(model.Layers))
		opts = append(opts, interval.WithObserver(tracer))
	}
	net, err := interval.FromModel(model, opts...)
	if err != nil {
		return nil, err
	}

	m, ok := interval.ParseMethod(c.Verify.Method)
	if !ok {
		return nil, fmt.Errorf("unknown method %q", c.Verify.Method)
	}

	logger.Info("session ready",
		zap.String("model", c.Model.Path),
		zap.Int("layers", len(model.Layers)),
		zap.Int("samples", data.size()),
		zap.String("backend", b.Name()))
	return &session{model: model, data: data, net: net, method: m, tracer: tracer}, nil
}

func selectBackend(name string) (interval.Backend, error) {
	switch name {
	case "", "cpu":
		return interval.CPUBackend{}, nil
	case "gpu":
		return interval.NewGPUBackend()
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

// nominalAccuracy is the clean accuracy of the model on the batch.
func (s *session) nominalAccuracy() (float64, error) {
	preds, err := s.model.Predict(flatten(s.data), s.data.size())
	if err != nil {
		return 0, err
	}
	correct := 0
	for i, p := range preds {
		if p == s.data.Labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(preds)), nil
}

func flatten(b *batch) []float64 {
	r, c := b.X.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, b.X.RawRowView(i)...)
	}
	return out
}

func (s *session) analyze(eps float64) (*interval.Result, error) {
	return interval.Analyze(s.net, s.data.X, s.model.InputShape, s.data.Labels, eps, s.method)
}

// drainTrace returns the buffered layer events without blocking.
func (s *session) drainTrace() []interval.LayerEvent {
	if s.tracer == nil {
		return nil
	}
	var events []interval.LayerEvent
	for {
		select {
		case e := <-s.tracer.Events:
			events = append(events, e)
		default:
			return events
		}
	}
}

func runVerify(c *config.Config, out io.Writer) error {
	s, err := openSession(c, c.Verify.Trace)
	if err != nil {
		return err
	}

	acc, err := s.nominalAccuracy()
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := s.analyze(c.Verify.Epsilon)
	if err != nil {
		return err
	}

	report := Report{
		RunID:           uuid.New().String(),
		Model:           c.Model.Path,
		Method:          s.method.String(),
		Backend:         s.net.Backend().Name(),
		Epsilon:         c.Verify.Epsilon,
		Samples:         s.data.size(),
		NominalAccuracy: acc,
		Loss:            res.Loss,
		RobustError:     res.RobustError,
		AvgPerLabel:     res.AvgPerLabel,
		Verified:        res.Verified,
		Stats:           res.Stats,
		Elapsed:         time.Since(start).String(),
		Trace:           s.drainTrace(),
	}
	logger.Info("verification finished",
		zap.String("run_id", report.RunID),
		zap.Float64("robust_error", report.RobustError))

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
