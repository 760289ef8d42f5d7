package interval

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Result is the outcome of one verification call.
type Result struct {
	Method  Method  `json:"method"`
	Epsilon float64 `json:"epsilon"`

	// Loss is the mean cross-entropy of the worst-case logits.
	Loss float64 `json:"loss"`
	// RobustError is the fraction of samples whose worst-case argmax is not
	// the true label.
	RobustError float64 `json:"robust_error"`
	// AvgPerLabel is the mean worst-case logit over samples and classes.
	AvgPerLabel float64 `json:"avg_per_label"`

	WorstCase *mat.Dense `json:"-"`
	Verified  []bool     `json:"verified"`
	Stats     RunStats   `json:"stats"`
}

// InputBall returns [x-eps, x+eps] clamped to the value range of the whole
// batch, [min(x), max(x)].
func InputBall(x *mat.Dense, eps float64) (lower, upper *mat.Dense) {
	data := rawData(x)
	lo, hi := floats.Min(data), floats.Max(data)
	clamp := func(v float64) float64 { return math.Min(math.Max(v, lo), hi) }

	lower = mat.DenseCopyOf(x)
	upper = mat.DenseCopyOf(x)
	lower.Apply(func(_, _ int, v float64) float64 { return clamp(v - eps) }, lower)
	upper.Apply(func(_, _ int, v float64) float64 { return clamp(v + eps) }, upper)
	return lower, upper
}

// NewDomain builds the initial domain of the given method over the box
// [lower, upper].
func NewDomain(method Method, lower, upper *mat.Dense, shape []int) (Domain, error) {
	switch method {
	case MethodNaive:
		return NewBox(lower, upper, shape)
	case MethodSymbolic:
		return NewSymbolic(lower, upper, shape)
	default:
		return nil, fmt.Errorf("unknown method %d", method)
	}
}

// Analyze propagates the eps-ball around every row of x through net and
// scores the worst-case logits against labels. shape is the per-sample
// input shape.
func Analyze(net *Network, x *mat.Dense, shape []int, labels []int, eps float64, method Method) (*Result, error) {
	if x == nil || x.IsEmpty() {
		return nil, ErrEmptyBatch
	}
	lower, upper := InputBall(x, eps)
	d, err := NewDomain(method, lower, upper, shape)
	if err != nil {
		return nil, err
	}

	d, stats, err := net.Trace(d)
	if err != nil {
		return nil, err
	}

	wc, err := d.WorstCase(labels)
	if err != nil {
		return nil, err
	}

	res := score(wc, labels)
	res.Method = method
	res.Epsilon = eps
	res.Stats = stats

	logger.Info("analysis complete",
		zap.Stringer("method", method),
		zap.Float64("epsilon", eps),
		zap.Int("batch", len(labels)),
		zap.Float64("loss", res.Loss),
		zap.Float64("robust_error", res.RobustError),
		zap.Int("error_rows", stats.ErrorRows))
	return res, nil
}

// NaiveAnalyze is Analyze with Box intervals.
func NaiveAnalyze(net *Network, x *mat.Dense, shape []int, labels []int, eps float64) (*Result, error) {
	return Analyze(net, x, shape, labels, eps, MethodNaive)
}

// SymbolicAnalyze is Analyze with Symbolic intervals.
func SymbolicAnalyze(net *Network, x *mat.Dense, shape []int, labels []int, eps float64) (*Result, error) {
	return Analyze(net, x, shape, labels, eps, MethodSymbolic)
}

// score computes the cross-entropy loss and robust error of worst-case
// logits. labels are already range-checked by WorstCase.
func score(wc *mat.Dense, labels []int) *Result {
	r, c := wc.Dims()
	res := &Result{WorstCase: wc, Verified: make([]bool, r)}

	var loss, total float64
	wrong := 0
	for b := 0; b < r; b++ {
		row := wc.RawRowView(b)
		loss += floats.LogSumExp(row) - row[labels[b]]
		total += floats.Sum(row)
		res.Verified[b] = floats.MaxIdx(row) == labels[b]
		if !res.Verified[b] {
			wrong++
		}
	}

	res.Loss = loss / float64(r)
	res.RobustError = float64(wrong) / float64(r)
	res.AvgPerLabel = total / float64(r*c)
	return res
}
