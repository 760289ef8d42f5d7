package interval

import (
	"github.com/openfluke/intervalnet/nn"
	"gonum.org/v1/gonum/mat"
)

// affineMap is the linear part of a Dense or Conv layer applied to a stack
// of row vectors, one flattened per-sample activation per row.
type affineMap interface {
	name() string
	inShape() []int
	outShape() []int
	// apply maps every row through the layer; the bias is added only when
	// withBias is set.
	apply(rows *mat.Dense, withBias bool) (*mat.Dense, error)
	// applyAbs maps every row through |W| without bias.
	applyAbs(rows *mat.Dense) (*mat.Dense, error)
}

type denseMap struct {
	cfg     *nn.LayerConfig
	w, absW *mat.Dense
	backend Backend
}

func newDenseMap(cfg *nn.LayerConfig, backend Backend) *denseMap {
	w := mat.NewDense(cfg.OutputSize, cfg.InputSize, cfg.Kernel)
	return &denseMap{cfg: cfg, w: w, absW: absDense(w), backend: backend}
}

func (m *denseMap) name() string    { return "dense" }
func (m *denseMap) inShape() []int  { return []int{m.cfg.InputSize} }
func (m *denseMap) outShape() []int { return []int{m.cfg.OutputSize} }

func (m *denseMap) apply(rows *mat.Dense, withBias bool) (*mat.Dense, error) {
	res, err := m.backend.MulTrans(rows, m.w)
	if err != nil {
		return nil, err
	}
	if withBias && m.cfg.Bias != nil {
		r, _ := res.Dims()
		for i := 0; i < r; i++ {
			row := res.RawRowView(i)
			for j, b := range m.cfg.Bias {
				row[j] += b
			}
		}
	}
	return res, nil
}

func (m *denseMap) applyAbs(rows *mat.Dense) (*mat.Dense, error) {
	return m.backend.MulTrans(rows, m.absW)
}

type convMap struct {
	cfg       *nn.LayerConfig
	absKernel []float64
}

func newConvMap(cfg *nn.LayerConfig) *convMap {
	return &convMap{cfg: cfg, absKernel: nn.AbsKernel(cfg.Kernel)}
}

func (m *convMap) name() string { return "conv2d" }

func (m *convMap) inShape() []int {
	return []int{m.cfg.InputChannels, m.cfg.InputHeight, m.cfg.InputWidth}
}

func (m *convMap) outShape() []int {
	return []int{m.cfg.Filters, m.cfg.OutputHeight, m.cfg.OutputWidth}
}

func (m *convMap) apply(rows *mat.Dense, withBias bool) (*mat.Dense, error) {
	var bias []float64
	if withBias {
		bias = m.cfg.Bias
	}
	return m.run(rows, m.cfg.Kernel, bias), nil
}

func (m *convMap) applyAbs(rows *mat.Dense) (*mat.Dense, error) {
	return m.run(rows, m.absKernel, nil), nil
}

func (m *convMap) run(rows *mat.Dense, kernel, bias []float64) *mat.Dense {
	r, _ := rows.Dims()
	out := nn.Conv2DLinear(rawData(rows), kernel, bias, m.cfg, r)
	return mat.NewDense(r, nn.ShapeSize(m.outShape()), out)
}
