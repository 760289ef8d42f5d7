package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openfluke/intervalnet/config"
	"github.com/openfluke/intervalnet/nn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// writeFixtures writes an identity classifier over two inputs and a batch
// of two one-hot samples, returning a config pointing at them.
func writeFixtures(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	model := nn.NewNetwork([]int{2},
		nn.NewDenseLayer([][]float64{{1, 0}, {0, 1}}, []float64{0, 0}),
	)
	modelPath := filepath.Join(dir, "model.json")
	require.NoError(t, model.SaveModel(modelPath, "identity"))

	data, err := json.Marshal(batchFile{
		Inputs: [][]float64{{1, 0}, {0, 1}},
		Labels: []int{0, 1},
	})
	require.NoError(t, err)
	dataPath := filepath.Join(dir, "inputs.json")
	require.NoError(t, os.WriteFile(dataPath, data, 0644))

	c := config.DefaultConfig()
	c.Model.Path = modelPath
	c.Model.ID = "identity"
	c.Data.Path = dataPath
	return c
}

func TestLoadBatch(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0644))
		return p
	}

	t.Run("limit", func(t *testing.T) {
		p := write("ok.json", `{"inputs":[[1,2],[3,4],[5,6]],"labels":[0,1,0]}`)
		b, err := loadBatch(p, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, b.size())
		assert.Equal(t, []int{2}, b.Shape)
		assert.Equal(t, []float64{3, 4}, b.X.RawRowView(1))
	})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", `{"inputs":[],"labels":[]}`, "no inputs"},
		{"label count", `{"inputs":[[1]],"labels":[0,1]}`, "1 inputs but 2 labels"},
		{"shape", `{"inputs":[[1,2]],"labels":[0],"shape":[3]}`, "does not match"},
		{"ragged", `{"inputs":[[1,2],[3]],"labels":[0,1]}`, "input 1 has 1 values"},
		{"not json", `inputs`, "failed to parse inputs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadBatch(write(strings.ReplaceAll(tt.name, " ", "_")+".json", tt.body), 0)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := loadBatch(filepath.Join(dir, "missing.json"), 0)
	assert.Error(t, err)
}

func TestBatchCheckAgainst(t *testing.T) {
	model := nn.NewNetwork([]int{1, 2, 2}, nn.NewFlattenLayer())
	ok := &batch{Shape: []int{4}}
	bad := &batch{Shape: []int{3}}
	assert.NoError(t, ok.checkAgainst(model))
	assert.Error(t, bad.checkAgainst(model))
}

func TestRunVerify(t *testing.T) {
	for _, m := range []string{"naive", "symbolic"} {
		t.Run(m, func(t *testing.T) {
			c := writeFixtures(t)
			c.Verify.Method = m
			c.Verify.Epsilon = 0.2

			var out bytes.Buffer
			require.NoError(t, runVerify(c, &out))

			var report Report
			require.NoError(t, json.Unmarshal(out.Bytes(), &report))
			assert.NotEmpty(t, report.RunID)
			assert.Equal(t, m, report.Method)
			assert.Equal(t, "cpu", report.Backend)
			assert.Equal(t, 2, report.Samples)
			assert.Equal(t, 1.0, report.NominalAccuracy)
			assert.Equal(t, 0.0, report.RobustError)
			assert.Equal(t, []bool{true, true}, report.Verified)
		})
	}
}

func TestRunVerifyLargeRadius(t *testing.T) {
	c := writeFixtures(t)
	c.Verify.Epsilon = 0.6

	var out bytes.Buffer
	require.NoError(t, runVerify(c, &out))

	var report Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	// 0.4 for the true class against 0.6 for the other on both samples
	assert.Equal(t, 1.0, report.RobustError)
	assert.Equal(t, []bool{false, false}, report.Verified)
}

func TestRunVerifyMissingModel(t *testing.T) {
	c := writeFixtures(t)
	c.Model.Path = filepath.Join(t.TempDir(), "nope.json")

	err := runVerify(c, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load model")
}

func TestSweepSortsByRadius(t *testing.T) {
	c := writeFixtures(t)
	s, err := openSession(c, false)
	require.NoError(t, err)

	points, err := sweep(s, []float64{0.6, 0, 0.2}, 2)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, []float64{0, 0.2, 0.6}, []float64{points[0].Epsilon, points[1].Epsilon, points[2].Epsilon})
	assert.Equal(t, 0.0, points[0].RobustError)
	assert.Equal(t, 0.0, points[1].RobustError)
	assert.Equal(t, 1.0, points[2].RobustError)
	assert.LessOrEqual(t, points[0].Loss, points[1].Loss)
	assert.LessOrEqual(t, points[1].Loss, points[2].Loss)
}

func TestRunSweepTable(t *testing.T) {
	c := writeFixtures(t)
	c.Verify.Radii = []float64{0.05, 0.01}

	var out bytes.Buffer
	require.NoError(t, runSweep(c, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "EPSILON"))
	assert.True(t, strings.HasPrefix(lines[1], "0.01 "))
	assert.True(t, strings.HasPrefix(lines[2], "0.05 "))
	assert.Contains(t, lines[1], "symbolic")
}

func TestRunSweepNoRadii(t *testing.T) {
	c := writeFixtures(t)
	c.Verify.Radii = nil
	assert.Error(t, runSweep(c, &bytes.Buffer{}))
}

func TestRunInspect(t *testing.T) {
	c := writeFixtures(t)

	var out bytes.Buffer
	require.NoError(t, runInspect(c, &out))

	var bp nn.ModelTelemetry
	require.NoError(t, json.Unmarshal(out.Bytes(), &bp))
	assert.Equal(t, "identity", bp.ID)
	assert.Equal(t, 1, bp.TotalLayers)
	assert.Equal(t, 6, bp.TotalParams)
}

func TestSelectBackend(t *testing.T) {
	b, err := selectBackend("")
	require.NoError(t, err)
	assert.Equal(t, "cpu", b.Name())

	_, err = selectBackend("tpu")
	assert.Error(t, err)
}

// writeDropoutModel replaces the fixture model with one that carries a
// dropout layer the verifier does not recognize.
func writeDropoutModel(t *testing.T, c *config.Config) {
	t.Helper()
	model := nn.NewNetwork([]int{2},
		nn.NewDenseLayer([][]float64{{1, 0}, {0, 1}}, []float64{0, 0}),
		nn.LayerConfig{Type: nn.LayerUnknown, RawType: "dropout"},
		nn.NewReLULayer(),
	)
	require.NoError(t, model.SaveModel(c.Model.Path, c.Model.ID))
}

func TestRunInspectUnknownLayer(t *testing.T) {
	c := writeFixtures(t)
	writeDropoutModel(t, c)

	var out bytes.Buffer
	require.NoError(t, runInspect(c, &out))

	var bp nn.ModelTelemetry
	require.NoError(t, json.Unmarshal(out.Bytes(), &bp))
	require.Len(t, bp.Layers, 3)
	assert.Equal(t, "dropout", bp.Layers[1].Type)
	assert.False(t, bp.Layers[1].Supported)
	assert.True(t, bp.Layers[2].Supported)
}

func TestRunVerifySkipsUnknownLayer(t *testing.T) {
	c := writeFixtures(t)
	writeDropoutModel(t, c)
	c.Verify.Epsilon = 0.2

	var out bytes.Buffer
	require.NoError(t, runVerify(c, &out))

	var report Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 1.0, report.NominalAccuracy)
	assert.Equal(t, 0.0, report.RobustError)
	// dense and relu only
	assert.Len(t, report.Stats.Layers, 2)
}

func TestRunVerifyTrace(t *testing.T) {
	c := writeFixtures(t)
	writeDropoutModel(t, c)

	var out bytes.Buffer
	require.NoError(t, runVerify(c, &out))
	var plain Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &plain))
	assert.Empty(t, plain.Trace)

	c.Verify.Trace = true
	out.Reset()
	require.NoError(t, runVerify(c, &out))

	var report Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Len(t, report.Trace, 2)
	assert.Equal(t, 0, report.Trace[0].LayerIdx)
	assert.Equal(t, "dense", report.Trace[0].Stats.LayerType)
	assert.Equal(t, 2, report.Trace[1].LayerIdx)
	assert.Equal(t, "relu", report.Trace[1].Stats.LayerType)
	require.NotNil(t, report.Trace[1].ReLU)
	assert.Equal(t, 0, report.Trace[1].ReLU.Ambiguous)
}
