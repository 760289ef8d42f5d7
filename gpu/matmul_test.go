package gpu

import (
	"math"
	"testing"
)

func TestMatMulTransRejectsBadLengths(t *testing.T) {
	if _, err := MatMulTrans([]float32{1, 2, 3}, 2, 2, []float32{1, 2}, 1); err == nil {
		t.Error("expected error for short lhs")
	}
}

// TestMatMulTransEmpty needs no device: empty products return early
func TestMatMulTransEmpty(t *testing.T) {
	out, err := MatMulTrans(nil, 0, 3, []float32{1, 2, 3}, 1)
	if err != nil {
		t.Fatalf("MatMulTrans failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("Expected empty result, got %v", out)
	}
}

func TestMatMulTransMatchesCPU(t *testing.T) {
	if err := EnsureGPU(); err != nil {
		t.Skipf("no GPU available: %v", err)
	}

	// a: 3x2, b: 4x2
	a := []float32{1, 2, -1, 0.5, 3, -2}
	b := []float32{1, 0, 0, 1, 1, 1, 2, -1}
	rows, inner, cols := 3, 2, 4

	got, err := MatMulTrans(a, rows, inner, b, cols)
	if err != nil {
		t.Fatalf("MatMulTrans failed: %v", err)
	}
	if len(got) != rows*cols {
		t.Fatalf("Expected %d values, got %d", rows*cols, len(got))
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			var want float32
			for i := 0; i < inner; i++ {
				want += a[r*inner+i] * b[c*inner+i]
			}
			if math.Abs(float64(got[r*cols+c]-want)) > 1e-5 {
				t.Errorf("out[%d][%d] = %v, expected %v", r, c, got[r*cols+c], want)
			}
		}
	}

	// a second call builds and releases its own buffers
	again, err := MatMulTrans(a, rows, inner, b, cols)
	if err != nil {
		t.Fatalf("second MatMulTrans failed: %v", err)
	}
	for i := range got {
		if again[i] != got[i] {
			t.Fatalf("second call differs at %d: %v vs %v", i, again[i], got[i])
		}
	}
}
