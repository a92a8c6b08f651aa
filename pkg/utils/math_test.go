package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	v := []float32{3, 4}
	NormalizeL2(v)
	if math.Abs(L2Norm(v)-1) > 1e-6 {
		t.Errorf("norm after normalize = %f", L2Norm(v))
	}
	zero := []float32{0, 0}
	NormalizeL2(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}

func TestL2Norm(t *testing.T) {
	if got := L2Norm([]float32{3, 4}); got != 5 {
		t.Errorf("L2Norm = %f, want 5", got)
	}
	if got := L2Norm(nil); got != 0 {
		t.Errorf("L2Norm(nil) = %f", got)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float32
		want    float64
		wantNaN bool
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1, false},
		{"scaled", []float32{1, 0}, []float32{5, 0}, 1, false},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0, false},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1, false},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0, true},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0, true},
		{"empty", nil, nil, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if tt.wantNaN {
				if !math.IsNaN(got) {
					t.Errorf("got %f, want NaN", got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}
}
