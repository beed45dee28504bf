package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelation(t *testing.T) {
	tests := []struct {
		name      string
		x         []float64
		y         []float64
		want      float64
		tolerance float64
	}{
		{
			name:      "identical series",
			x:         []float64{0.01, -0.01, 0.02, -0.02},
			y:         []float64{0.01, -0.01, 0.02, -0.02},
			want:      1.0,
			tolerance: 1e-9,
		},
		{
			name:      "perfectly inverse series",
			x:         []float64{0.01, -0.01, 0.02, -0.02},
			y:         []float64{-0.01, 0.01, -0.02, 0.02},
			want:      -1.0,
			tolerance: 1e-9,
		},
		{
			name:      "zero variance series returns zero",
			x:         []float64{0.01, 0.01, 0.01, 0.01},
			y:         []float64{0.01, -0.01, 0.02, -0.02},
			want:      0.0,
			tolerance: 1e-12,
		},
		{
			name:      "mismatched lengths return zero",
			x:         []float64{0.01, 0.02},
			y:         []float64{0.01},
			want:      0.0,
			tolerance: 1e-12,
		},
		{
			name:      "fewer than two samples returns zero",
			x:         []float64{0.01},
			y:         []float64{0.01},
			want:      0.0,
			tolerance: 1e-12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Correlation(tt.x, tt.y)
			assert.InDelta(t, tt.want, got, tt.tolerance)
		})
	}
}

func TestCalculateReturns(t *testing.T) {
	t.Run("drops the first observation", func(t *testing.T) {
		returns := CalculateReturns([]float64{100, 110, 99})
		assert.Len(t, returns, 2)
		assert.InDelta(t, 0.10, returns[0], 1e-9)
		assert.InDelta(t, -0.10, returns[1], 1e-9)
	})

	t.Run("too few prices yields empty slice", func(t *testing.T) {
		assert.Empty(t, CalculateReturns([]float64{100}))
		assert.Empty(t, CalculateReturns(nil))
	})

	t.Run("zero previous price yields zero return", func(t *testing.T) {
		returns := CalculateReturns([]float64{0, 50})
		assert.Equal(t, []float64{0}, returns)
	})
}

func TestMaxDrawdown(t *testing.T) {
	t.Run("monotonic gains have no drawdown", func(t *testing.T) {
		assert.InDelta(t, 0.0, MaxDrawdown([]float64{0.01, 0.02, 0.01}), 1e-12)
	})

	t.Run("single crash", func(t *testing.T) {
		// 1.0 -> 1.1 -> 0.55: drawdown 50% from the 1.1 peak
		assert.InDelta(t, 0.5, MaxDrawdown([]float64{0.10, -0.50}), 1e-9)
	})
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-5, 0, 100))
	assert.Equal(t, 100.0, Clamp(250, 0, 100))
	assert.Equal(t, 42.0, Clamp(42, 0, 100))
}
