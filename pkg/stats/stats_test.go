package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
		p    float64
		want float64
	}{
		{"median odd", []float64{3, 1, 2}, 50, 2},
		{"median even", []float64{4, 1, 3, 2}, 50, 2.5},
		{"lower quartile", []float64{1, 2, 3, 4, 5}, 25, 2},
		{"interpolated", []float64{0, 10}, 1, 0.1},
		{"zero is min", []float64{5, -1, 3}, 0, -1},
		{"hundred is max", []float64{5, -1, 3}, 100, 5},
		{"skips NaN", []float64{math.NaN(), 1, 3}, 50, 2},
		{"single value", []float64{7}, 99, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Percentile(tt.x, tt.p), 1e-12)
		})
	}
}

func TestPercentile_Empty(t *testing.T) {
	assert.True(t, math.IsNaN(Percentile(nil, 50)))
	assert.True(t, math.IsNaN(Median([]float64{math.NaN()})))
}

func TestPercentile_DoesNotModifyInput(t *testing.T) {
	x := []float64{3, 1, 2}
	Percentile(x, 50)
	assert.Equal(t, []float64{3, 1, 2}, x)
}

func TestQuantile(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.InDelta(t, 6.4, Quantile(x, 0.6), 1e-12)
	assert.InDelta(t, 8.65, Quantile(x, 0.85), 1e-12)
}

func TestMinMax(t *testing.T) {
	lo, hi := MinMax([]float64{2, math.NaN(), -3, 8})
	assert.Equal(t, -3.0, lo)
	assert.Equal(t, 8.0, hi)

	lo, hi = MinMax(nil)
	assert.True(t, math.IsNaN(lo))
	assert.True(t, math.IsNaN(hi))
}

func TestMeanStd(t *testing.T) {
	mean, std := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, mean, 1e-12)
	assert.InDelta(t, 2.0, std, 1e-12)

	mean, std = MeanStd([]float64{1, math.NaN(), 3})
	assert.InDelta(t, 2.0, mean, 1e-12)
	assert.InDelta(t, 1.0, std, 1e-12)
}

func TestCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.0, Correlation(x, []float64{2, 4, 6, 8}), 1e-12)
	assert.InDelta(t, -1.0, Correlation(x, []float64{4, 3, 2, 1}), 1e-12)
}

func TestCorrelation_Degenerate(t *testing.T) {
	assert.True(t, math.IsNaN(Correlation([]float64{1, 2, 3}, []float64{5, 5, 5})))
	assert.True(t, math.IsNaN(Correlation([]float64{1}, []float64{2})))
	assert.True(t, math.IsNaN(Correlation([]float64{1, 2}, []float64{1})))
}

func TestCorrelation_PairwiseComplete(t *testing.T) {
	x := []float64{1, 2, math.NaN(), 4}
	y := []float64{2, 4, 100, 8}
	assert.InDelta(t, 1.0, Correlation(x, y), 1e-12)
}

func TestMode(t *testing.T) {
	m, ok := Mode([]string{"b", "a", "b", "c"})
	assert.True(t, ok)
	assert.Equal(t, "b", m)

	m, ok = Mode([]string{"z", "y", "y", "z"})
	assert.True(t, ok)
	assert.Equal(t, "y", m)

	_, ok = Mode(nil)
	assert.False(t, ok)
}
