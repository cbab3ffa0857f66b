package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculatePercentile(t *testing.T) {
	data := []float64{5, 1, 4, 2, 3}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{50, 3},
		{25, 2},
		{90, 4.6},
		{100, 5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, CalculatePercentile(data, tt.p), 1e-12, "p=%v", tt.p)
	}
	// input untouched
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, data)
}

func TestCalculatePercentile_EdgeCases(t *testing.T) {
	assert.Equal(t, 0.0, CalculatePercentile([]float64{}, 95))
	assert.Equal(t, 7.0, CalculatePercentile([]int{7}, 95))
	assert.Equal(t, 2.5, CalculatePercentile([]int64{2, 3}, 50))
}

func TestCalculateMean(t *testing.T) {
	assert.Equal(t, 0.0, CalculateMean([]int{}))
	assert.Equal(t, 2.5, CalculateMean([]int{1, 2, 3, 4}))
	assert.InDelta(t, 0.2, CalculateMean([]float64{0.1, 0.3}), 1e-12)
}

func TestCalculateVariance(t *testing.T) {
	assert.Equal(t, 0.0, CalculateVariance([]float64{}))
	assert.Equal(t, 0.0, CalculateVariance([]int{3, 3, 3}))
	// population variance of {1,2,3,4} = 1.25
	assert.InDelta(t, 1.25, CalculateVariance([]int{1, 2, 3, 4}), 1e-12)
}
