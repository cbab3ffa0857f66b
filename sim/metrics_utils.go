// sim/metrics_utils.go
package sim

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

type IntOrFloat64 interface {
	int | int64 | float64
}

func toSortedFloats[T IntOrFloat64](data []T) []float64 {
	xs := make([]float64, len(data))
	for i, v := range data {
		xs[i] = float64(v)
	}
	sort.Float64s(xs)
	return xs
}

// CalculatePercentile is a util function that calculates the p-th percentile
// (p in [0,100]) of a data list with linear interpolation between order
// statistics. The input is not modified. Returns 0 for empty input.
func CalculatePercentile[T IntOrFloat64](data []T, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	xs := toSortedFloats(data)
	rank := p / 100.0 * float64(len(xs)-1)
	lower := int(rank)
	if lower >= len(xs)-1 {
		return xs[len(xs)-1]
	}
	return xs[lower] + (xs[lower+1]-xs[lower])*(rank-float64(lower))
}

// CalculateMean is a util function that calculates the mean of a data list.
func CalculateMean[T IntOrFloat64](numbers []T) float64 {
	if len(numbers) == 0 {
		return 0.0
	}
	xs := make([]float64, len(numbers))
	for i, v := range numbers {
		xs[i] = float64(v)
	}
	return stat.Mean(xs, nil)
}

// CalculateVariance returns the population variance of a data list.
func CalculateVariance[T IntOrFloat64](numbers []T) float64 {
	if len(numbers) == 0 {
		return 0.0
	}
	xs := make([]float64, len(numbers))
	for i, v := range numbers {
		xs[i] = float64(v)
	}
	_, variance := stat.PopMeanVariance(xs, nil)
	return variance
}
