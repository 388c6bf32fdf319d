// Package stats holds the small descriptive statistics shared by
// validation, preprocessing and training. NaN is treated as missing.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Present returns the non-NaN values of xs
func Present(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// Median returns the median of the present values, averaging the two middle
// values for even counts. ok is false when no value is present.
func Median(xs []float64) (float64, bool) {
	vals := Present(xs)
	if len(vals) == 0 {
		return math.NaN(), false
	}
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2], true
	}
	return (vals[n/2-1] + vals[n/2]) / 2, true
}

// Mode returns the most frequent present value; ties resolve to the smallest
func Mode(xs []float64) (float64, bool) {
	vals := Present(xs)
	if len(vals) == 0 {
		return math.NaN(), false
	}
	sort.Float64s(vals)

	best, bestCount := vals[0], 0
	for i := 0; i < len(vals); {
		j := i
		for j < len(vals) && vals[j] == vals[i] {
			j++
		}
		if j-i > bestCount {
			best, bestCount = vals[i], j-i
		}
		i = j
	}
	return best, true
}

// MeanStd returns the mean and population standard deviation of present values
func MeanStd(xs []float64) (mean, std float64, ok bool) {
	vals := Present(xs)
	if len(vals) == 0 {
		return math.NaN(), math.NaN(), false
	}
	mean, std = stat.PopMeanStdDev(vals, nil)
	return mean, std, true
}

// Mean of xs (all values, NaN propagates)
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return floats.Sum(xs) / float64(len(xs))
}

// Unique returns the sorted distinct present values
func Unique(xs []float64) []float64 {
	vals := Present(xs)
	sort.Float64s(vals)
	out := vals[:0]
	for i, v := range vals {
		if i == 0 || v != vals[i-1] {
			out = append(out, v)
		}
	}
	return out
}
