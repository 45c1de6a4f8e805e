package ml

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// minScale stands in for a zero standard deviation so constant columns
// standardize to zero instead of dividing by zero.
const minScale = 1e-8

func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// mode returns the most frequent value; ties go to the lexically smallest.
func mode(values []string) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	best, bestCount := "", -1
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best, true
}

// meanVariance returns the population mean and variance.
func meanVariance(values []float64) (float64, float64) {
	return stat.PopMeanVariance(values, nil)
}

func standardize(value, mean, variance float64) float64 {
	scale := math.Sqrt(variance)
	if scale < minScale {
		scale = 1
	}
	return (value - mean) / scale
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
