package grading

import "math"

// Round rounds half to even at two decimals.
func Round(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// Accumulator builds a weighted mean. Negative weights are treated as 0.
// A zero weight sum yields 0.
type Accumulator struct {
	weighted float64
	weights  float64
}

// Add contributes value with weight.
func (a *Accumulator) Add(value, weight float64) {
	if weight <= 0 || math.IsNaN(weight) || math.IsNaN(value) {
		return
	}
	a.weighted += value * weight
	a.weights += weight
}

// Mean returns the weighted mean, 0 when no weight was added.
func (a *Accumulator) Mean() float64 {
	if a.weights <= 0 {
		return 0
	}
	return a.weighted / a.weights
}

// WeightedMean is the one-shot form of Accumulator.
func WeightedMean(values, weights []float64) float64 {
	var acc Accumulator
	for i, v := range values {
		if i >= len(weights) {
			break
		}
		acc.Add(v, weights[i])
	}
	return acc.Mean()
}

// IsPassing derives the pass flag from a percentage and threshold.
func IsPassing(percentage, threshold float64) bool {
	return percentage >= threshold
}
