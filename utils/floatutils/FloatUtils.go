// Package floatutils provides utilities for working with floats
package floatutils

import "math"

// Ones returns a slice of n float64 values, all equal to 1.
func Ones(n int) []float64 {
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1.0
	}
	return ones
}

// MaxSlice gets the maximum value and the indices of the maximum
// values in a slice of float64.
func MaxSlice(values []float64) (max float64, indices []int) {
	max, indices = values[0], []int{0}

	for i, value := range values {
		if value > max {
			max = value
			indices = []int{i}
		} else if value == max && i != 0 {
			indices = append(indices, i)
		}
	}
	return
}

// Finite returns whether every value in the slice is neither NaN nor
// an infinity.
func Finite(values []float64) bool {
	for _, value := range values {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return false
		}
	}
	return true
}

// Norm returns the Euclidean norm of the concatenation of the
// argument slices.
func Norm(slices ...[]float64) float64 {
	var sum float64
	for _, slice := range slices {
		for _, value := range slice {
			sum += value * value
		}
	}
	return math.Sqrt(sum)
}
