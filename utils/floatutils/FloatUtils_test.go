package floatutils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOnes(t *testing.T) {
	assert.Equal(t, []float64{1, 1, 1}, Ones(3))
	assert.Len(t, Ones(0), 0)
}

func TestMaxSlice(t *testing.T) {
	max, indices := MaxSlice([]float64{1, 3, 2})
	assert.Equal(t, 3.0, max)
	assert.Equal(t, []int{1}, indices)

	// Ties report every index
	max, indices = MaxSlice([]float64{5, 1, 5})
	assert.Equal(t, 5.0, max)
	assert.Equal(t, []int{0, 2}, indices)
}

func TestFinite(t *testing.T) {
	assert.True(t, Finite([]float64{0, -1, 2.5}))
	assert.False(t, Finite([]float64{0, math.NaN()}))
	assert.False(t, Finite([]float64{math.Inf(1)}))
	assert.False(t, Finite([]float64{math.Inf(-1)}))
}

func TestNorm(t *testing.T) {
	assert.Equal(t, 5.0, Norm([]float64{3}, []float64{4}))
	assert.Equal(t, 0.0, Norm())
	assert.Equal(t, 13.0, Norm([]float64{3, 4}, []float64{12}))
}
