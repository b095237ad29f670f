package distribution

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestNewNormalValidation(t *testing.T) {
	source := rand.NewSource(1)

	_, err := NewNormal([]float64{0, 0}, nil, source)
	assert.Error(t, err)

	_, err = NewNormal([]float64{0, 0, 0}, []float64{1, 1}, source)
	assert.Error(t, err)

	_, err = NewNormal([]float64{0, 0}, []float64{1, 0}, source)
	assert.Error(t, err)

	_, err = NewNormal([]float64{0, 0}, []float64{1, -1}, source)
	assert.Error(t, err)
}

func TestNormalSampleShapeAndFinite(t *testing.T) {
	mean := []float64{
		0.5, -0.5,
		1.0, -1.0,
	}
	n, err := NewNormal(mean, []float64{1.0, 0.5}, rand.NewSource(1))
	require.NoError(t, err)
	require.Equal(t, 2, n.Len())

	for i := 0; i < 100; i++ {
		actions := n.Sample()
		require.Len(t, actions, 4)
		for _, value := range actions {
			assert.False(t, math.IsNaN(value) || math.IsInf(value, 0))
		}
	}
}

func TestNormalSampleMean(t *testing.T) {
	// With a small std the sample mean should sit close to μ
	n, err := NewNormal([]float64{3.0}, []float64{0.01}, rand.NewSource(1))
	require.NoError(t, err)

	var sum float64
	const samples = 1000
	for i := 0; i < samples; i++ {
		sum += n.Sample()[0]
	}
	assert.InDelta(t, 3.0, sum/samples, 0.01)
}

func TestNormalLogProb(t *testing.T) {
	// Standard normal density at the mean is -0.5 log(2π) per dimension
	n, err := NewNormal([]float64{0, 0}, []float64{1, 1}, rand.NewSource(1))
	require.NoError(t, err)

	logProbs, err := n.LogProb([]float64{0, 0})
	require.NoError(t, err)
	require.Len(t, logProbs, 1)
	assert.InDelta(t, -math.Log(2*math.Pi), logProbs[0], 1e-12)

	// One standard deviation away in one dimension costs 0.5
	logProbs, err = n.LogProb([]float64{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, -math.Log(2*math.Pi)-0.5, logProbs[0], 1e-12)
}

func TestNormalLogProbErrors(t *testing.T) {
	n, err := NewNormal([]float64{0, 0}, []float64{1, 1}, rand.NewSource(1))
	require.NoError(t, err)

	_, err = n.LogProb([]float64{0})
	assert.Error(t, err)
}
