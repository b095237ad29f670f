package distribution

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestNewCategoricalValidation(t *testing.T) {
	source := rand.NewSource(1)

	_, err := NewCategorical(nil, 3, source)
	assert.Error(t, err)

	_, err = NewCategorical([]float64{1, 2}, 3, source)
	assert.Error(t, err)

	_, err = NewCategorical([]float64{1, 2, 3}, 0, source)
	assert.Error(t, err)
}

func TestCategoricalSampleInRange(t *testing.T) {
	logits := []float64{
		0.5, -1.0, 2.0,
		-0.25, 0.0, 0.25,
	}
	c, err := NewCategorical(logits, 3, rand.NewSource(1))
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	for i := 0; i < 100; i++ {
		actions := c.Sample()
		require.Len(t, actions, 2)
		for _, action := range actions {
			assert.Equal(t, math.Trunc(action), action)
			assert.GreaterOrEqual(t, action, 0.0)
			assert.Less(t, action, 3.0)
		}
	}
}

func TestCategoricalMode(t *testing.T) {
	logits := []float64{
		0.5, -1.0, 2.0,
		3.0, 0.0, 0.25,
	}
	c, err := NewCategorical(logits, 3, rand.NewSource(1))
	require.NoError(t, err)

	assert.Equal(t, []float64{2, 0}, c.Mode())
}

func TestCategoricalLogProb(t *testing.T) {
	// Equal logits make every action equally likely
	c, err := NewCategorical([]float64{1, 1, 1, 1}, 4, rand.NewSource(1))
	require.NoError(t, err)

	logProbs, err := c.LogProb([]float64{2})
	require.NoError(t, err)
	require.Len(t, logProbs, 1)
	assert.InDelta(t, math.Log(0.25), logProbs[0], 1e-12)

	// Shifting all logits by a constant leaves probabilities unchanged
	shifted, err := NewCategorical([]float64{0.5, -1.0, 2.0}, 3,
		rand.NewSource(1))
	require.NoError(t, err)
	base, err := shifted.LogProb([]float64{2})
	require.NoError(t, err)

	shifted, err = NewCategorical([]float64{100.5, 99.0, 102.0}, 3,
		rand.NewSource(1))
	require.NoError(t, err)
	moved, err := shifted.LogProb([]float64{2})
	require.NoError(t, err)

	assert.InDelta(t, base[0], moved[0], 1e-9)
}

func TestCategoricalLogProbErrors(t *testing.T) {
	c, err := NewCategorical([]float64{1, 2, 3}, 3, rand.NewSource(1))
	require.NoError(t, err)

	_, err = c.LogProb([]float64{0, 1})
	assert.Error(t, err)

	_, err = c.LogProb([]float64{3})
	assert.Error(t, err)

	_, err = c.LogProb([]float64{-1})
	assert.Error(t, err)
}
