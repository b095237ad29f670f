package policy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlkit/policygrad/backend"
)

func discreteConfig() Config {
	return Config{
		AcDim:        3,
		ObDim:        4,
		Discrete:     true,
		NLayers:      1,
		LayerSize:    8,
		LearningRate: 0.01,
	}
}

func continuousConfig() Config {
	return Config{
		AcDim:        2,
		ObDim:        4,
		Discrete:     false,
		NLayers:      2,
		LayerSize:    8,
		LearningRate: 0.01,
	}
}

func testBackend() backend.Config {
	bc := backend.Default()
	bc.Seed = 42
	return bc
}

func TestConfigValidation(t *testing.T) {
	bad := []Config{
		{AcDim: 0, ObDim: 4, NLayers: 1, LayerSize: 8, LearningRate: 0.01},
		{AcDim: 3, ObDim: -1, NLayers: 1, LayerSize: 8, LearningRate: 0.01},
		{AcDim: 3, ObDim: 4, NLayers: 0, LayerSize: 8, LearningRate: 0.01},
		{AcDim: 3, ObDim: 4, NLayers: 1, LayerSize: 0, LearningRate: 0.01},
		{AcDim: 3, ObDim: 4, NLayers: 1, LayerSize: 8, LearningRate: 0},
	}

	for _, config := range bad {
		_, err := New(config, testBackend())
		assert.Error(t, err)
	}
}

func TestDiscreteSampleActionInRange(t *testing.T) {
	p, err := New(discreteConfig(), testBackend())
	require.NoError(t, err)

	obs := []float64{0.1, -0.2, 0.3, 0.4}
	for i := 0; i < 100; i++ {
		action, err := p.SampleAction(obs)
		require.NoError(t, err)
		require.Equal(t, 1, action.Len())

		index := action.AtVec(0)
		assert.Equal(t, math.Trunc(index), index, "action must be an index")
		assert.GreaterOrEqual(t, index, 0.0)
		assert.Less(t, index, 3.0)
	}
}

func TestContinuousSampleActionLengthAndFinite(t *testing.T) {
	p, err := New(continuousConfig(), testBackend())
	require.NoError(t, err)

	obs := []float64{0.1, -0.2, 0.3, 0.4}
	for i := 0; i < 100; i++ {
		action, err := p.SampleAction(obs)
		require.NoError(t, err)
		require.Equal(t, 2, action.Len())

		for j := 0; j < action.Len(); j++ {
			value := action.AtVec(j)
			assert.False(t, math.IsNaN(value) || math.IsInf(value, 0))
		}
	}
}

func TestSampleActionShapeMismatch(t *testing.T) {
	p, err := New(discreteConfig(), testBackend())
	require.NoError(t, err)

	_, err = p.SampleAction([]float64{0.1, 0.2})
	assert.Error(t, err)
}

func TestForwardDeterministic(t *testing.T) {
	obs := []float64{
		0.1, -0.2, 0.3, 0.4,
		-0.5, 0.6, -0.7, 0.8,
	}

	t.Run("discrete", func(t *testing.T) {
		p, err := New(discreteConfig(), testBackend())
		require.NoError(t, err)

		first, err := p.Forward(obs)
		require.NoError(t, err)
		second, err := p.Forward(obs)
		require.NoError(t, err)

		logProbsFirst, err := first.LogProb([]float64{0, 2})
		require.NoError(t, err)
		logProbsSecond, err := second.LogProb([]float64{0, 2})
		require.NoError(t, err)
		assert.Equal(t, logProbsFirst, logProbsSecond)
	})

	t.Run("continuous", func(t *testing.T) {
		p, err := New(continuousConfig(), testBackend())
		require.NoError(t, err)

		actions := []float64{0.5, -0.5, 0.25, -0.25}
		first, err := p.Forward(obs)
		require.NoError(t, err)
		second, err := p.Forward(obs)
		require.NoError(t, err)

		logProbsFirst, err := first.LogProb(actions)
		require.NoError(t, err)
		logProbsSecond, err := second.LogProb(actions)
		require.NoError(t, err)
		assert.Equal(t, logProbsFirst, logProbsSecond)
	})
}

func TestForwardBatchSizeChanges(t *testing.T) {
	p, err := New(discreteConfig(), testBackend())
	require.NoError(t, err)

	two := []float64{
		0.1, -0.2, 0.3, 0.4,
		-0.5, 0.6, -0.7, 0.8,
	}
	three := append(append([]float64(nil), two...),
		0.9, -1.0, 1.1, -1.2)

	dist, err := p.Forward(two)
	require.NoError(t, err)
	assert.Equal(t, 2, dist.Len())

	dist, err = p.Forward(three)
	require.NoError(t, err)
	assert.Equal(t, 3, dist.Len())

	dist, err = p.Forward(two)
	require.NoError(t, err)
	assert.Equal(t, 2, dist.Len())
}

func TestUpdateMovesParameters(t *testing.T) {
	obs := []float64{
		0.1, -0.2, 0.3, 0.4,
		-0.5, 0.6, -0.7, 0.8,
	}
	advantages := []float64{1.0, -0.5}

	t.Run("discrete", func(t *testing.T) {
		p, err := New(discreteConfig(), testBackend())
		require.NoError(t, err)

		before := p.ParamNorm()
		diagnostics, err := p.Update(obs, []float64{0, 2}, advantages)
		require.NoError(t, err)
		require.Contains(t, diagnostics, "Actor Loss")

		assert.Greater(t, math.Abs(p.ParamNorm()-before), 0.0,
			"update must not be a no-op")
	})

	t.Run("continuous", func(t *testing.T) {
		p, err := New(continuousConfig(), testBackend())
		require.NoError(t, err)

		actions := []float64{0.5, -0.5, 0.25, -0.25}
		before := p.ParamNorm()
		diagnostics, err := p.Update(obs, actions, advantages)
		require.NoError(t, err)
		require.Contains(t, diagnostics, "Actor Loss")

		assert.Greater(t, math.Abs(p.ParamNorm()-before), 0.0,
			"update must not be a no-op")
	})
}

func TestZeroAdvantagesLeaveParametersUnchanged(t *testing.T) {
	p, err := New(discreteConfig(), testBackend())
	require.NoError(t, err)

	obs := []float64{
		0.1, -0.2, 0.3, 0.4,
		-0.5, 0.6, -0.7, 0.8,
	}
	before := p.ParamNorm()

	diagnostics, err := p.Update(obs, []float64{1, 0}, []float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, diagnostics["Actor Loss"])

	assert.InDelta(t, before, p.ParamNorm(), 1e-12,
		"zero advantages must leave parameters unchanged")
}

func TestUpdateShapeMismatchNoMutation(t *testing.T) {
	p, err := New(discreteConfig(), testBackend())
	require.NoError(t, err)

	three := []float64{
		0.1, -0.2, 0.3, 0.4,
		-0.5, 0.6, -0.7, 0.8,
		0.9, -1.0, 1.1, -1.2,
	}
	before := p.ParamNorm()

	// 3 observations vs 2 advantages
	_, err = p.Update(three, []float64{0, 1, 2}, []float64{1.0, 1.0})
	assert.Error(t, err)

	// 3 observations vs 2 actions
	_, err = p.Update(three, []float64{0, 1}, []float64{1.0, 1.0, 1.0})
	assert.Error(t, err)

	// Truncated observation row
	_, err = p.Update(three[:10], []float64{0, 1, 2},
		[]float64{1.0, 1.0, 1.0})
	assert.Error(t, err)

	// Out-of-range discrete action
	_, err = p.Update(three, []float64{0, 1, 7}, []float64{1.0, 1.0, 1.0})
	assert.Error(t, err)

	assert.Equal(t, before, p.ParamNorm(),
		"failed updates must not mutate parameters")
}

func TestUpdateBatchSizeChanges(t *testing.T) {
	p, err := New(discreteConfig(), testBackend())
	require.NoError(t, err)

	two := []float64{
		0.1, -0.2, 0.3, 0.4,
		-0.5, 0.6, -0.7, 0.8,
	}
	three := append(append([]float64(nil), two...),
		0.9, -1.0, 1.1, -1.2)

	_, err = p.Update(two, []float64{0, 1}, []float64{1.0, -1.0})
	require.NoError(t, err)

	_, err = p.Update(three, []float64{0, 1, 2}, []float64{1.0, -1.0, 0.5})
	require.NoError(t, err)

	_, err = p.Update(two, []float64{2, 1}, []float64{-0.5, 0.25})
	require.NoError(t, err)
}

func TestParameterSetsAreExclusive(t *testing.T) {
	discrete, err := New(discreteConfig(), testBackend())
	require.NoError(t, err)
	assert.Nil(t, discrete.LogStd(),
		"discrete policies must not allocate a log std parameter")

	continuous, err := New(continuousConfig(), testBackend())
	require.NoError(t, err)

	logStd := continuous.LogStd()
	require.Len(t, logStd, 2)
	for _, value := range logStd {
		assert.Equal(t, 0.0, value, "std must start at exp(0) = 1")
	}
}
