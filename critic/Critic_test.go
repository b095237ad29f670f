package critic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlkit/policygrad/backend"
	"github.com/rlkit/policygrad/initwfn"
	"github.com/rlkit/policygrad/solver"
)

func testConfig() Config {
	return Config{
		ObDim:        1,
		NLayers:      1,
		LayerSize:    8,
		LearningRate: 0.1,
	}
}

func testBackend() backend.Config {
	bc := backend.Default()
	bc.Seed = 42
	return bc
}

func TestConfigValidation(t *testing.T) {
	bad := []Config{
		{ObDim: 0, NLayers: 1, LayerSize: 8, LearningRate: 0.1},
		{ObDim: 1, NLayers: 0, LayerSize: 8, LearningRate: 0.1},
		{ObDim: 1, NLayers: 1, LayerSize: -8, LearningRate: 0.1},
		{ObDim: 1, NLayers: 1, LayerSize: 8, LearningRate: 0},
	}

	for _, config := range bad {
		_, err := New(config, testBackend())
		assert.Error(t, err)
	}
}

func TestForwardLengthAndDeterminism(t *testing.T) {
	c, err := New(testConfig(), testBackend())
	require.NoError(t, err)

	obs := []float64{1.0, 2.0, 3.0}

	first, err := c.Forward(obs)
	require.NoError(t, err)
	require.Len(t, first, 3)

	second, err := c.Forward(obs)
	require.NoError(t, err)
	assert.Equal(t, first, second,
		"forward must be deterministic for fixed parameters")
}

func TestForwardBatchSizeChanges(t *testing.T) {
	c, err := New(testConfig(), testBackend())
	require.NoError(t, err)

	values, err := c.Forward([]float64{1.0, 2.0})
	require.NoError(t, err)
	assert.Len(t, values, 2)

	values, err = c.Forward([]float64{1.0, 2.0, 3.0})
	require.NoError(t, err)
	assert.Len(t, values, 3)

	values, err = c.Forward([]float64{1.0})
	require.NoError(t, err)
	assert.Len(t, values, 1)
}

func TestUpdateDecreasesLoss(t *testing.T) {
	c, err := New(testConfig(), testBackend())
	require.NoError(t, err)

	obs := []float64{1.0, 2.0}
	targets := []float64{1.0, 2.0}

	diagnostics, err := c.Update(obs, targets)
	require.NoError(t, err)
	initial := diagnostics["Baseline Loss"]
	require.False(t, math.IsNaN(initial))

	var final float64
	for i := 0; i < 50; i++ {
		diagnostics, err = c.Update(obs, targets)
		require.NoError(t, err)
		final = diagnostics["Baseline Loss"]
	}

	assert.Less(t, final, initial,
		"repeated regression on a fixed batch must reduce the loss")
}

func TestUpdateMovesParameters(t *testing.T) {
	c, err := New(testConfig(), testBackend())
	require.NoError(t, err)

	before := c.ParamNorm()
	diagnostics, err := c.Update([]float64{1.0, 2.0}, []float64{1.0, 2.0})
	require.NoError(t, err)
	require.Contains(t, diagnostics, "Baseline Loss")

	assert.Greater(t, math.Abs(c.ParamNorm()-before), 0.0,
		"update must not be a no-op")
}

func TestUpdateShapeMismatchNoMutation(t *testing.T) {
	c, err := New(testConfig(), testBackend())
	require.NoError(t, err)

	before := c.ParamNorm()

	// 3 observations vs 2 targets
	_, err = c.Update([]float64{1.0, 2.0, 3.0}, []float64{1.0, 2.0})
	assert.Error(t, err)

	// Empty batch
	_, err = c.Update(nil, nil)
	assert.Error(t, err)

	assert.Equal(t, before, c.ParamNorm(),
		"failed updates must not mutate parameters")
}

func TestUpdateWithVanillaSolver(t *testing.T) {
	slv, err := solver.NewVanilla(0.1, 0)
	require.NoError(t, err)
	init, err := initwfn.NewGlorotN(1.0)
	require.NoError(t, err)

	config := testConfig()
	config.Solver = slv
	config.InitWFn = init

	c, err := New(config, testBackend())
	require.NoError(t, err)

	obs := []float64{1.0, 2.0}
	targets := []float64{1.0, 2.0}

	diagnostics, err := c.Update(obs, targets)
	require.NoError(t, err)
	initial := diagnostics["Baseline Loss"]

	var final float64
	for i := 0; i < 50; i++ {
		diagnostics, err = c.Update(obs, targets)
		require.NoError(t, err)
		final = diagnostics["Baseline Loss"]
	}

	assert.Less(t, final, initial)
}

func TestUpdateBatchSizeChanges(t *testing.T) {
	c, err := New(testConfig(), testBackend())
	require.NoError(t, err)

	_, err = c.Update([]float64{1.0, 2.0}, []float64{1.0, 2.0})
	require.NoError(t, err)

	_, err = c.Update([]float64{1.0, 2.0, 3.0}, []float64{1.0, 2.0, 3.0})
	require.NoError(t, err)

	_, err = c.Update([]float64{1.0}, []float64{1.0})
	require.NoError(t, err)
}
