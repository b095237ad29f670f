package critic

import (
	"fmt"

	"github.com/rlkit/policygrad/initwfn"
	"github.com/rlkit/policygrad/solver"
)

// Config describes a Critic.
type Config struct {
	// ObDim is the observation vector dimensionality.
	ObDim int

	// NLayers hidden layers of LayerSize units each parameterize the
	// value network.
	NLayers   int
	LayerSize int

	// LearningRate of the default Adam solver. Ignored when Solver is
	// set.
	LearningRate float64

	// InitWFn is the weight initialization scheme. Defaults to Glorot
	// uniform with gain 1.
	InitWFn *initwfn.InitWFn

	// Solver performs the gradient step. Defaults to Adam with
	// default hyperparameters at LearningRate.
	Solver *solver.Solver
}

// Validate checks the Config for configuration errors. Configuration
// errors are non-recoverable: a Config that fails validation can
// never construct a Critic.
func (c Config) Validate() error {
	if c.ObDim <= 0 {
		return fmt.Errorf("validate: observation dimension must be "+
			"positive \n\thave(%d)", c.ObDim)
	}
	if c.NLayers <= 0 {
		return fmt.Errorf("validate: number of hidden layers must be "+
			"positive \n\thave(%d)", c.NLayers)
	}
	if c.LayerSize <= 0 {
		return fmt.Errorf("validate: hidden layer size must be positive "+
			"\n\thave(%d)", c.LayerSize)
	}
	if c.Solver == nil && c.LearningRate <= 0 {
		return fmt.Errorf("validate: learning rate must be positive "+
			"\n\thave(%v)", c.LearningRate)
	}
	return nil
}
