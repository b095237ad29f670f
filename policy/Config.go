package policy

import (
	"fmt"

	"github.com/rlkit/policygrad/agent"
	"github.com/rlkit/policygrad/initwfn"
	"github.com/rlkit/policygrad/solver"
)

// Config describes a Policy. The dimensions and the Discrete flag are
// immutable once the Policy is constructed; Discrete determines which
// parameter set exists (logits network, or mean network plus learned
// log standard deviation) for the lifetime of the component.
type Config struct {
	// AcDim is the number of discrete actions when Discrete, or the
	// action vector dimensionality otherwise.
	AcDim int

	// ObDim is the observation vector dimensionality.
	ObDim int

	// Discrete selects a categorical policy over AcDim actions. When
	// false, the policy is a diagonal Gaussian over AcDim-dimensional
	// action vectors.
	Discrete bool

	// NLayers hidden layers of LayerSize units each parameterize the
	// policy network.
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

	// UpdateRule builds the surrogate loss minimized by Update.
	// Defaults to the vanilla policy-gradient rule.
	UpdateRule agent.PolicyUpdateRule
}

// Validate checks the Config for configuration errors. Configuration
// errors are non-recoverable: a Config that fails validation can
// never construct a Policy.
func (c Config) Validate() error {
	if c.AcDim <= 0 {
		return fmt.Errorf("validate: action dimension must be positive "+
			"\n\thave(%d)", c.AcDim)
	}
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
