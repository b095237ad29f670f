// Package agent defines the boundary between the learning core and
// the external trainer that drives it. The trainer owns data
// collection and experiment orchestration; the types here only see
// pre-batched numeric slices and hand back scalar diagnostics.
package agent

import (
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"

	"github.com/rlkit/policygrad/distribution"
)

// Diagnostics holds the scalar diagnostics produced by a single
// update, keyed by name, e.g. "Actor Loss" or "Baseline Loss".
// Invalid values (NaN/Inf) are reported as-is so that the trainer can
// see when upstream data is malformed.
type Diagnostics map[string]float64

// Policy is a learned stochastic mapping from observations to action
// distributions.
//
// All observation, action, and advantage batches are flat row-major
// []float64 slices. The batch size is inferred from the observation
// slice; every other slice must agree with it exactly, and mismatches
// are reported as errors before any parameter is touched.
type Policy interface {
	// Forward evaluates the policy on a batch of observations and
	// returns the induced action distribution as plain values.
	Forward(obs []float64) (distribution.Distribution, error)

	// SampleAction draws a single action for a single observation.
	// The forward pass runs without gradient tracking, so repeated
	// calls during rollout collection never grow a computation graph.
	SampleAction(obs []float64) (*mat.VecDense, error)

	// Update performs one gradient step on the policy parameters
	// using a batch of observations, the actions taken in them, and
	// the per-example advantages.
	Update(obs, actions, advantages []float64) (Diagnostics, error)
}

// Critic is a learned mapping from observations to scalar value
// estimates, trained by regression against target returns.
type Critic interface {
	// Forward returns one value estimate per observation in the batch.
	Forward(obs []float64) ([]float64, error)

	// Update performs one gradient step on the critic parameters,
	// regressing predicted values toward targets.
	Update(obs, targets []float64) (Diagnostics, error)
}

// PolicyUpdateRule builds the surrogate loss that a policy update
// minimizes. It is injected into a policy at construction, so a
// single concrete policy type serves any update rule.
//
// Loss receives the node holding the per-example log probability of
// the taken actions, shape (batch,), and the node holding the
// per-example advantages, shape (batch,). It must return a scalar
// loss node on the same graph.
type PolicyUpdateRule interface {
	Loss(logProb, advantages *G.Node) (*G.Node, error)
}
