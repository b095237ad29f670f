// Package distribution implements the plain-valued action
// distributions that a policy's forward pass induces. A Distribution
// is a transient snapshot of distribution parameters for a batch of
// observations; it holds no computation graph, so it can be sampled
// freely during rollout collection without accumulating gradient
// history. The differentiable log-density used for learning lives in
// the policy's update graph, over the same underlying parameters.
package distribution

// Distribution is a batch of per-observation action distributions.
type Distribution interface {
	// Len returns the number of per-observation distributions in the
	// batch.
	Len() int

	// Sample draws one action per distribution in the batch and
	// returns them as a flat, row-major slice.
	Sample() []float64

	// LogProb returns the log probability (or log density) of the
	// argument actions, one value per distribution in the batch. The
	// actions follow the same flat, row-major convention as Sample.
	LogProb(actions []float64) ([]float64, error)
}
