package policy

import (
	G "gorgonia.org/gorgonia"

	"github.com/rlkit/policygrad/agent"
)

// VanillaPG implements the vanilla policy-gradient surrogate loss:
// the negative mean over the batch of the log probability of each
// taken action weighted by that example's advantage. The gradient of
// this loss ascends expected return.
type VanillaPG struct{}

// NewVanillaPG returns the vanilla policy-gradient update rule.
func NewVanillaPG() agent.PolicyUpdateRule {
	return VanillaPG{}
}

// Loss adds the surrogate loss -mean(logProb ⊙ advantages) to the
// graph of logProb and advantages. Both arguments hold one value per
// example, so each example contributes the product of a single
// advantage scalar and its total log probability.
func (VanillaPG) Loss(logProb, advantages *G.Node) (*G.Node, error) {
	loss, err := G.HadamardProd(logProb, advantages)
	if err != nil {
		return nil, err
	}
	if loss, err = G.Mean(loss); err != nil {
		return nil, err
	}
	return G.Neg(loss)
}
