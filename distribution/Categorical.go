package distribution

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rlkit/policygrad/utils/floatutils"
)

// Categorical is a batch of categorical distributions over a fixed
// number of actions, parameterized by unnormalized log probabilities
// (logits). Row i of the logits describes the distribution induced by
// observation i.
type Categorical struct {
	logits     []float64 // Flat, row-major (batch x numActions)
	numActions int
	source     rand.Source
}

// NewCategorical returns a new batch of categorical distributions
// with the argument logits. The source seeds action sampling.
func NewCategorical(logits []float64, numActions int,
	source rand.Source) (*Categorical, error) {
	if numActions <= 0 {
		return nil, fmt.Errorf("newcategorical: numActions must be "+
			"positive \n\thave(%d)", numActions)
	}
	if len(logits) == 0 || len(logits)%numActions != 0 {
		return nil, fmt.Errorf("newcategorical: logits must hold a "+
			"positive multiple of %d values \n\thave(%d)", numActions,
			len(logits))
	}

	return &Categorical{
		logits:     logits,
		numActions: numActions,
		source:     source,
	}, nil
}

// Len returns the number of distributions in the batch
func (c *Categorical) Len() int {
	return len(c.logits) / c.numActions
}

// NumActions returns the number of actions each distribution covers
func (c *Categorical) NumActions() int {
	return c.numActions
}

// Logits returns the logits of distribution i in the batch
func (c *Categorical) Logits(i int) []float64 {
	return c.logits[i*c.numActions : (i+1)*c.numActions]
}

// Sample draws one action index per distribution in the batch.
func (c *Categorical) Sample() []float64 {
	actions := make([]float64, c.Len())
	for i := range actions {
		sampler := distuv.NewCategorical(c.probs(i), c.source)
		actions[i] = sampler.Rand()
	}
	return actions
}

// Mode returns the highest-probability action per distribution. Ties
// are broken in favour of the lowest action index.
func (c *Categorical) Mode() []float64 {
	actions := make([]float64, c.Len())
	for i := range actions {
		_, indices := floatutils.MaxSlice(c.Logits(i))
		actions[i] = float64(indices[0])
	}
	return actions
}

// LogProb returns the log probability of each action under its
// corresponding distribution. Actions are one index per distribution.
func (c *Categorical) LogProb(actions []float64) ([]float64, error) {
	if len(actions) != c.Len() {
		return nil, fmt.Errorf("logprob: invalid number of actions "+
			"\n\twant(%d) \n\thave(%d)", c.Len(), len(actions))
	}

	logProbs := make([]float64, len(actions))
	for i, action := range actions {
		a := int(action)
		if a < 0 || a >= c.numActions {
			return nil, fmt.Errorf("logprob: action %d out of range "+
				"[0, %d)", a, c.numActions)
		}
		row := c.Logits(i)
		logProbs[i] = row[a] - logSumExp(row)
	}
	return logProbs, nil
}

// probs returns the normalized probabilities of distribution i.
func (c *Categorical) probs(i int) []float64 {
	row := c.Logits(i)
	lse := logSumExp(row)

	probs := make([]float64, len(row))
	for j, logit := range row {
		probs[j] = math.Exp(logit - lse)
	}
	return probs
}

// logSumExp computes log(Σ exp(x)) with the running maximum
// subtracted for numerical stability.
func logSumExp(x []float64) float64 {
	max, _ := floatutils.MaxSlice(x)

	var sum float64
	for _, v := range x {
		sum += math.Exp(v - max)
	}
	return max + math.Log(sum)
}
