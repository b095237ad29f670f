package distribution

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/rlkit/policygrad/utils/floatutils"
)

// Normal is a batch of diagonal Gaussian distributions over
// continuous action vectors. Row i of the means describes the
// distribution induced by observation i; the standard deviation
// vector is shared by every distribution in the batch.
type Normal struct {
	mean   []float64 // Flat, row-major (batch x dims)
	std    []float64 // Length dims, shared across the batch
	dims   int
	normal distmv.Rander // Standard normal for sampling
}

// NewNormal returns a new batch of diagonal Gaussian distributions
// with the argument means and shared standard deviation. The source
// seeds action sampling.
func NewNormal(mean, std []float64, source rand.Source) (*Normal, error) {
	dims := len(std)
	if dims == 0 {
		return nil, fmt.Errorf("newnormal: std must be non-empty")
	}
	if len(mean) == 0 || len(mean)%dims != 0 {
		return nil, fmt.Errorf("newnormal: mean must hold a positive "+
			"multiple of %d values \n\thave(%d)", dims, len(mean))
	}
	for i, s := range std {
		if s <= 0 {
			return nil, fmt.Errorf("newnormal: std must be positive "+
				"\n\thave(%v at dimension %d)", s, i)
		}
	}

	// Standard normal used with the reparameterization
	// action := μ + σ ⊙ ε, ε ~ N(0, I)
	zeros := make([]float64, dims)
	eye := mat.NewDiagDense(dims, floatutils.Ones(dims))
	normal, ok := distmv.NewNormal(zeros, eye, source)
	if !ok {
		return nil, fmt.Errorf("newnormal: could not create standard " +
			"normal for action sampling")
	}

	return &Normal{
		mean:   mean,
		std:    std,
		dims:   dims,
		normal: normal,
	}, nil
}

// Len returns the number of distributions in the batch
func (n *Normal) Len() int {
	return len(n.mean) / n.dims
}

// Dims returns the action dimensionality
func (n *Normal) Dims() int {
	return n.dims
}

// Mean returns the mean of distribution i in the batch
func (n *Normal) Mean(i int) []float64 {
	return n.mean[i*n.dims : (i+1)*n.dims]
}

// Std returns the standard deviation shared by the batch
func (n *Normal) Std() []float64 {
	return n.std
}

// Sample draws one action vector per distribution in the batch,
// returned as a flat, row-major slice.
func (n *Normal) Sample() []float64 {
	actions := make([]float64, 0, len(n.mean))
	for i := 0; i < n.Len(); i++ {
		eps := n.normal.Rand(nil)
		mean := n.Mean(i)
		for j := range eps {
			actions = append(actions, mean[j]+n.std[j]*eps[j])
		}
	}
	return actions
}

// LogProb returns the joint log density of each action vector under
// its corresponding distribution: the per-dimension Gaussian log
// densities summed across action dimensions.
func (n *Normal) LogProb(actions []float64) ([]float64, error) {
	if len(actions) != len(n.mean) {
		return nil, fmt.Errorf("logprob: invalid number of action values "+
			"\n\twant(%d) \n\thave(%d)", len(n.mean), len(actions))
	}

	logProbs := make([]float64, n.Len())
	for i := range logProbs {
		mean := n.Mean(i)
		row := actions[i*n.dims : (i+1)*n.dims]

		var sum float64
		for j := range row {
			z := (row[j] - mean[j]) / n.std[j]
			sum += -0.5*z*z - math.Log(n.std[j]) - 0.5*math.Log(2*math.Pi)
		}
		logProbs[i] = sum
	}
	return logProbs, nil
}
