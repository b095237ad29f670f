// Package policy implements a stochastic policy over discrete or
// continuous actions, parameterized by a feed-forward neural network
// and trained with policy-gradient updates through Gorgonia.
package policy

import (
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/rlkit/policygrad/agent"
	"github.com/rlkit/policygrad/backend"
	"github.com/rlkit/policygrad/distribution"
	"github.com/rlkit/policygrad/initwfn"
	"github.com/rlkit/policygrad/network"
	"github.com/rlkit/policygrad/solver"
	"github.com/rlkit/policygrad/utils/floatutils"
)

// Policy maps observations to action distributions: categorical over
// AcDim actions when discrete, or diagonal Gaussian over
// AcDim-dimensional action vectors otherwise. In the Gaussian case
// the mean is predicted by the network while the log standard
// deviation is a free learned vector, shared across all observations
// and initialized to zeroes so that the standard deviation starts at
// exp(0) = 1.
//
// The canonical weights live on a batch-1 graph used for action
// sampling. Update lazily maintains a second graph sized to the
// incoming batch that computes the surrogate loss and its gradient;
// weights are synced back after every step. The parameter count and
// shapes are fixed at construction, so the positionally-keyed
// optimizer state in the solver stays valid across batch-size
// changes.
//
// A Policy is safe for use from a single goroutine; a mutex
// serializes calls so that no two updates interleave their parameter
// mutations and no forward pass observes a half-applied step.
type Policy struct {
	mu     sync.Mutex
	conf   Config
	logger zerolog.Logger
	source rand.Source

	rule agent.PolicyUpdateRule
	slv  *solver.Solver

	net       network.NeuralNet // Canonical weights, batch 1
	vm        G.VM              // Sampling tape over net's graph
	logStdVal *tensor.Dense     // Shape (1, AcDim); nil when discrete

	train *trainGraph // Lazily built, sized to the last update batch
	eval  *evalGraph  // Lazily built, sized to the last forward batch
}

// evalGraph is a gradient-free clone of the policy network used by
// Forward for arbitrary batch sizes.
type evalGraph struct {
	net network.NeuralNet
	vm  G.VM
}

func (e *evalGraph) close() error {
	if e.vm != nil {
		return e.vm.Close()
	}
	return nil
}

// Interface compliance
var _ agent.Policy = (*Policy)(nil)

// New returns a new Policy described by c. Dimensions, the discrete
// flag, and the parameter shapes they imply are fixed for the life of
// the Policy.
func New(c Config, bc backend.Config) (*Policy, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	init := c.InitWFn
	if init == nil {
		var err error
		if init, err = initwfn.NewGlorotU(1.0); err != nil {
			return nil, fmt.Errorf("new: could not create weight "+
				"initializer: %v", err)
		}
	}

	rule := c.UpdateRule
	if rule == nil {
		rule = NewVanillaPG()
	}

	slv := c.Solver
	if slv == nil {
		var err error
		if slv, err = solver.NewDefaultAdam(c.LearningRate); err != nil {
			return nil, fmt.Errorf("new: could not create solver: %v", err)
		}
	}

	net, err := network.NewTanhMLP(c.ObDim, 1, c.AcDim, c.NLayers,
		c.LayerSize, G.NewGraph(), init.InitWFn())
	if err != nil {
		return nil, fmt.Errorf("new: could not create policy network: %v",
			err)
	}

	p := &Policy{
		conf:   c,
		logger: bc.Logger,
		source: bc.Source(),
		rule:   rule,
		slv:    slv,
		net:    net,
		vm:     G.NewTapeMachine(net.Graph()),
	}

	if !c.Discrete {
		p.logStdVal = tensor.New(
			tensor.WithShape(1, c.AcDim),
			tensor.WithBacking(make([]float64, c.AcDim)),
		)
	}

	p.logger.Info().
		Bool("discrete", c.Discrete).
		Int("acDim", c.AcDim).
		Int("obDim", c.ObDim).
		Int("nLayers", c.NLayers).
		Int("layerSize", c.LayerSize).
		Msg("constructed policy")

	return p, nil
}

// Forward evaluates the policy on a batch of observations, given as a
// flat row-major slice, and returns the induced action distribution.
// Repeated calls with unchanged parameters return identical
// distribution parameters.
func (p *Policy) Forward(obs []float64) (distribution.Distribution, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	batch, err := p.batchOf(obs)
	if err != nil {
		return nil, fmt.Errorf("forward: %v", err)
	}

	if err := p.ensureEval(batch); err != nil {
		return nil, fmt.Errorf("forward: %v", err)
	}

	if err := p.eval.net.SetInput(obs); err != nil {
		return nil, fmt.Errorf("forward: %v", err)
	}
	if err := p.eval.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("forward: could not run policy network: %v",
			err)
	}
	out := append([]float64(nil),
		p.eval.net.Output().Data().([]float64)...)
	p.eval.vm.Reset()

	return p.distributionOf(out)
}

// SampleAction draws a single action for a single observation. The
// forward pass runs on the inference graph with no gradient tracking,
// and neither parameters nor optimizer state are touched, so rollout
// collection can call this without bound.
func (p *Policy) SampleAction(obs []float64) (*mat.VecDense, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(obs) != p.conf.ObDim {
		return nil, fmt.Errorf("sampleaction: invalid observation length "+
			"\n\twant(%d) \n\thave(%d)", p.conf.ObDim, len(obs))
	}

	if err := p.net.SetInput(obs); err != nil {
		return nil, fmt.Errorf("sampleaction: %v", err)
	}
	if err := p.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("sampleaction: could not run policy "+
			"network: %v", err)
	}
	out := append([]float64(nil), p.net.Output().Data().([]float64)...)
	p.vm.Reset()

	dist, err := p.distributionOf(out)
	if err != nil {
		return nil, fmt.Errorf("sampleaction: %v", err)
	}

	action := dist.Sample()
	return mat.NewVecDense(len(action), action), nil
}

// Update performs one policy-gradient step on a batch of
// observations, the actions taken in them, and the per-example
// advantages. All shape checking happens before any graph executes,
// so on error no parameter or optimizer state has changed. The
// returned diagnostics hold the surrogate loss under "Actor Loss";
// NaN or Inf losses are reported as-is.
func (p *Policy) Update(obs, actions,
	advantages []float64) (agent.Diagnostics, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	batch, err := p.batchOf(obs)
	if err != nil {
		return nil, fmt.Errorf("update: %v", err)
	}

	actionValues := p.conf.AcDim
	if p.conf.Discrete {
		actionValues = 1
	}
	if len(actions) != batch*actionValues {
		return nil, fmt.Errorf("update: invalid number of action values "+
			"\n\twant(%d) \n\thave(%d)", batch*actionValues, len(actions))
	}
	if len(advantages) != batch {
		return nil, fmt.Errorf("update: invalid number of advantages "+
			"\n\twant(%d) \n\thave(%d)", batch, len(advantages))
	}

	actionBacking := actions
	if p.conf.Discrete {
		if actionBacking, err = oneHot(actions, p.conf.AcDim); err != nil {
			return nil, fmt.Errorf("update: %v", err)
		}
	}

	if err := p.ensureTrain(batch); err != nil {
		return nil, fmt.Errorf("update: %v", err)
	}

	// Load the batch into the training graph
	if err := p.train.net.SetInput(obs); err != nil {
		return nil, fmt.Errorf("update: %v", err)
	}
	actionsTensor := tensor.NewDense(
		tensor.Float64,
		[]int{batch, p.conf.AcDim},
		tensor.WithBacking(actionBacking),
	)
	if err := G.Let(p.train.actions, actionsTensor); err != nil {
		return nil, fmt.Errorf("update: could not set actions: %v", err)
	}
	advantagesTensor := tensor.New(
		tensor.WithShape(batch),
		tensor.WithBacking(advantages),
	)
	if err := G.Let(p.train.advantages, advantagesTensor); err != nil {
		return nil, fmt.Errorf("update: could not set advantages: %v", err)
	}

	// The tape recomputes gradients from scratch on each run, and
	// Reset drops all batch-referencing state afterwards, so each
	// update is a self-contained gradient step.
	if err := p.train.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("update: could not run training graph: %v",
			err)
	}
	if err := p.slv.Step(p.train.model); err != nil {
		return nil, fmt.Errorf("update: could not step solver: %v", err)
	}
	p.train.vm.Reset()

	// Sync the stepped weights back to the canonical network
	if err := network.Set(p.net, p.train.net); err != nil {
		return nil, fmt.Errorf("update: could not sync weights: %v", err)
	}
	if p.train.logStd != nil {
		logStd := p.train.logStd.Value().(*tensor.Dense)
		p.logStdVal = logStd.Clone().(*tensor.Dense)
	}

	loss := scalarOf(p.train.lossVal)
	p.logger.Debug().
		Float64("actorLoss", loss).
		Int("batch", batch).
		Msg("policy update")

	return agent.Diagnostics{"Actor Loss": loss}, nil
}

// LogStd returns a copy of the learned log standard deviation vector,
// or nil for discrete policies. The Gaussian parameter set exists
// only when the policy is continuous.
func (p *Policy) LogStd() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.logStdVal == nil {
		return nil
	}
	return append([]float64(nil), p.logStdVal.Data().([]float64)...)
}

// Network returns the canonical policy network. External
// collaborators may read its weights, e.g. for checkpointing, but
// must not write them.
func (p *Policy) Network() network.NeuralNet {
	return p.net
}

// ParamNorm returns the Euclidean norm over all learnable parameters,
// including the log standard deviation for Gaussian policies.
func (p *Policy) ParamNorm() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	slices := make([][]float64, 0, len(p.net.Learnables())+1)
	for _, node := range p.net.Learnables() {
		slices = append(slices, node.Value().Data().([]float64))
	}
	if p.logStdVal != nil {
		slices = append(slices, p.logStdVal.Data().([]float64))
	}
	return floatutils.Norm(slices...)
}

// Close releases the virtual machines backing the policy's graphs.
func (p *Policy) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	if err := p.vm.Close(); err != nil {
		firstErr = err
	}
	if p.train != nil {
		if err := p.train.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.eval != nil {
		if err := p.eval.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// batchOf validates an observation batch and returns its size.
func (p *Policy) batchOf(obs []float64) (int, error) {
	if len(obs) == 0 || len(obs)%p.conf.ObDim != 0 {
		return 0, fmt.Errorf("observations must hold a positive multiple "+
			"of %d values \n\thave(%d)", p.conf.ObDim, len(obs))
	}
	return len(obs) / p.conf.ObDim, nil
}

// distributionOf builds the boundary distribution from network
// outputs.
func (p *Policy) distributionOf(out []float64) (distribution.Distribution,
	error) {
	if p.conf.Discrete {
		return distribution.NewCategorical(out, p.conf.AcDim, p.source)
	}
	return distribution.NewNormal(out, p.std(), p.source)
}

// std returns exp of the learned log standard deviation.
func (p *Policy) std() []float64 {
	logStd := p.logStdVal.Data().([]float64)
	std := make([]float64, len(logStd))
	for i, v := range logStd {
		std[i] = math.Exp(v)
	}
	return std
}

// ensureTrain (re)builds the training graph when the batch size
// changes. Weight values carry over from the canonical network and
// the solver's positionally-keyed state stays aligned because the
// parameter order and shapes never change.
func (p *Policy) ensureTrain(batch int) error {
	if p.train != nil && p.train.batchSize() == batch {
		return nil
	}
	if p.train != nil {
		if err := p.train.close(); err != nil {
			return err
		}
	}

	train, err := newTrainGraph(p.net, p.logStdVal, p.rule, p.conf.Discrete,
		p.conf.AcDim, batch)
	if err != nil {
		return err
	}
	p.train = train
	return nil
}

// ensureEval (re)builds the forward-only graph when the batch size
// changes and syncs its weights with the canonical network.
func (p *Policy) ensureEval(batch int) error {
	if p.eval == nil || p.eval.net.BatchSize() != batch {
		if p.eval != nil {
			if err := p.eval.close(); err != nil {
				return err
			}
		}
		net, err := p.net.CloneWithBatch(batch)
		if err != nil {
			return err
		}
		p.eval = &evalGraph{
			net: net,
			vm:  G.NewTapeMachine(net.Graph()),
		}
		return nil
	}
	return network.Set(p.eval.net, p.net)
}
