// Package critic implements a state-value function approximator
// trained by regression against target returns through Gorgonia.
package critic

import (
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/rlkit/policygrad/agent"
	"github.com/rlkit/policygrad/backend"
	"github.com/rlkit/policygrad/initwfn"
	"github.com/rlkit/policygrad/network"
	"github.com/rlkit/policygrad/solver"
	"github.com/rlkit/policygrad/utils/floatutils"
)

// Critic estimates the expected return from an observation with a
// feed-forward network mapping ObDim features to a single value.
//
// The canonical weights live on a batch-1 graph. Forward and Update
// lazily maintain graphs sized to the incoming batch: a forward-only
// clone for predictions and a training clone holding the
// mean-squared-error loss and its gradient. Weights are synced back
// to the canonical network after every step. A mutex serializes calls
// so no two updates interleave their parameter mutations.
type Critic struct {
	mu     sync.Mutex
	conf   Config
	logger zerolog.Logger
	slv    *solver.Solver

	net network.NeuralNet // Canonical weights, batch 1

	train *trainGraph
	eval  *evalGraph
}

// trainGraph holds the graph one Update call runs: a clone of the
// value network at the update's batch size, the regression-target
// node, and the MSE loss with its gradient bound to a tape machine.
type trainGraph struct {
	net     network.NeuralNet
	targets *G.Node

	lossVal G.Value
	model   []G.ValueGrad
	vm      G.VM
}

func (t *trainGraph) close() error {
	if t.vm != nil {
		return t.vm.Close()
	}
	return nil
}

// evalGraph is a gradient-free clone of the value network used by
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
var _ agent.Critic = (*Critic)(nil)

// New returns a new Critic described by c.
func New(c Config, bc backend.Config) (*Critic, error) {
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

	slv := c.Solver
	if slv == nil {
		var err error
		if slv, err = solver.NewDefaultAdam(c.LearningRate); err != nil {
			return nil, fmt.Errorf("new: could not create solver: %v", err)
		}
	}

	net, err := network.NewTanhMLP(c.ObDim, 1, 1, c.NLayers, c.LayerSize,
		G.NewGraph(), init.InitWFn())
	if err != nil {
		return nil, fmt.Errorf("new: could not create value network: %v",
			err)
	}

	critic := &Critic{
		conf:   c,
		logger: bc.Logger,
		slv:    slv,
		net:    net,
	}

	critic.logger.Info().
		Int("obDim", c.ObDim).
		Int("nLayers", c.NLayers).
		Int("layerSize", c.LayerSize).
		Msg("constructed critic")

	return critic, nil
}

// Forward returns one value estimate per observation in the batch,
// given as a flat row-major slice. Repeated calls with unchanged
// parameters return identical values.
func (c *Critic) Forward(obs []float64) ([]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch, err := c.batchOf(obs)
	if err != nil {
		return nil, fmt.Errorf("forward: %v", err)
	}

	if err := c.ensureEval(batch); err != nil {
		return nil, fmt.Errorf("forward: %v", err)
	}

	if err := c.eval.net.SetInput(obs); err != nil {
		return nil, fmt.Errorf("forward: %v", err)
	}
	if err := c.eval.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("forward: could not run value network: %v",
			err)
	}
	values := append([]float64(nil),
		c.eval.net.Output().Data().([]float64)...)
	c.eval.vm.Reset()

	return values, nil
}

// Update performs one gradient step regressing the critic's
// predictions toward targets. All shape checking happens before any
// graph executes, so on error no parameter or optimizer state has
// changed. The returned diagnostics hold the mean squared error under
// "Baseline Loss"; NaN or Inf losses are reported as-is.
func (c *Critic) Update(obs, targets []float64) (agent.Diagnostics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch, err := c.batchOf(obs)
	if err != nil {
		return nil, fmt.Errorf("update: %v", err)
	}
	if len(targets) != batch {
		return nil, fmt.Errorf("update: invalid number of targets "+
			"\n\twant(%d) \n\thave(%d)", batch, len(targets))
	}

	if err := c.ensureTrain(batch); err != nil {
		return nil, fmt.Errorf("update: %v", err)
	}

	if err := c.train.net.SetInput(obs); err != nil {
		return nil, fmt.Errorf("update: %v", err)
	}
	targetsTensor := tensor.NewDense(
		tensor.Float64,
		[]int{batch, 1},
		tensor.WithBacking(targets),
	)
	if err := G.Let(c.train.targets, targetsTensor); err != nil {
		return nil, fmt.Errorf("update: could not set targets: %v", err)
	}

	// The tape recomputes gradients from scratch on each run, and
	// Reset drops all batch-referencing state afterwards, so each
	// update is a self-contained gradient step.
	if err := c.train.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("update: could not run training graph: %v",
			err)
	}
	if err := c.slv.Step(c.train.model); err != nil {
		return nil, fmt.Errorf("update: could not step solver: %v", err)
	}
	c.train.vm.Reset()

	if err := network.Set(c.net, c.train.net); err != nil {
		return nil, fmt.Errorf("update: could not sync weights: %v", err)
	}

	loss := scalarOf(c.train.lossVal)
	c.logger.Debug().
		Float64("baselineLoss", loss).
		Int("batch", batch).
		Msg("critic update")

	return agent.Diagnostics{"Baseline Loss": loss}, nil
}

// Network returns the canonical value network. External collaborators
// may read its weights, e.g. for checkpointing, but must not write
// them.
func (c *Critic) Network() network.NeuralNet {
	return c.net
}

// ParamNorm returns the Euclidean norm over all learnable parameters.
func (c *Critic) ParamNorm() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	slices := make([][]float64, 0, len(c.net.Learnables()))
	for _, node := range c.net.Learnables() {
		slices = append(slices, node.Value().Data().([]float64))
	}
	return floatutils.Norm(slices...)
}

// Close releases the virtual machines backing the critic's graphs.
func (c *Critic) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	if c.train != nil {
		if err := c.train.close(); err != nil {
			firstErr = err
		}
	}
	if c.eval != nil {
		if err := c.eval.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// batchOf validates an observation batch and returns its size.
func (c *Critic) batchOf(obs []float64) (int, error) {
	if len(obs) == 0 || len(obs)%c.conf.ObDim != 0 {
		return 0, fmt.Errorf("observations must hold a positive multiple "+
			"of %d values \n\thave(%d)", c.conf.ObDim, len(obs))
	}
	return len(obs) / c.conf.ObDim, nil
}

// ensureTrain (re)builds the training graph when the batch size
// changes. Weight values carry over from the canonical network and
// the solver's positionally-keyed state stays aligned because the
// parameter order and shapes never change.
func (c *Critic) ensureTrain(batch int) error {
	if c.train != nil && c.train.net.BatchSize() == batch {
		return nil
	}
	if c.train != nil {
		if err := c.train.close(); err != nil {
			return err
		}
	}

	net, err := c.net.CloneWithBatch(batch)
	if err != nil {
		return fmt.Errorf("could not clone value network: %v", err)
	}
	g := net.Graph()

	t := &trainGraph{net: net}
	t.targets = G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, 1),
		G.WithName("valueTargets"),
		G.WithInit(G.Zeroes()),
	)

	loss := G.Must(G.Sub(net.Prediction(), t.targets))
	loss = G.Must(G.Square(loss))
	loss = G.Must(G.Mean(loss))
	G.Read(loss, &t.lossVal)

	learnables := net.Learnables()
	if _, err := G.Grad(loss, learnables...); err != nil {
		return fmt.Errorf("could not compute gradient: %v", err)
	}

	t.model = make([]G.ValueGrad, 0, len(learnables))
	for _, node := range learnables {
		t.model = append(t.model, node)
	}
	t.vm = G.NewTapeMachine(g, G.BindDualValues(learnables...))

	c.train = t
	return nil
}

// ensureEval (re)builds the forward-only graph when the batch size
// changes and syncs its weights with the canonical network.
func (c *Critic) ensureEval(batch int) error {
	if c.eval == nil || c.eval.net.BatchSize() != batch {
		if c.eval != nil {
			if err := c.eval.close(); err != nil {
				return err
			}
		}
		net, err := c.net.CloneWithBatch(batch)
		if err != nil {
			return err
		}
		c.eval = &evalGraph{
			net: net,
			vm:  G.NewTapeMachine(net.Graph()),
		}
		return nil
	}
	return network.Set(c.eval.net, c.net)
}

// scalarOf extracts the scalar held by a Gorgonia value.
func scalarOf(v G.Value) float64 {
	switch data := v.Data().(type) {
	case float64:
		return data
	case []float64:
		return data[0]
	default:
		return math.NaN()
	}
}
