package policy

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/rlkit/policygrad/agent"
	"github.com/rlkit/policygrad/network"
)

// trainGraph holds the computation graph that one Update call runs: a
// clone of the policy network at the update's batch size, the input
// nodes for taken actions and advantages, and the surrogate loss with
// its gradient bound to a tape machine. Because Gorgonia shapes are
// fixed at graph construction, a trainGraph is rebuilt whenever the
// incoming batch size changes.
type trainGraph struct {
	net        network.NeuralNet
	logStd     *G.Node // nil for categorical policies
	actions    *G.Node
	advantages *G.Node

	lossVal G.Value
	model   []G.ValueGrad
	vm      G.VM
}

// newTrainGraph builds a training graph for the given batch size,
// cloning weights from source. For Gaussian policies, logStdVal holds
// the current log standard deviation values to load into the new
// graph's log-std node.
func newTrainGraph(source network.NeuralNet, logStdVal *tensor.Dense,
	rule agent.PolicyUpdateRule, discrete bool, acDim,
	batch int) (*trainGraph, error) {
	net, err := source.CloneWithBatch(batch)
	if err != nil {
		return nil, fmt.Errorf("newtraingraph: could not clone policy "+
			"network: %v", err)
	}
	g := net.Graph()

	t := &trainGraph{net: net}

	// Per-example log probability of the input actions
	var logProb *G.Node
	if discrete {
		logits := net.Prediction()

		// One-hot action indices select the taken action's logit
		t.actions = G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(batch, acDim),
			G.WithName("actionIndices"),
			G.WithInit(G.Zeroes()),
		)
		selected := G.Must(G.HadamardProd(t.actions, logits))
		selected = G.Must(G.Sum(selected, 1))
		logProb = G.Must(G.Sub(selected, logSumExp(logits, 1)))
	} else {
		mean := net.Prediction()

		t.logStd = G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(1, acDim),
			G.WithName("logStd"),
			G.WithInit(G.Zeroes()),
		)
		if err := G.Let(t.logStd, logStdVal.Clone()); err != nil {
			return nil, fmt.Errorf("newtraingraph: could not set log std: %v",
				err)
		}

		t.actions = G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(batch, acDim),
			G.WithName("actions"),
			G.WithInit(G.Zeroes()),
		)
		logProb = gaussianLogProb(mean, t.logStd, t.actions)
	}

	t.advantages = G.NewVector(
		g,
		tensor.Float64,
		G.WithShape(batch),
		G.WithName("advantages"),
		G.WithInit(G.Zeroes()),
	)

	loss, err := rule.Loss(logProb, t.advantages)
	if err != nil {
		return nil, fmt.Errorf("newtraingraph: could not build loss: %v", err)
	}
	G.Read(loss, &t.lossVal)

	learnables := net.Learnables()
	if t.logStd != nil {
		learnables = append(learnables, t.logStd)
	}
	if _, err := G.Grad(loss, learnables...); err != nil {
		return nil, fmt.Errorf("newtraingraph: could not compute "+
			"gradient: %v", err)
	}

	t.model = make([]G.ValueGrad, 0, len(learnables))
	for _, node := range learnables {
		t.model = append(t.model, node)
	}
	t.vm = G.NewTapeMachine(g, G.BindDualValues(learnables...))

	return t, nil
}

// batchSize returns the batch size the graph was built for
func (t *trainGraph) batchSize() int {
	return t.net.BatchSize()
}

func (t *trainGraph) close() error {
	if t.vm != nil {
		return t.vm.Close()
	}
	return nil
}

// logSumExp computes log(Σ exp(logits)) along the given axis with the
// per-row maximum subtracted for numerical stability.
func logSumExp(logits *G.Node, along int) *G.Node {
	max := G.Must(G.Max(logits, along))

	exponent := G.Must(G.BroadcastSub(logits, max, nil, []byte{1}))
	exponent = G.Must(G.Exp(exponent))

	sum := G.Must(G.Sum(exponent, along))
	log := G.Must(G.Log(sum))

	return G.Must(G.Add(max, log))
}

// gaussianLogProb adds the log density of actions under the diagonal
// Gaussian N(mean, exp(logStd)²) to the graph. The per-dimension log
// densities are summed across action dimensions so that each example
// yields a single joint log probability.
func gaussianLogProb(mean, logStd, actions *G.Node) *G.Node {
	std := G.Must(G.Exp(logStd))

	diff := G.Must(G.Sub(actions, mean))
	z := G.Must(G.BroadcastHadamardDiv(diff, std, nil, []byte{0}))

	negativeHalf := G.NewConstant(-0.5)
	perDim := G.Must(G.HadamardProd(negativeHalf, G.Must(G.Square(z))))
	perDim = G.Must(G.BroadcastSub(perDim, logStd, nil, []byte{0}))

	halfLog2Pi := G.NewConstant(0.5 * math.Log(2*math.Pi))
	perDim = G.Must(G.Sub(perDim, halfLog2Pi))

	return G.Must(G.Sum(perDim, 1))
}

// oneHot encodes a batch of action indices as a flat one-hot matrix
// backing of shape (batch, numActions).
func oneHot(actions []float64, numActions int) ([]float64, error) {
	encoded := make([]float64, len(actions)*numActions)
	for i, action := range actions {
		a := int(action)
		if float64(a) != action || a < 0 || a >= numActions {
			return nil, fmt.Errorf("onehot: action %v is not an index in "+
				"[0, %d)", action, numActions)
		}
		encoded[i*numActions+a] = 1.0
	}
	return encoded, nil
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
