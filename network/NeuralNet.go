// Package network implements feed-forward neural network function
// approximators on top of Gorgonia computation graphs. Networks built
// here hold their parameters as graph nodes; training code computes
// gradients of a loss with respect to Learnables() and steps them
// through a Gorgonia solver.
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet describes a feed-forward function approximator living on
// a Gorgonia computation graph. A NeuralNet is constructed for a
// fixed input batch size; CloneWithBatch produces a copy of the
// network, with identical weight values, on a fresh graph with a new
// batch size.
type NeuralNet interface {
	// Graph returns the computation graph the network lives on.
	Graph() *G.ExprGraph

	// Clone returns a copy of the network, with equal weight values,
	// on a fresh graph.
	Clone() (NeuralNet, error)

	// CloneWithBatch is Clone with a new input batch size.
	CloneWithBatch(int) (NeuralNet, error)

	BatchSize() int
	Features() int
	Outputs() int

	// SetInput sets the value of the network's input node. The input
	// is a flat, row-major batch of feature vectors.
	SetInput([]float64) error

	// Set overwrites the network's weights with those of source.
	Set(source NeuralNet) error

	// Learnables returns the weight nodes of the network, in a fixed
	// order that Clone and CloneWithBatch preserve.
	Learnables() G.Nodes

	// Model returns the learnable nodes with their gradients for
	// stepping through a solver.
	Model() []G.ValueGrad

	// Output returns the value of the prediction node after the
	// network's graph has been run.
	Output() G.Value

	// Prediction returns the node of the computation graph that
	// stores the network's output.
	Prediction() *G.Node
}

// Set sets the weights of dest to be equal to the weights of source.
func Set(dest, source NeuralNet) error {
	return dest.Set(source)
}
