// Package network holds the multilayer perceptron model: layers joined by
// weighted connections, forward propagation, predictions and losses, and the
// text and safetensors formats a network is stored in.
package network

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ahmedtd/perceptron/activation"
	"github.com/ahmedtd/perceptron/matrix"
)

// LayerSpec describes one hidden layer.
type LayerSpec struct {
	Size       int
	Activation activation.Kind
}

// Network is a feedforward stack of layers.  Connections[i] joins Layers[i]
// to Layers[i+1].
type Network struct {
	Layers      []*Layer
	Connections []*Connection
}

// New builds a network with numFeatures inputs, the given hidden layers, and
// numOutputs outputs.  Every connection is initialized from g.  If g is nil the
// weights are left at zero, which is only useful when they are about to be
// overwritten.
func New(numFeatures int, hidden []LayerSpec, numOutputs int, outputActivation activation.Kind, g *Gaussian) *Network {
	if numFeatures <= 0 || numOutputs <= 0 {
		panic(fmt.Sprintf("invalid network shape: %d inputs, %d outputs", numFeatures, numOutputs))
	}

	layers := make([]*Layer, 0, len(hidden)+2)
	layers = append(layers, NewLayer(Input, numFeatures, activation.None))
	for _, spec := range hidden {
		layers = append(layers, NewLayer(Hidden, spec.Size, spec.Activation))
	}
	layers = append(layers, NewLayer(Output, numOutputs, outputActivation))

	connections := make([]*Connection, len(layers)-1)
	for i := range connections {
		connections[i] = NewConnection(i, i+1, layers)
		if g != nil {
			connections[i].Initialize(g)
		}
	}

	return &Network{
		Layers:      layers,
		Connections: connections,
	}
}

func (net *Network) InputSize() int {
	return net.Layers[0].Size
}

func (net *Network) OutputSize() int {
	return net.Layers[len(net.Layers)-1].Size
}

// Hidden returns the specs of the hidden layers.
func (net *Network) Hidden() []LayerSpec {
	specs := []LayerSpec{}
	for _, l := range net.Layers[1 : len(net.Layers)-1] {
		specs = append(specs, LayerSpec{Size: l.Size, Activation: l.Activation})
	}
	return specs
}

// OutputActivation returns the activation of the last layer.
func (net *Network) OutputActivation() activation.Kind {
	return net.Layers[len(net.Layers)-1].Activation
}

// Topology renders the layer sizes and activations, for example
// "4 -> 16 relu -> 3 softmax".
func (net *Network) Topology() string {
	parts := []string{strconv.Itoa(net.InputSize())}
	for _, l := range net.Layers[1:] {
		parts = append(parts, fmt.Sprintf("%d %v", l.Size, l.Activation))
	}
	return strings.Join(parts, " -> ")
}

// ForwardPass runs every row of input through the network.  The result is
// left in Output() and is overwritten by the next pass.
//
// input is shape (batchSize, InputSize())
func (net *Network) ForwardPass(input *matrix.Matrix) {
	if input.Cols != net.InputSize() {
		panic(fmt.Sprintf("dimension mismatch in ForwardPass: input has %d columns, network takes %d", input.Cols, net.InputSize()))
	}

	state := net.Layers[0].resetState(input.Rows)
	matrix.CopyValuesInto(input, state)

	for _, c := range net.Connections {
		from := c.FromLayer(net.Layers)
		to := c.ToLayer(net.Layers)

		pre := to.resetState(input.Rows)
		matrix.MultiplyInto(from.State, c.Weights, pre)
		matrix.AddToEachRowInPlace(pre, c.Bias)
		to.Activate()
	}
}

// ForwardPassDataset runs every row of data through the network.
func (net *Network) ForwardPassDataset(data *matrix.Dataset) {
	net.ForwardPass(data.ToMatrix())
}

// Output returns the state of the last layer.  Shape (batchSize, OutputSize())
func (net *Network) Output() *matrix.Matrix {
	return net.Layers[len(net.Layers)-1].State
}

// Predict returns, for each row of the last forward pass, the index of the
// largest output.  Ties go to the lowest index.
func (net *Network) Predict() []int {
	out := net.Output()
	predictions := make([]int, out.Rows)
	for i := range predictions {
		row := out.RowSlice(i)
		best := 0
		for j := 1; j < len(row); j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		predictions[i] = best
	}
	return predictions
}

// Accuracy forward-passes data and returns the fraction of rows whose
// predicted class is marked 1 in the one-hot classes.
func (net *Network) Accuracy(data, classes *matrix.Dataset) float32 {
	if data.Rows != classes.Rows {
		panic(fmt.Sprintf("dimension mismatch in Accuracy: %d data rows, %d class rows", data.Rows, classes.Rows))
	}
	if classes.Cols != net.OutputSize() {
		panic(fmt.Sprintf("dimension mismatch in Accuracy: %d classes, network outputs %d", classes.Cols, net.OutputSize()))
	}

	net.ForwardPassDataset(data)

	numCorrect := 0
	for i, p := range net.Predict() {
		if classes.Data[i][p] == 1 {
			numCorrect++
		}
	}
	return float32(numCorrect) / float32(classes.Rows)
}
