package network

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedtd/perceptron/activation"
	"github.com/ahmedtd/perceptron/matrix"
)

// makeTwoByTwo returns the 2-2-2 sigmoid/softmax network with fixed weights
// used by the numeric forward and training checks.
func makeTwoByTwo() *Network {
	net := New(2, []LayerSpec{{Size: 2, Activation: activation.Sigmoid}}, 2, activation.Softmax, NewGaussian(1))
	copy(net.Connections[0].Weights.V, []float32{0.5, 1, -1.5, 0.25})
	copy(net.Connections[1].Weights.V, []float32{0.25, 1, -0.5, -1})
	return net
}

func TestNewShapes(t *testing.T) {
	net := New(5, []LayerSpec{{Size: 3, Activation: activation.Sigmoid}}, 4, activation.Softmax, NewGaussian(1))

	require.Len(t, net.Layers, 3)
	require.Len(t, net.Connections, 2)

	gotSizes := []int{}
	gotTypes := []LayerType{}
	for _, l := range net.Layers {
		gotSizes = append(gotSizes, l.Size)
		gotTypes = append(gotTypes, l.Type)
	}
	if diff := cmp.Diff(gotSizes, []int{5, 3, 4}); diff != "" {
		t.Fatalf("Wrong layer sizes; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(gotTypes, []LayerType{Input, Hidden, Output}); diff != "" {
		t.Fatalf("Wrong layer types; diff (-got +want)\n%s", diff)
	}
	assert.Equal(t, activation.None, net.Layers[0].Activation)

	for i, c := range net.Connections {
		assert.Equal(t, i, c.From)
		assert.Equal(t, i+1, c.To)
		assert.Equal(t, net.Layers[i].Size, c.Weights.Rows)
		assert.Equal(t, net.Layers[i+1].Size, c.Weights.Cols)
		assert.Equal(t, 1, c.Bias.Rows)
		assert.Equal(t, net.Layers[i+1].Size, c.Bias.Cols)
		assert.Equal(t, float32(0), matrix.SumSquares(c.Bias), "bias of connection %d", i)
		assert.NotZero(t, matrix.SumSquares(c.Weights), "weights of connection %d", i)
	}
}

func TestNewWithoutGaussianLeavesZeroWeights(t *testing.T) {
	net := New(3, nil, 2, activation.Linear, nil)
	require.Len(t, net.Connections, 1)
	assert.Equal(t, float32(0), matrix.SumSquares(net.Connections[0].Weights))
}

func TestNewPanicsOnBadSize(t *testing.T) {
	assert.Panics(t, func() {
		New(2, []LayerSpec{{Size: 0, Activation: activation.ReLU}}, 2, activation.Softmax, nil)
	})
	assert.Panics(t, func() {
		New(0, nil, 2, activation.Softmax, nil)
	})
}

func TestNewPanicsOnMissingActivation(t *testing.T) {
	// A zero LayerSpec has no activation, and "none" cannot be read back.
	assert.Panics(t, func() {
		New(2, []LayerSpec{{Size: 3}}, 2, activation.Softmax, NewGaussian(1))
	})
	assert.Panics(t, func() {
		New(2, nil, 2, activation.None, NewGaussian(1))
	})
	assert.Panics(t, func() {
		New(2, nil, 2, activation.Kind(42), NewGaussian(1))
	})
}

func TestInitializeIsDeterministicPerSeed(t *testing.T) {
	a := New(4, []LayerSpec{{Size: 8, Activation: activation.ReLU}}, 3, activation.Softmax, NewGaussian(99))
	b := New(4, []LayerSpec{{Size: 8, Activation: activation.ReLU}}, 3, activation.Softmax, NewGaussian(99))
	for i := range a.Connections {
		if diff := cmp.Diff(a.Connections[i].Weights, b.Connections[i].Weights); diff != "" {
			t.Fatalf("connection %d: Wrong output; diff (-got +want)\n%s", i, diff)
		}
	}
}

func TestForwardPassNumeric(t *testing.T) {
	net := makeTwoByTwo()
	net.ForwardPass(matrix.New(1, 2, []float32{1, 0}))

	hidden := net.Layers[1].State
	assert.InDelta(t, 0.6225, hidden.At(0, 0), 1e-4)
	assert.InDelta(t, 0.7311, hidden.At(0, 1), 1e-4)

	out := net.Output()
	assert.GreaterOrEqual(t, out.At(0, 0), float32(0.474))
	assert.LessOrEqual(t, out.At(0, 0), float32(0.475))
	assert.GreaterOrEqual(t, out.At(0, 1), float32(0.520))
	assert.LessOrEqual(t, out.At(0, 1), float32(0.530))
}

func TestForwardPassBatch(t *testing.T) {
	net := New(5, []LayerSpec{{Size: 3, Activation: activation.Sigmoid}}, 4, activation.Softmax, NewGaussian(3))

	input := matrix.Zeros(2, 5)
	for i := 0; i < 5; i++ {
		input.Set(0, i, (float32(i)+1)/2)
		input.Set(1, i, (float32(i)+1.5)/2)
	}
	net.ForwardPass(input)

	out := net.Output()
	require.Equal(t, 2, out.Rows)
	require.Equal(t, 4, out.Cols)
	for _, p := range net.Predict() {
		assert.GreaterOrEqual(t, p, 0)
		assert.LessOrEqual(t, p, 3)
	}

	// Same batch shape: the state buffers are reused.
	net.ForwardPass(input)
	assert.Same(t, out, net.Output())

	// Different batch shape: the states are replaced.
	net.ForwardPass(matrix.Zeros(1, 5))
	assert.Equal(t, 1, net.Output().Rows)
}

func TestForwardPassDoesNotAliasInput(t *testing.T) {
	net := New(2, nil, 2, activation.Linear, NewGaussian(5))
	input := matrix.New(1, 2, []float32{1, 2})
	net.ForwardPass(input)
	net.Layers[0].State.Set(0, 0, 100)
	assert.Equal(t, float32(1), input.At(0, 0))
}

func TestForwardPassPanicsOnWrongWidth(t *testing.T) {
	net := New(3, nil, 2, activation.Softmax, NewGaussian(1))
	assert.Panics(t, func() {
		net.ForwardPass(matrix.Zeros(1, 2))
	})
}

func TestPredict(t *testing.T) {
	net := New(2, nil, 5, activation.Softmax, nil)
	net.Layers[1].State = matrix.New(3, 5, []float32{
		0.1, 0.2, 0.7, 0, 0,
		0.5, 0.5, 0, 0, 0,
		0, 0, 0, 0, 1,
	})

	if diff := cmp.Diff(net.Predict(), []int{2, 0, 4}); diff != "" {
		t.Fatalf("Wrong output; diff (-got +want)\n%s", diff)
	}
}

func TestAccuracy(t *testing.T) {
	// A linear network with identity weights predicts the argmax of its input.
	net := New(3, nil, 3, activation.Linear, nil)
	copy(net.Connections[0].Weights.V, []float32{1, 0, 0, 0, 1, 0, 0, 0, 1})

	data := matrix.NewDataset(3, [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{1, 0, 0},
	})
	classes := matrix.NewDataset(3, [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{1, 0, 0},
		{0, 0, 1},
	})

	assert.InDelta(t, 0.5, net.Accuracy(data, classes), 1e-6)
}

func TestTopology(t *testing.T) {
	net := New(4, []LayerSpec{{Size: 16, Activation: activation.ReLU}}, 3, activation.Softmax, nil)
	assert.Equal(t, "4 -> 16 relu -> 3 softmax", net.Topology())
	assert.Equal(t, []LayerSpec{{Size: 16, Activation: activation.ReLU}}, net.Hidden())
	assert.Equal(t, activation.Softmax, net.OutputActivation())
}

func TestGaussianMoments(t *testing.T) {
	g := NewGaussian(12345)
	n := 20000
	var sum, sumSq float64
	for range n {
		v := float64(g.Next())
		sum += v
		sumSq += v * v
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean

	assert.InDelta(t, 0, mean, 0.05)
	assert.InDelta(t, 1, variance, 0.05)
}
