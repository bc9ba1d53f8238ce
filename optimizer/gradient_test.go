package optimizer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/ahmedtd/perceptron/activation"
	"github.com/ahmedtd/perceptron/matrix"
	"github.com/ahmedtd/perceptron/network"
)

// parameters lists every weight and bias slice of net in a fixed order.
func parameters(net *network.Network) [][]float32 {
	params := [][]float32{}
	for _, c := range net.Connections {
		params = append(params, c.Weights.V, c.Bias.V)
	}
	return params
}

func TestBackpropMatchesFiniteDifferences(t *testing.T) {
	testCases := []struct {
		desc   string
		hidden []network.LayerSpec
	}{
		{"no hidden layers", nil},
		{"sigmoid", []network.LayerSpec{{Size: 4, Activation: activation.Sigmoid}}},
		{"tanH then sigmoid", []network.LayerSpec{
			{Size: 5, Activation: activation.TanH},
			{Size: 3, Activation: activation.Sigmoid},
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			net := network.New(3, tc.hidden, 3, activation.Softmax, network.NewGaussian(5))
			example := matrix.New(1, 3, []float32{0.5, -1, 0.25})
			target := matrix.DatasetFromMatrix(matrix.New(1, 3, []float32{0, 0, 1}))

			params := parameters(net)
			x := []float64{}
			for _, p := range params {
				for _, v := range p {
					x = append(x, float64(v))
				}
			}

			loss := func(x []float64) float64 {
				k := 0
				for _, p := range params {
					for i := range p {
						p[i] = float32(x[k])
						k++
					}
				}
				net.ForwardPass(example)
				return float64(network.CrossEntropyLoss(nil, net.Output(), target, 0))
			}
			want := fd.Gradient(nil, loss, x, &fd.Settings{Formula: fd.Central, Step: 1e-2})

			// Restore the unperturbed parameters before backpropagating.
			loss(x)
			ws := NewWorkspace(net)
			ws.accumulateExample(net, example, target.Row(0))

			got := []float64{}
			for i := range net.Connections {
				for _, v := range ws.dWSum[i].V {
					got = append(got, float64(v))
				}
				for _, v := range ws.dbSum[i].V {
					got = append(got, float64(v))
				}
			}

			require.InDeltaSlice(t, want, got, 1e-3)
		})
	}
}
