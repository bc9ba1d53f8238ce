package optimizer

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"

	"github.com/ahmedtd/perceptron/activation"
	"github.com/ahmedtd/perceptron/matrix"
	"github.com/ahmedtd/perceptron/network"
)

// A network with no hidden layers, a linear output and full-batch updates is
// plain linear regression, so it must track a hand-written gradient descent
// step for step.
func TestAgreesWithHandcodedLinreg(t *testing.T) {
	testCases := []struct {
		desc   string
		coeffs []float32
	}{
		{"1d", []float32{10}},
		{"2d", []float32{10, 3}},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			alpha := float32(0.5)
			steps := 2000

			data, targets := generateLinRegDataset(200, tc.coeffs, 30)

			net := network.New(len(tc.coeffs), nil, 1, activation.Linear, nil)
			Optimize(ParameterSet{
				Network:      net,
				Data:         data,
				Classes:      targets,
				LossFunction: network.MeanSquaredError,
				BatchSize:    data.Rows,
				LearningRate: alpha,
				MaxIters:     steps,
			})

			m, b := gradientDescentLinReg(data, targets, alpha, steps)
			t.Logf("network m=%v b=%v", net.Connections[0].Weights.V, net.Connections[0].Bias.V[0])
			t.Logf("handcoded m=%v b=%v", m, b)

			for j := range m {
				if math32.Abs(net.Connections[0].Weights.At(j, 0)-m[j]) > 0.001 {
					t.Errorf("Disagreement on m%d parameter; got %v, want %v", j, net.Connections[0].Weights.At(j, 0), m[j])
				}
			}
			if math32.Abs(net.Connections[0].Bias.V[0]-b) > 0.001 {
				t.Errorf("Disagreement on b parameter; got %v, want %v", net.Connections[0].Bias.V[0], b)
			}
		})
	}
}

func generateLinRegDataset(rows int, coeffs []float32, intercept float32) (data, targets *matrix.Dataset) {
	r := rand.New(rand.NewSource(12345))

	x := make([][]float32, rows)
	y := make([][]float32, rows)
	for i := range x {
		x[i] = make([]float32, len(coeffs))
		y1 := intercept
		for j, c := range coeffs {
			x[i][j] = r.Float32()
			y1 += c * x[i][j]
		}
		// Perturb the point a little bit
		y1 += (r.Float32() - 0.5) * 10
		y[i] = []float32{y1}
	}
	return matrix.NewDataset(len(coeffs), x), matrix.NewDataset(1, y)
}

func gradientDescentLinReg(data, targets *matrix.Dataset, alpha float32, steps int) (m []float32, b float32) {
	m = make([]float32, data.Cols)
	gradM := make([]float32, data.Cols)
	n := float32(data.Rows)
	for range steps {
		clear(gradM)
		gradB := float32(0)
		for i, x := range data.Data {
			pred := b
			for j := range m {
				pred += m[j] * x[j]
			}
			diff := pred - targets.Data[i][0]
			for j := range m {
				gradM[j] += diff * x[j]
			}
			gradB += diff
		}
		for j := range m {
			m[j] -= alpha * gradM[j] / n
		}
		b -= alpha * gradB / n
	}
	return m, b
}

func BenchmarkLinReg(b *testing.B) {
	data, targets := generateLinRegDataset(1000, []float32{10, 3}, 30)
	net := network.New(2, nil, 1, activation.Linear, nil)
	ws := NewWorkspace(net)

	for b.Loop() {
		Optimize(ParameterSet{
			Network:      net,
			Data:         data,
			Classes:      targets,
			LossFunction: network.MeanSquaredError,
			BatchSize:    data.Rows,
			LearningRate: 0.5,
			MaxIters:     1,
			Workspace:    ws,
		})
	}
}
