package optimizer

import (
	"fmt"
	"time"

	"github.com/ahmedtd/perceptron/matrix"
	"github.com/ahmedtd/perceptron/network"
)

// Workspace holds every scratch matrix one training run needs, sized once from
// the network topology and reused for every example, batch, and epoch.  The
// momentum buffers outlive a run: passing the same Workspace to a later
// Optimize call continues with the previous updates.
type Workspace struct {
	// Per-layer error rows.  errors[0] is unused; errors[l] is 1 x layer l size.
	errors []*matrix.Matrix

	// Per hidden layer (layer l uses index l-1): the back-propagated error
	// before the activation derivative is applied, and that derivative.
	backprop []*matrix.Matrix
	fprime   []*matrix.Matrix

	// Per connection: column views of the source layer's state, the
	// per-example gradients, the running sums for the current batch, and the
	// previous update applied.
	columns        []*matrix.Matrix
	dW, db         []*matrix.Matrix
	dWSum, dbSum   []*matrix.Matrix
	dWLast, dbLast []*matrix.Matrix

	Timings Timings
}

type Timings struct {
	Overall         time.Duration
	Forward         time.Duration
	Backpropagation time.Duration
	WeightUpdate    time.Duration
	Loss            time.Duration
}

func (t *Timings) Reset() {
	*t = Timings{}
}

// NewWorkspace allocates a workspace for net.
func NewWorkspace(net *network.Network) *Workspace {
	ws := &Workspace{}

	ws.errors = make([]*matrix.Matrix, len(net.Layers))
	for l := 1; l < len(net.Layers); l++ {
		ws.errors[l] = matrix.Zeros(1, net.Layers[l].Size)
	}

	for _, l := range net.Layers[1 : len(net.Layers)-1] {
		ws.backprop = append(ws.backprop, matrix.Zeros(1, l.Size))
		ws.fprime = append(ws.fprime, matrix.Zeros(1, l.Size))
	}

	for _, c := range net.Connections {
		rows, cols := c.Weights.Rows, c.Weights.Cols
		ws.columns = append(ws.columns, matrix.Zeros(rows, 1))
		ws.dW = append(ws.dW, matrix.Zeros(rows, cols))
		ws.db = append(ws.db, matrix.Zeros(1, cols))
		ws.dWSum = append(ws.dWSum, matrix.Zeros(rows, cols))
		ws.dbSum = append(ws.dbSum, matrix.Zeros(1, cols))
		ws.dWLast = append(ws.dWLast, matrix.Zeros(rows, cols))
		ws.dbLast = append(ws.dbLast, matrix.Zeros(1, cols))
	}

	return ws
}

// fits reports whether ws was built for a network with net's topology.
func (ws *Workspace) fits(net *network.Network) bool {
	if len(ws.errors) != len(net.Layers) || len(ws.dW) != len(net.Connections) {
		return false
	}
	for i, c := range net.Connections {
		if !matrix.SameShape(ws.dW[i], c.Weights) {
			return false
		}
	}
	return true
}

func momentumKey(i int, which string) string {
	return fmt.Sprintf("optimizer.connections.%d.%s_momentum", i, which)
}

// DumpTensors adds the momentum buffers to tensors.  Everything else in the
// workspace is scratch that is overwritten before it is read.
func (ws *Workspace) DumpTensors(tensors map[string]*matrix.Matrix) {
	for i := range ws.dWLast {
		tensors[momentumKey(i, "weights")] = ws.dWLast[i]
		tensors[momentumKey(i, "bias")] = ws.dbLast[i]
	}
}

// LoadTensors restores momentum buffers saved by DumpTensors.  Every entry is
// checked before any is copied, so on error the workspace is unchanged.
func (ws *Workspace) LoadTensors(tensors map[string]*matrix.Matrix) error {
	type entry struct {
		src, dst *matrix.Matrix
	}
	entries := make([]entry, 0, 2*len(ws.dWLast))
	for i := range ws.dWLast {
		for _, want := range []struct {
			key string
			dst *matrix.Matrix
		}{
			{momentumKey(i, "weights"), ws.dWLast[i]},
			{momentumKey(i, "bias"), ws.dbLast[i]},
		} {
			t, ok := tensors[want.key]
			if !ok {
				return fmt.Errorf("missing tensor %s", want.key)
			}
			if !matrix.SameShape(t, want.dst) {
				return fmt.Errorf("wrong shape for %s; got %dx%d want %dx%d", want.key, t.Rows, t.Cols, want.dst.Rows, want.dst.Cols)
			}
			entries = append(entries, entry{t, want.dst})
		}
	}

	for _, e := range entries {
		matrix.CopyValuesInto(e.src, e.dst)
	}
	return nil
}

// accumulateExample forward-passes one example, back-propagates its error, and
// adds its gradients to the running sums.
//
// example is shape (1, net.InputSize())
// target is shape (1, net.OutputSize())
func (ws *Workspace) accumulateExample(net *network.Network, example, target *matrix.Matrix) {
	start := time.Now()
	net.ForwardPass(example)
	forwardDone := time.Now()
	ws.Timings.Forward += forwardDone.Sub(start)

	last := len(net.Layers) - 1

	// The output error is output - target.  That is the exact gradient of
	// cross-entropy through softmax; mean squared error uses it unscaled.
	out := net.Output()
	outErr := ws.errors[last]
	for j, v := range out.V {
		outErr.V[j] = v - target.V[j]
	}

	for l := last; l > 0; l-- {
		if l < last {
			h := l - 1
			layer := net.Layers[l]
			matrix.MultiplyTransposeBInto(ws.errors[l+1], net.Connections[l].Weights, ws.backprop[h])
			layer.Activation.DerivativeInto(layer.State, ws.fprime[h])
			matrix.HadamardInto(ws.backprop[h], ws.fprime[h], ws.errors[l])
		}

		// dW = transpose(a_from) * error_to.  A row's transpose has the same
		// storage, so the column view just borrows the state buffer.
		i := l - 1
		col := ws.columns[i]
		col.V = net.Layers[i].State.V
		matrix.MultiplyInto(col, ws.errors[l], ws.dW[i])
		matrix.CopyValuesInto(ws.errors[l], ws.db[i])

		matrix.AddTo(ws.dW[i], ws.dWSum[i])
		matrix.AddTo(ws.db[i], ws.dbSum[i])
	}

	ws.Timings.Backpropagation += time.Since(forwardDone)
}

// applyUpdate turns the accumulated gradients into a weight update and applies
// it to net.
func (ws *Workspace) applyUpdate(net *network.Network, learningRate float32, numRows int, lambda, momentum float32) {
	start := time.Now()

	scale := learningRate / float32(numRows)
	for i, c := range net.Connections {
		dW, db := ws.dWSum[i], ws.dbSum[i]

		matrix.ScalarMultiply(dW, scale)
		matrix.ScalarMultiply(db, scale)

		// L2 penalty on the weights only.
		matrix.AddScaledTo(c.Weights, dW, lambda)

		matrix.AddScaledTo(ws.dWLast[i], dW, momentum)
		matrix.AddScaledTo(ws.dbLast[i], db, momentum)

		matrix.AddScaledTo(dW, c.Weights, -1)
		matrix.AddScaledTo(db, c.Bias, -1)

		matrix.CopyValuesInto(dW, ws.dWLast[i])
		matrix.CopyValuesInto(db, ws.dbLast[i])

		matrix.Zero(dW)
		matrix.Zero(db)
	}

	ws.Timings.WeightUpdate += time.Since(start)
}
