// Package optimizer trains networks with mini-batch gradient descent, using
// momentum, L2 regularization, and an annealed learning rate.
package optimizer

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/ahmedtd/perceptron/matrix"
	"github.com/ahmedtd/perceptron/network"
)

// defaultSeed seeds the shuffle when ParameterSet.Rand is nil, so unseeded
// runs are reproducible.
const defaultSeed = 1

// ParameterSet bundles everything one training run needs.
type ParameterSet struct {
	Network *network.Network

	// Data is shape (numExamples, Network.InputSize()).  Classes is the one-hot
	// ground truth, shape (numExamples, Network.OutputSize()).  Both are
	// reordered in place when Shuffle is set.
	Data    *matrix.Dataset
	Classes *matrix.Dataset

	LossFunction network.LossFunction

	// 1 for stochastic gradient descent, Data.Rows for full-batch.
	BatchSize int

	// The learning rate at epoch e is LearningRate / (1 + e/SearchTime).  A
	// SearchTime of 0 disables annealing.
	LearningRate float32
	SearchTime   float32

	RegularizationStrength float32
	MomentumFactor         float32

	// Number of epochs to run.
	MaxIters int

	// Shuffle reorders Data and Classes together before each epoch.
	Shuffle bool

	// Verbose reports the loss over the whole data set after the first epoch
	// and every 100th.
	Verbose bool

	// Rand drives shuffling.  Defaults to a fixed seed.
	Rand *rand.Rand

	// Logf receives verbose reports.  Defaults to log.Printf.
	Logf func(format string, args ...any)

	// Workspace, if set, is used instead of a fresh one.  It must have been
	// built for a network of the same topology.
	Workspace *Workspace
}

// BatchGradientDescent trains net on data and classes.  See ParameterSet for
// the meaning of each argument.
func BatchGradientDescent(
	net *network.Network,
	data, classes *matrix.Dataset,
	lossFunction network.LossFunction,
	batchSize int,
	learningRate, searchTime, regularizationStrength, momentumFactor float32,
	maxIters int,
	shuffle, verbose bool,
) {
	Optimize(ParameterSet{
		Network:                net,
		Data:                   data,
		Classes:                classes,
		LossFunction:           lossFunction,
		BatchSize:              batchSize,
		LearningRate:           learningRate,
		SearchTime:             searchTime,
		RegularizationStrength: regularizationStrength,
		MomentumFactor:         momentumFactor,
		MaxIters:               maxIters,
		Shuffle:                shuffle,
		Verbose:                verbose,
	})
}

// Optimize runs p.MaxIters epochs of mini-batch gradient descent and returns
// the workspace it used.
//
// The gradients of every example in a batch are summed, and the update applied
// at the end of the batch is scaled by the learning rate over the total number
// of examples in the data set.
func Optimize(p ParameterSet) *Workspace {
	net := p.Network
	if net.InputSize() != p.Data.Cols {
		panic(fmt.Sprintf("dimension mismatch: network takes %d inputs, data has %d columns", net.InputSize(), p.Data.Cols))
	}
	if net.OutputSize() != p.Classes.Cols {
		panic(fmt.Sprintf("dimension mismatch: network has %d outputs, classes have %d columns", net.OutputSize(), p.Classes.Cols))
	}
	if p.Data.Rows != p.Classes.Rows {
		panic(fmt.Sprintf("dimension mismatch: %d data rows, %d class rows", p.Data.Rows, p.Classes.Rows))
	}
	if p.BatchSize < 1 || p.BatchSize > p.Data.Rows {
		panic(fmt.Sprintf("batch size %d out of range for %d rows", p.BatchSize, p.Data.Rows))
	}
	if p.MaxIters < 1 {
		panic(fmt.Sprintf("maxIters must be at least 1, got %d", p.MaxIters))
	}

	ws := p.Workspace
	if ws == nil {
		ws = NewWorkspace(net)
	} else if !ws.fits(net) {
		panic("workspace was built for a different network topology")
	}

	r := p.Rand
	if r == nil {
		r = rand.New(rand.NewSource(defaultSeed))
	}
	logf := p.Logf
	if logf == nil {
		logf = log.Printf
	}

	numBatches := (p.Data.Rows + p.BatchSize - 1) / p.BatchSize

	// Row views, repointed at each example in turn.
	example := matrix.New(1, p.Data.Cols, p.Data.Data[0])
	target := matrix.New(1, p.Classes.Cols, p.Classes.Data[0])

	start := time.Now()
	for epoch := 1; epoch <= p.MaxIters; epoch++ {
		if p.Shuffle {
			matrix.ShuffleTogether(p.Data, p.Classes, r)
		}

		learningRate := p.LearningRate
		if p.SearchTime != 0 {
			learningRate = p.LearningRate / (1 + float32(epoch)/p.SearchTime)
		}

		dataBatches := p.Data.CreateBatches(numBatches)
		classBatches := p.Classes.CreateBatches(numBatches)
		for b := range dataBatches {
			for k := 0; k < dataBatches[b].Rows; k++ {
				example.V = dataBatches[b].Data[k]
				target.V = classBatches[b].Data[k]
				ws.accumulateExample(net, example, target)
			}
			ws.applyUpdate(net, learningRate, p.Data.Rows, p.RegularizationStrength, p.MomentumFactor)
		}

		if p.Verbose && (epoch == 1 || epoch%100 == 0) {
			lossStart := time.Now()
			net.ForwardPassDataset(p.Data)
			loss := network.Loss(p.LossFunction, net, net.Output(), p.Classes, p.RegularizationStrength)
			ws.Timings.Loss += time.Since(lossStart)
			logf("epoch %d: %v loss is %f", epoch, p.LossFunction, loss)
		}
	}
	ws.Timings.Overall += time.Since(start)

	return ws
}
