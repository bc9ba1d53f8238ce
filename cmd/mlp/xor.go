package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"

	"github.com/google/subcommands"

	"github.com/ahmedtd/perceptron/activation"
	"github.com/ahmedtd/perceptron/matrix"
	"github.com/ahmedtd/perceptron/network"
	"github.com/ahmedtd/perceptron/optimizer"
)

// XORCommand trains a small network on the four XOR examples.  It needs no
// data files, so it doubles as a smoke test of an installation.
type XORCommand struct {
	hiddenSize   int
	activation   string
	learningRate float64
	momentum     float64
	epochs       int
	seed         int64
	verbose      bool
	outputFile   string
}

var _ subcommands.Command = (*XORCommand)(nil)

func (*XORCommand) Name() string {
	return "xor"
}

func (*XORCommand) Synopsis() string {
	return "Learn XOR from scratch"
}

func (*XORCommand) Usage() string {
	return ``
}

func (c *XORCommand) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.hiddenSize, "hidden-size", 8, "Size of the hidden layer")
	f.StringVar(&c.activation, "hidden-activation", "tanH", "Activation of the hidden layer")
	f.Float64Var(&c.learningRate, "learning-rate", 0.5, "Learning rate")
	f.Float64Var(&c.momentum, "momentum", 0.5, "Momentum factor")
	f.IntVar(&c.epochs, "epochs", 2000, "Number of passes over the four examples")
	f.Int64Var(&c.seed, "seed", 1, "Seed for weight initialization and shuffling")
	f.BoolVar(&c.verbose, "verbose", false, "Log the loss periodically")
	f.StringVar(&c.outputFile, "output", "", "If set, save the trained network here")
}

func (c *XORCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func xorDataset() (data, classes *matrix.Dataset) {
	data = matrix.NewDataset(2, [][]float32{
		{0, 0},
		{0, 1},
		{1, 0},
		{1, 1},
	})
	classes = matrix.NewDataset(2, [][]float32{
		{1, 0},
		{0, 1},
		{0, 1},
		{1, 0},
	})
	return data, classes
}

func (c *XORCommand) executeErr(ctx context.Context) error {
	act, err := activation.Parse(c.activation)
	if err != nil {
		return err
	}
	if c.hiddenSize <= 0 {
		return fmt.Errorf("bad hidden size %d", c.hiddenSize)
	}
	if c.epochs < 1 {
		return fmt.Errorf("--epochs must be at least 1, got %d", c.epochs)
	}

	data, classes := xorDataset()
	net := network.New(2, []network.LayerSpec{{Size: c.hiddenSize, Activation: act}}, 2, activation.Softmax, network.NewGaussian(c.seed))
	log.Printf("Network: %s", net.Topology())
	log.Printf("Starting accuracy: %.0f%%", net.Accuracy(data, classes)*100)

	ws := optimizer.Optimize(optimizer.ParameterSet{
		Network:        net,
		Data:           data,
		Classes:        classes,
		LossFunction:   network.CrossEntropy,
		BatchSize:      1,
		LearningRate:   float32(c.learningRate),
		MomentumFactor: float32(c.momentum),
		MaxIters:       c.epochs,
		Shuffle:        true,
		Verbose:        c.verbose,
		Rand:           rand.New(rand.NewSource(c.seed)),
		Logf:           log.Printf,
	})

	log.Printf("Final accuracy: %.0f%%", net.Accuracy(data, classes)*100)
	for i, class := range net.Predict() {
		log.Printf("  %v xor %v -> %d", data.Data[i][0], data.Data[i][1], class)
	}

	if c.outputFile != "" {
		if err := saveNetwork(c.outputFile, net, ws); err != nil {
			return fmt.Errorf("while saving network: %w", err)
		}
	}
	return nil
}
