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

type TrainCommand struct {
	data dataFlags

	hidden           string
	hiddenActivation string
	outputActivation string
	loss             string

	batchSize      int
	learningRate   float64
	searchTime     float64
	regularization float64
	momentum       float64
	epochs         int
	shuffle        bool
	verbose        bool
	seed           int64

	fromCheckpointFile string
	outputFile         string

	cpuProfileFile string
	backend        string
}

var _ subcommands.Command = (*TrainCommand)(nil)

func (*TrainCommand) Name() string {
	return "train"
}

func (*TrainCommand) Synopsis() string {
	return "Train a network"
}

func (*TrainCommand) Usage() string {
	return `train --data=<file.npz> --x=<name> --y=<name> [flags]
  Train a network and save it.  Outputs ending in .safetensors also keep the
  optimizer momentum, so training can be resumed with --from-checkpoint.
`
}

func (c *TrainCommand) SetFlags(f *flag.FlagSet) {
	c.data.setFlags(f, true)

	f.StringVar(&c.hidden, "hidden", "16", "Comma-separated hidden layer sizes; empty for none")
	f.StringVar(&c.hiddenActivation, "hidden-activation", "relu", "Activation of the hidden layers (sigmoid, relu, tanH, softmax, linear)")
	f.StringVar(&c.outputActivation, "output-activation", "softmax", "Activation of the output layer")
	f.StringVar(&c.loss, "loss", "cross-entropy", "Loss function to report (cross-entropy or mse)")

	f.IntVar(&c.batchSize, "batch-size", 32, "Examples per weight update")
	f.Float64Var(&c.learningRate, "learning-rate", 0.1, "Initial learning rate")
	f.Float64Var(&c.searchTime, "search-time", 0, "Learning rate annealing constant; 0 disables annealing")
	f.Float64Var(&c.regularization, "regularization", 0, "L2 regularization strength")
	f.Float64Var(&c.momentum, "momentum", 0.9, "Momentum factor")
	f.IntVar(&c.epochs, "epochs", 10, "Number of passes over the data")
	f.BoolVar(&c.shuffle, "shuffle", true, "Shuffle the data before every epoch")
	f.BoolVar(&c.verbose, "verbose", false, "Log the loss after the first epoch and every 100th")
	f.Int64Var(&c.seed, "seed", 12345, "Seed for weight initialization and shuffling")

	f.StringVar(&c.fromCheckpointFile, "from-checkpoint", "", "Path to a network (text or .safetensors) to continue training")
	f.StringVar(&c.outputFile, "output", "net.safetensors", "Path to save the trained network (.safetensors checkpoint, otherwise text)")

	f.StringVar(&c.cpuProfileFile, "cpu-profile", "", "Write a CPU profile")
	f.StringVar(&c.backend, "backend", "blas", "Matrix backend (blas or native)")
}

func (c *TrainCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *TrainCommand) executeErr(ctx context.Context) error {
	stopProfile, err := startCPUProfile(c.cpuProfileFile)
	if err != nil {
		return err
	}
	defer stopProfile()

	if err := c.checkFlags(); err != nil {
		return err
	}
	if err := setBackend(c.backend); err != nil {
		return err
	}

	lossFunction, err := network.ParseLossFunction(c.loss)
	if err != nil {
		return err
	}

	data, classes, err := c.data.load()
	if err != nil {
		return fmt.Errorf("while loading data set: %w", err)
	}
	log.Printf("Loaded %d examples with %d features and %d outputs", data.Rows, data.Cols, classes.Cols)

	net, ws, err := c.buildNetwork(data.Cols, classes.Cols)
	if err != nil {
		return err
	}
	log.Printf("Network: %s", net.Topology())
	log.Printf("Matrix kernels: %s", matrix.Features())

	batchSize := min(c.batchSize, data.Rows)

	optimizer.Optimize(optimizer.ParameterSet{
		Network:                net,
		Data:                   data,
		Classes:                classes,
		LossFunction:           lossFunction,
		BatchSize:              batchSize,
		LearningRate:           float32(c.learningRate),
		SearchTime:             float32(c.searchTime),
		RegularizationStrength: float32(c.regularization),
		MomentumFactor:         float32(c.momentum),
		MaxIters:               c.epochs,
		Shuffle:                c.shuffle,
		Verbose:                c.verbose,
		Rand:                   rand.New(rand.NewSource(c.seed)),
		Logf:                   log.Printf,
		Workspace:              ws,
	})

	accuracy := net.Accuracy(data, classes)
	loss := network.Loss(lossFunction, net, net.Output(), classes, float32(c.regularization))
	log.Printf("training-loss=%f training-pct=%.1f", loss, accuracy*100)
	log.Printf("timings overall=%.1f forward=%.1f backprop=%.1f weightupdate=%.1f loss=%.1f",
		ws.Timings.Overall.Seconds(),
		ws.Timings.Forward.Seconds(),
		ws.Timings.Backpropagation.Seconds(),
		ws.Timings.WeightUpdate.Seconds(),
		ws.Timings.Loss.Seconds(),
	)

	if err := saveNetwork(c.outputFile, net, ws); err != nil {
		return fmt.Errorf("while saving network: %w", err)
	}
	log.Printf("Saved network to %s", c.outputFile)

	return nil
}

func (c *TrainCommand) checkFlags() error {
	if c.epochs < 1 {
		return fmt.Errorf("--epochs must be at least 1, got %d", c.epochs)
	}
	if c.batchSize < 1 {
		return fmt.Errorf("--batch-size must be at least 1, got %d", c.batchSize)
	}
	if c.outputFile == "" {
		return fmt.Errorf("--output is required")
	}
	return nil
}

// buildNetwork creates a fresh network from the flags, or restores one (and
// its momentum, if the checkpoint has it) from --from-checkpoint.
func (c *TrainCommand) buildNetwork(numFeatures, numOutputs int) (*network.Network, *optimizer.Workspace, error) {
	if c.fromCheckpointFile == "" {
		hiddenActivation, err := activation.Parse(c.hiddenActivation)
		if err != nil {
			return nil, nil, err
		}
		outputActivation, err := activation.Parse(c.outputActivation)
		if err != nil {
			return nil, nil, err
		}
		hidden, err := parseHidden(c.hidden, hiddenActivation)
		if err != nil {
			return nil, nil, err
		}

		net := network.New(numFeatures, hidden, numOutputs, outputActivation, network.NewGaussian(c.seed))
		return net, optimizer.NewWorkspace(net), nil
	}

	net, tensors, err := loadNetwork(c.fromCheckpointFile)
	if err != nil {
		return nil, nil, fmt.Errorf("while loading initial checkpoint: %w", err)
	}
	if net.InputSize() != numFeatures || net.OutputSize() != numOutputs {
		return nil, nil, fmt.Errorf("checkpoint network is %s, but the data has %d features and %d outputs", net.Topology(), numFeatures, numOutputs)
	}

	ws := optimizer.NewWorkspace(net)
	if tensors != nil {
		if err := ws.LoadTensors(tensors); err != nil {
			log.Printf("Starting without momentum: %v", err)
		}
	}
	return net, ws, nil
}
