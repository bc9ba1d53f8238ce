package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/subcommands"

	"github.com/ahmedtd/perceptron/network"
)

type EvalCommand struct {
	networkFile string
	data        dataFlags
	loss        string
	backend     string
}

var _ subcommands.Command = (*EvalCommand)(nil)

func (*EvalCommand) Name() string {
	return "eval"
}

func (*EvalCommand) Synopsis() string {
	return "Report accuracy and loss of a network on a data set"
}

func (*EvalCommand) Usage() string {
	return ``
}

func (c *EvalCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.networkFile, "network", "", "Path to the network (.safetensors checkpoint, otherwise text)")
	c.data.setFlags(f, true)
	f.StringVar(&c.loss, "loss", "cross-entropy", "Loss function to report (cross-entropy or mse)")
	f.StringVar(&c.backend, "backend", "blas", "Matrix backend (blas or native)")
}

func (c *EvalCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *EvalCommand) executeErr(ctx context.Context) error {
	if err := setBackend(c.backend); err != nil {
		return err
	}

	lossFunction, err := network.ParseLossFunction(c.loss)
	if err != nil {
		return err
	}

	net, _, err := loadNetwork(c.networkFile)
	if err != nil {
		return fmt.Errorf("while loading network: %w", err)
	}

	data, classes, err := c.data.load()
	if err != nil {
		return fmt.Errorf("while loading data set: %w", err)
	}
	if data.Cols != net.InputSize() || classes.Cols != net.OutputSize() {
		return fmt.Errorf("network is %s, but the data has %d features and %d outputs", net.Topology(), data.Cols, classes.Cols)
	}

	accuracy := net.Accuracy(data, classes)
	loss := network.Loss(lossFunction, net, net.Output(), classes, 0)
	log.Printf("examples=%d loss=%f pct=%.2f", data.Rows, loss, accuracy*100)
	return nil
}

type PredictCommand struct {
	networkFile string
	data        dataFlags
	backend     string
}

var _ subcommands.Command = (*PredictCommand)(nil)

func (*PredictCommand) Name() string {
	return "predict"
}

func (*PredictCommand) Synopsis() string {
	return "Print the predicted class of every input row"
}

func (*PredictCommand) Usage() string {
	return ``
}

func (c *PredictCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.networkFile, "network", "", "Path to the network (.safetensors checkpoint, otherwise text)")
	c.data.setFlags(f, false)
	f.StringVar(&c.backend, "backend", "blas", "Matrix backend (blas or native)")
}

func (c *PredictCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *PredictCommand) executeErr(ctx context.Context) error {
	if err := setBackend(c.backend); err != nil {
		return err
	}

	net, _, err := loadNetwork(c.networkFile)
	if err != nil {
		return fmt.Errorf("while loading network: %w", err)
	}

	data, err := c.data.loadInputs()
	if err != nil {
		return fmt.Errorf("while loading data set: %w", err)
	}
	if data.Cols != net.InputSize() {
		return fmt.Errorf("network is %s, but the data has %d features", net.Topology(), data.Cols)
	}

	net.ForwardPassDataset(data)

	w := bufio.NewWriter(os.Stdout)
	for _, class := range net.Predict() {
		fmt.Fprintln(w, class)
	}
	return w.Flush()
}
