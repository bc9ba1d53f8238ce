package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/subcommands"

	"github.com/ahmedtd/perceptron/matrix"
	"github.com/ahmedtd/perceptron/npydata"
)

type InspectCommand struct {
	networkFile string
	dataFile    string
}

var _ subcommands.Command = (*InspectCommand)(nil)

func (*InspectCommand) Name() string {
	return "inspect"
}

func (*InspectCommand) Synopsis() string {
	return "Describe a network, a data archive, and the available matrix kernels"
}

func (*InspectCommand) Usage() string {
	return ``
}

func (c *InspectCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.networkFile, "network", "", "Path to a network to describe")
	f.StringVar(&c.dataFile, "data", "", "Path to a .npz archive whose arrays should be listed")
}

func (c *InspectCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *InspectCommand) executeErr(ctx context.Context) error {
	log.Printf("Matrix backend: %v", matrix.CurrentBackend())
	log.Printf("Matrix kernels: %s", matrix.Features())

	if c.networkFile != "" {
		net, tensors, err := loadNetwork(c.networkFile)
		if err != nil {
			return fmt.Errorf("while loading network: %w", err)
		}
		log.Printf("Network: %s", net.Topology())

		params := 0
		for i, conn := range net.Connections {
			log.Printf("  connection %d: weights %dx%d, bias %d", i, conn.Weights.Rows, conn.Weights.Cols, conn.Bias.Cols)
			params += len(conn.Weights.V) + len(conn.Bias.V)
		}
		log.Printf("Parameters: %d", params)
		if tensors != nil {
			log.Printf("Checkpoint tensors: %d", len(tensors))
		}
	}

	if c.dataFile != "" {
		keys, err := npydata.Keys(c.dataFile)
		if err != nil {
			return fmt.Errorf("while listing data archive: %w", err)
		}
		for _, k := range keys {
			m, err := npydata.LoadNPZ(c.dataFile, k)
			if err != nil {
				return fmt.Errorf("while loading %s: %w", k, err)
			}
			log.Printf("Array %s: %dx%d", k, m.Rows, m.Cols)
		}
	}

	return nil
}
