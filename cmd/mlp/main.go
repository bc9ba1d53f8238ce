// Command mlp trains and runs multilayer perceptrons on numpy data sets.
//
// To train: `go run ./cmd/mlp train --data=mnist.npz --x=x_train --y=y_train --classes=10 --input-scale=0.00392156862 --hidden=256 --output=mnist.safetensors`
//
// To evaluate: `go run ./cmd/mlp eval --network=mnist.safetensors --data=mnist.npz --x=x_test --y=y_test --classes=10 --input-scale=0.00392156862`
//
// To see XOR learned from scratch: `go run ./cmd/mlp xor --verbose`
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"

	"github.com/google/subcommands"

	"github.com/ahmedtd/perceptron/activation"
	"github.com/ahmedtd/perceptron/matrix"
	"github.com/ahmedtd/perceptron/network"
	"github.com/ahmedtd/perceptron/npydata"
	"github.com/ahmedtd/perceptron/optimizer"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&TrainCommand{}, "")
	subcommands.Register(&EvalCommand{}, "")
	subcommands.Register(&PredictCommand{}, "")
	subcommands.Register(&InspectCommand{}, "")
	subcommands.Register(&XORCommand{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

// dataFlags selects the arrays a command reads.  With --data set, --x and --y
// name entries of that .npz archive; otherwise they are paths to .npy files.
type dataFlags struct {
	dataFile   string
	xName      string
	yName      string
	numClasses int
	inputScale float64
}

func (d *dataFlags) setFlags(f *flag.FlagSet, withLabels bool) {
	f.StringVar(&d.dataFile, "data", "", "Path to a .npz archive holding the arrays")
	f.StringVar(&d.xName, "x", "x", "Inputs: entry name within --data, or a .npy path")
	f.Float64Var(&d.inputScale, "input-scale", 1, "Multiply every input by this factor (e.g. 1/255 for uint8 images)")
	if withLabels {
		f.StringVar(&d.yName, "y", "y", "Targets: entry name within --data, or a .npy path")
		f.IntVar(&d.numClasses, "classes", 0, "If positive, targets are class indices and are one-hot encoded to this many classes; if 0, targets are used as-is")
	}
}

func (d *dataFlags) loadArray(name string) (*matrix.Matrix, error) {
	if d.dataFile != "" {
		return npydata.LoadNPZ(d.dataFile, name)
	}
	return npydata.LoadNPY(name)
}

func (d *dataFlags) loadInputs() (*matrix.Dataset, error) {
	x, err := d.loadArray(d.xName)
	if err != nil {
		return nil, fmt.Errorf("while loading inputs: %w", err)
	}
	if d.inputScale != 1 {
		npydata.Scale(x, float32(d.inputScale))
	}
	return matrix.DatasetFromMatrix(x), nil
}

func (d *dataFlags) loadTargets() (*matrix.Dataset, error) {
	y, err := d.loadArray(d.yName)
	if err != nil {
		return nil, fmt.Errorf("while loading targets: %w", err)
	}
	if d.numClasses == 0 {
		return matrix.DatasetFromMatrix(y), nil
	}
	classes, err := npydata.OneHot(y, d.numClasses)
	if err != nil {
		return nil, fmt.Errorf("while encoding targets: %w", err)
	}
	return classes, nil
}

func (d *dataFlags) load() (data, classes *matrix.Dataset, err error) {
	data, err = d.loadInputs()
	if err != nil {
		return nil, nil, err
	}
	classes, err = d.loadTargets()
	if err != nil {
		return nil, nil, err
	}
	if data.Rows != classes.Rows {
		return nil, nil, fmt.Errorf("inputs have %d rows but targets have %d", data.Rows, classes.Rows)
	}
	return data, classes, nil
}

func isSafeTensors(path string) bool {
	return strings.HasSuffix(path, ".safetensors")
}

// loadNetwork reads a network in either the text format or as a safetensors
// checkpoint.  For checkpoints, all tensors are returned so callers can
// restore optimizer state from them too.
func loadNetwork(path string) (*network.Network, map[string]*matrix.Matrix, error) {
	if !isSafeTensors(path) {
		net, err := network.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		return net, nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("while opening checkpoint file: %w", err)
	}
	defer f.Close()

	return network.ReadCheckpoint(f)
}

// saveNetwork writes net in the format implied by the extension of path.  The
// optimizer state in ws is only kept by safetensors checkpoints.
func saveNetwork(path string, net *network.Network, ws *optimizer.Workspace) error {
	if !isSafeTensors(path) {
		return net.SaveFile(path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("while creating checkpoint file: %w", err)
	}
	defer f.Close()

	extra := []network.TensorDumper{}
	if ws != nil {
		extra = append(extra, ws)
	}
	if err := net.WriteCheckpoint(f, extra...); err != nil {
		return err
	}
	return f.Close()
}

// parseHidden turns "16,8" into two hidden layers using act.
func parseHidden(sizes string, act activation.Kind) ([]network.LayerSpec, error) {
	specs := []network.LayerSpec{}
	if sizes == "" {
		return specs, nil
	}
	for _, s := range strings.Split(sizes, ",") {
		size, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || size <= 0 {
			return nil, fmt.Errorf("bad hidden layer size %q", s)
		}
		specs = append(specs, network.LayerSpec{Size: size, Activation: act})
	}
	return specs, nil
}

func setBackend(name string) error {
	b, err := matrix.ParseBackend(name)
	if err != nil {
		return err
	}
	matrix.SetBackend(b)
	return nil
}

// startCPUProfile starts profiling into path, if set.  The returned function
// stops it.
func startCPUProfile(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("while creating CPU profile file: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("while starting CPU profile: %w", err)
	}
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}
