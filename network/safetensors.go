package network

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ahmedtd/perceptron/activation"
	"github.com/ahmedtd/perceptron/matrix"
)

// Metadata keys under which the topology travels in a checkpoint.
const (
	MetadataLayerSizes  = "network.layer_sizes"
	MetadataActivations = "network.activations"
)

func weightsKey(i int) string {
	return fmt.Sprintf("connections.%d.weights", i)
}

func biasKey(i int) string {
	return fmt.Sprintf("connections.%d.bias", i)
}

// DumpTensors adds the parameters of net to tensors.  The matrices are shared,
// not copied.
func (net *Network) DumpTensors(tensors map[string]*matrix.Matrix) {
	for i, c := range net.Connections {
		tensors[weightsKey(i)] = c.Weights
		tensors[biasKey(i)] = c.Bias
	}
}

// LoadTensors copies parameters saved by DumpTensors into net.  The tensors
// must match the shapes of net exactly.  Nothing is copied unless every
// parameter is present with the right shape.
func (net *Network) LoadTensors(tensors map[string]*matrix.Matrix) error {
	for i, c := range net.Connections {
		if err := checkEntry(tensors, weightsKey(i), c.Weights); err != nil {
			return err
		}
		if err := checkEntry(tensors, biasKey(i), c.Bias); err != nil {
			return err
		}
	}
	for i, c := range net.Connections {
		matrix.CopyValuesInto(tensors[weightsKey(i)], c.Weights)
		matrix.CopyValuesInto(tensors[biasKey(i)], c.Bias)
	}
	return nil
}

func checkEntry(tensors map[string]*matrix.Matrix, key string, dst *matrix.Matrix) error {
	t, ok := tensors[key]
	if !ok {
		return fmt.Errorf("no entry for %s", key)
	}
	if !matrix.SameShape(t, dst) {
		return fmt.Errorf("wrong shape for %s; got %dx%d want %dx%d", key, t.Rows, t.Cols, dst.Rows, dst.Cols)
	}
	return nil
}

// Metadata describes the topology of net in a form NetworkFromTensors
// understands.
func (net *Network) Metadata() map[string]string {
	sizes := []string{}
	for _, l := range net.Layers {
		sizes = append(sizes, strconv.Itoa(l.Size))
	}
	acts := []string{}
	for _, l := range net.Layers[1:] {
		acts = append(acts, l.Activation.String())
	}
	return map[string]string{
		MetadataLayerSizes:  strings.Join(sizes, ","),
		MetadataActivations: strings.Join(acts, ","),
	}
}

// NetworkFromTensors rebuilds a network from checkpoint metadata and loads its
// parameters from tensors.
func NetworkFromTensors(tensors map[string]*matrix.Matrix, metadata map[string]string) (*Network, error) {
	sizesField, ok := metadata[MetadataLayerSizes]
	if !ok {
		return nil, fmt.Errorf("%w: checkpoint metadata has no %s", ErrMalformed, MetadataLayerSizes)
	}
	actsField, ok := metadata[MetadataActivations]
	if !ok {
		return nil, fmt.Errorf("%w: checkpoint metadata has no %s", ErrMalformed, MetadataActivations)
	}

	sizes := []int{}
	for _, s := range strings.Split(sizesField, ",") {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 || v > maxLayerSize {
			return nil, fmt.Errorf("%w: bad layer size %q", ErrMalformed, s)
		}
		sizes = append(sizes, v)
	}
	if len(sizes) < 2 || len(sizes) > maxLayers {
		return nil, fmt.Errorf("%w: invalid layer count %d", ErrMalformed, len(sizes))
	}

	actNames := strings.Split(actsField, ",")
	if len(actNames) != len(sizes)-1 {
		return nil, fmt.Errorf("%w: %d activations for %d layers", ErrMalformed, len(actNames), len(sizes))
	}
	acts := make([]activation.Kind, len(actNames))
	for i, name := range actNames {
		var err error
		acts[i], err = activation.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("while parsing checkpoint activations: %w", err)
		}
	}

	// Check shapes before allocating anything sized by the metadata.
	for i := 0; i+1 < len(sizes); i++ {
		w, ok := tensors[weightsKey(i)]
		if !ok {
			return nil, fmt.Errorf("no entry for %s", weightsKey(i))
		}
		if w.Rows != sizes[i] || w.Cols != sizes[i+1] {
			return nil, fmt.Errorf("wrong shape for %s; got %dx%d want %dx%d", weightsKey(i), w.Rows, w.Cols, sizes[i], sizes[i+1])
		}
	}

	hidden := []LayerSpec{}
	for i := 1; i < len(sizes)-1; i++ {
		hidden = append(hidden, LayerSpec{Size: sizes[i], Activation: acts[i-1]})
	}
	net := New(sizes[0], hidden, sizes[len(sizes)-1], acts[len(acts)-1], nil)
	if err := net.LoadTensors(tensors); err != nil {
		return nil, err
	}
	return net, nil
}

// TensorDumper is anything that can add its own tensors to a checkpoint, such
// as optimizer state.
type TensorDumper interface {
	DumpTensors(tensors map[string]*matrix.Matrix)
}

// WriteCheckpoint writes net, plus the tensors of every extra, as a safetensors
// checkpoint.
func (net *Network) WriteCheckpoint(w io.Writer, extra ...TensorDumper) error {
	tensors := map[string]*matrix.Matrix{}
	net.DumpTensors(tensors)
	for _, e := range extra {
		e.DumpTensors(tensors)
	}
	if err := matrix.WriteSafeTensors(w, tensors, net.Metadata()); err != nil {
		return fmt.Errorf("while writing checkpoint tensors: %w", err)
	}
	return nil
}

// ReadCheckpoint reads a checkpoint written by WriteCheckpoint.  All tensors in
// the checkpoint are returned too, so extra state can be restored from them.
func ReadCheckpoint(r io.Reader) (*Network, map[string]*matrix.Matrix, error) {
	tensors, metadata, err := matrix.ReadSafeTensors(r)
	if err != nil {
		return nil, nil, fmt.Errorf("while reading checkpoint tensors: %w", err)
	}
	net, err := NetworkFromTensors(tensors, metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("while restoring network: %w", err)
	}
	return net, tensors, nil
}
