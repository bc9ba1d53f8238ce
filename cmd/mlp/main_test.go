package main

import (
	"context"
	"flag"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ahmedtd/perceptron/activation"
	"github.com/ahmedtd/perceptron/network"
	"github.com/ahmedtd/perceptron/optimizer"
)

func TestParseHidden(t *testing.T) {
	got, err := parseHidden("16, 8", activation.ReLU)
	require.NoError(t, err)

	want := []network.LayerSpec{
		{Size: 16, Activation: activation.ReLU},
		{Size: 8, Activation: activation.ReLU},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Fatalf("Wrong output; diff (-got +want)\n%s", diff)
	}

	got, err = parseHidden("", activation.ReLU)
	require.NoError(t, err)
	require.Empty(t, got)

	for _, bad := range []string{"16,", "0", "-3", "a"} {
		_, err := parseHidden(bad, activation.ReLU)
		require.Error(t, err, "parseHidden(%q)", bad)
	}
}

func TestSaveLoadNetwork(t *testing.T) {
	net := network.New(3, []network.LayerSpec{{Size: 4, Activation: activation.TanH}}, 2, activation.Softmax, network.NewGaussian(7))
	ws := optimizer.NewWorkspace(net)

	for _, name := range []string{"net.txt", "net.safetensors"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, saveNetwork(path, net, ws))

			got, tensors, err := loadNetwork(path)
			require.NoError(t, err)
			require.Equal(t, net.Topology(), got.Topology())
			for i := range net.Connections {
				if diff := cmp.Diff(got.Connections[i].Weights, net.Connections[i].Weights); diff != "" {
					t.Fatalf("connection %d: Wrong output; diff (-got +want)\n%s", i, diff)
				}
			}

			if name == "net.safetensors" {
				require.NoError(t, optimizer.NewWorkspace(got).LoadTensors(tensors))
			} else {
				require.Nil(t, tensors)
			}
		})
	}
}

func TestTrainRejectsBadFlags(t *testing.T) {
	testCases := []struct {
		desc string
		args []string
		flag string
	}{
		{"zero epochs", []string{"--epochs=0"}, "--epochs"},
		{"zero batch size", []string{"--batch-size=0"}, "--batch-size"},
		{"negative batch size", []string{"--batch-size=-4"}, "--batch-size"},
		{"no output", []string{"--output="}, "--output"},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			c := &TrainCommand{}
			f := flag.NewFlagSet("train", flag.ContinueOnError)
			c.SetFlags(f)
			require.NoError(t, f.Parse(tc.args))

			// The flags are rejected before any data is read.
			require.ErrorContains(t, c.executeErr(context.Background()), tc.flag)
		})
	}

	c := &TrainCommand{}
	f := flag.NewFlagSet("train", flag.ContinueOnError)
	c.SetFlags(f)
	require.NoError(t, f.Parse(nil))
	require.NoError(t, c.checkFlags())
}

func TestBadBackend(t *testing.T) {
	require.Error(t, setBackend("gpu"))
}
