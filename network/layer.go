package network

import (
	"fmt"

	"github.com/ahmedtd/perceptron/activation"
	"github.com/ahmedtd/perceptron/matrix"
)

type LayerType int

const (
	Input LayerType = iota
	Hidden
	Output
)

func (t LayerType) String() string {
	switch t {
	case Input:
		return "input"
	case Hidden:
		return "hidden"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("LayerType(%d)", int(t))
	}
}

// Layer is one stage of the network.  State holds the pre-activation values
// of the most recent forward pass, which Activate overwrites in place with the
// activation output.  State has one row per example in the batch.
type Layer struct {
	Type       LayerType
	Size       int
	Activation activation.Kind
	State      *matrix.Matrix
}

// NewLayer allocates a layer with a single-row state.  Input layers always
// get activation.None; every other layer needs a real activation, so that the
// network can be written out and read back.
func NewLayer(t LayerType, size int, act activation.Kind) *Layer {
	if size <= 0 {
		panic(fmt.Sprintf("invalid %v layer size %d", t, size))
	}
	if t == Input {
		act = activation.None
	} else if act <= activation.None || act > activation.Linear {
		panic(fmt.Sprintf("invalid activation %v for %v layer", act, t))
	}
	return &Layer{
		Type:       t,
		Size:       size,
		Activation: act,
		State:      matrix.Zeros(1, size),
	}
}

// Activate applies the layer's activation to State in place.
func (l *Layer) Activate() {
	l.Activation.Apply(l.State)
}

// resetState makes State a rows x Size matrix, reusing the current buffer when
// it already has that shape.  The contents are unspecified afterwards.
func (l *Layer) resetState(rows int) *matrix.Matrix {
	if l.State == nil || l.State.Rows != rows || l.State.Cols != l.Size {
		l.State = matrix.Zeros(rows, l.Size)
	}
	return l.State
}
