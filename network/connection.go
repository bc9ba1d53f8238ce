package network

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/ahmedtd/perceptron/matrix"
)

// Connection joins layer From to layer To.  It refers to both layers by their
// index in the owning network and owns only its parameters.
type Connection struct {
	From int
	To   int

	// Shape (from.Size, to.Size)
	Weights *matrix.Matrix

	// Shape (1, to.Size)
	Bias *matrix.Matrix
}

// NewConnection allocates zeroed parameters sized for layers[from] and
// layers[to].
func NewConnection(from, to int, layers []*Layer) *Connection {
	if from < 0 || from >= len(layers) || to < 0 || to >= len(layers) {
		panic(fmt.Sprintf("connection %d->%d out of range for %d layers", from, to, len(layers)))
	}
	return &Connection{
		From:    from,
		To:      to,
		Weights: matrix.Zeros(layers[from].Size, layers[to].Size),
		Bias:    matrix.Zeros(1, layers[to].Size),
	}
}

// FromLayer returns the source layer of c within layers.
func (c *Connection) FromLayer(layers []*Layer) *Layer {
	return layers[c.From]
}

// ToLayer returns the destination layer of c within layers.
func (c *Connection) ToLayer(layers []*Layer) *Layer {
	return layers[c.To]
}

// Initialize zeroes the bias and draws every weight from N(0, 1/fanIn), where
// fanIn is the size of the source layer.
func (c *Connection) Initialize(g *Gaussian) {
	matrix.Zero(c.Bias)
	scale := 1 / math32.Sqrt(float32(c.Weights.Rows))
	for i := range c.Weights.V {
		c.Weights.V[i] = g.Next() * scale
	}
}
