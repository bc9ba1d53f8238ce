// Package activation defines the closed set of activation functions a layer
// can apply, together with their derivatives and serialized names.
package activation

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/ahmedtd/perceptron/matrix"
)

// ErrUnknownActivation is returned by Parse for names that are not one of the
// known kinds.
var ErrUnknownActivation = errors.New("unknown activation")

type Kind int

const (
	// None leaves the state untouched.  Input layers use it.
	None Kind = iota
	Sigmoid
	ReLU
	TanH
	Softmax
	Linear
)

// String returns the serialized name of k.
func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Sigmoid:
		return "sigmoid"
	case ReLU:
		return "relu"
	case TanH:
		return "tanH"
	case Softmax:
		return "softmax"
	case Linear:
		return "linear"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Parse maps a serialized name back to its Kind.  "none" is not accepted:
// only layers that carry an activation are ever serialized.
func Parse(name string) (Kind, error) {
	switch name {
	case "sigmoid":
		return Sigmoid, nil
	case "relu":
		return ReLU, nil
	case "tanH":
		return TanH, nil
	case "softmax":
		return Softmax, nil
	case "linear":
		return Linear, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownActivation, name)
	}
}

// Func evaluates the scalar activation at x.  Softmax has no scalar form and
// panics; use Apply on a whole row instead.
func (k Kind) Func(x float32) float32 {
	switch k {
	case None, Linear:
		return x
	case Sigmoid:
		return 1 / (1 + math32.Exp(-x))
	case ReLU:
		if x > 0 {
			return x
		}
		return 0
	case TanH:
		return math32.Tanh(x)
	case Softmax:
		panic("softmax is a row-wise activation")
	default:
		panic(fmt.Sprintf("unimplemented activation %v", k))
	}
}

// Derivative returns f'(x) expressed in terms of y = f(x).
//
// For softmax only the diagonal of the Jacobian is used, which is what
// backpropagation through a hidden softmax layer needs.
func (k Kind) Derivative(y float32) float32 {
	switch k {
	case None, Linear:
		return 1
	case Sigmoid, Softmax:
		return y * (1 - y)
	case ReLU:
		if y > 0 {
			return 1
		}
		return 0
	case TanH:
		return 1 - y*y
	default:
		panic(fmt.Sprintf("unimplemented activation %v", k))
	}
}

// Apply overwrites every element of m with its activation.  Softmax is
// applied independently to each row.
func (k Kind) Apply(m *matrix.Matrix) {
	switch k {
	case None, Linear:
		return
	case Softmax:
		for r := 0; r < m.Rows; r++ {
			softmaxRow(m.RowSlice(r))
		}
	default:
		for i, v := range m.V {
			m.V[i] = k.Func(v)
		}
	}
}

// DerivativeInto writes the elementwise derivative of the activation output y
// into out.
func (k Kind) DerivativeInto(y, out *matrix.Matrix) {
	if !matrix.SameShape(y, out) {
		panic(fmt.Sprintf("dimension mismatch in DerivativeInto: %dx%d vs %dx%d", y.Rows, y.Cols, out.Rows, out.Cols))
	}
	for i, v := range y.V {
		out.V[i] = k.Derivative(v)
	}
}

func softmaxRow(row []float32) {
	// softmax(v) == softmax(v - c); subtracting the max keeps Exp finite.
	maxv := math32.Inf(-1)
	for _, v := range row {
		if v > maxv {
			maxv = v
		}
	}

	var sum float32
	for i, v := range row {
		row[i] = math32.Exp(v - maxv)
		sum += row[i]
	}
	for i := range row {
		row[i] /= sum
	}
}
