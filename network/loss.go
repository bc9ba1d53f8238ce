package network

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/ahmedtd/perceptron/matrix"
)

// minNormalFloat32 is the smallest positive normal float32.  Probabilities are
// clamped to it before taking a logarithm.
const minNormalFloat32 = 0x1p-126

type LossFunction int

const (
	CrossEntropy LossFunction = iota
	MeanSquaredError
)

func (l LossFunction) String() string {
	switch l {
	case CrossEntropy:
		return "cross-entropy"
	case MeanSquaredError:
		return "mse"
	default:
		return fmt.Sprintf("LossFunction(%d)", int(l))
	}
}

func ParseLossFunction(name string) (LossFunction, error) {
	switch name {
	case "cross-entropy":
		return CrossEntropy, nil
	case "mse":
		return MeanSquaredError, nil
	default:
		return 0, fmt.Errorf("unknown loss function %q", name)
	}
}

// Loss evaluates the loss of kind for pred against actual.  When net is non-nil
// an L2 penalty of 0.5*lambda*sum(W^2) over its weights is added.
func Loss(kind LossFunction, net *Network, pred *matrix.Matrix, actual *matrix.Dataset, lambda float32) float32 {
	switch kind {
	case CrossEntropy:
		return CrossEntropyLoss(net, pred, actual, lambda)
	case MeanSquaredError:
		return MeanSquaredErrorLoss(net, pred, actual, lambda)
	default:
		panic("unimplemented loss function type")
	}
}

// pred is shape (numExamples, numClasses)
// actual is the one-hot ground truth, same shape as pred.
func CrossEntropyLoss(net *Network, pred *matrix.Matrix, actual *matrix.Dataset, lambda float32) float32 {
	mustMatchPrediction("CrossEntropyLoss", pred, actual)

	var total float32
	for i := 0; i < pred.Rows; i++ {
		p := pred.RowSlice(i)
		for j, y := range actual.Data[i] {
			total += y * math32.Log(max(minNormalFloat32, p[j]))
		}
	}
	return -total/float32(actual.Rows) + regularization(net, lambda)
}

// pred is shape (numExamples, numOutputs)
// actual is the ground truth, same shape as pred.
func MeanSquaredErrorLoss(net *Network, pred *matrix.Matrix, actual *matrix.Dataset, lambda float32) float32 {
	mustMatchPrediction("MeanSquaredErrorLoss", pred, actual)

	var total float32
	for i := 0; i < pred.Rows; i++ {
		p := pred.RowSlice(i)
		for j, y := range actual.Data[i] {
			diff := y - p[j]
			total += diff * diff
		}
	}
	return 0.5*total/float32(actual.Rows) + regularization(net, lambda)
}

func regularization(net *Network, lambda float32) float32 {
	if net == nil {
		return 0
	}
	var sum float32
	for _, c := range net.Connections {
		sum += matrix.SumSquares(c.Weights)
	}
	return 0.5 * lambda * sum
}

func mustMatchPrediction(op string, pred *matrix.Matrix, actual *matrix.Dataset) {
	if pred.Rows != actual.Rows || pred.Cols != actual.Cols {
		panic(fmt.Sprintf("dimension mismatch in %s: prediction %dx%d, actual %dx%d", op, pred.Rows, pred.Cols, actual.Rows, actual.Cols))
	}
}
