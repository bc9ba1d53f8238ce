package matrix

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Backend selects the implementation of the heavy matrix kernels.  Both
// backends compute the same products; they differ only in summation order.
type Backend int

const (
	// BLAS delegates products, axpy and scaling to gonum's blas32
	// (Sgemm, Saxpy, Sscal).
	BLAS Backend = iota

	// Native uses the loops in this package, with the dense dot kernel
	// picked at startup for the running CPU.
	Native
)

func (b Backend) String() string {
	switch b {
	case BLAS:
		return "blas"
	case Native:
		return "native"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// ParseBackend maps "blas" or "native" to a Backend.
func ParseBackend(name string) (Backend, error) {
	switch name {
	case "blas":
		return BLAS, nil
	case "native":
		return Native, nil
	default:
		return 0, fmt.Errorf("unknown matrix backend %q", name)
	}
}

type kernels interface {
	gemm(a, b, out *Matrix)
	gemmTransposeB(a, b, out *Matrix)
	axpy(alpha float32, x, y []float32)
	scal(alpha float32, x []float32)
}

var (
	current Backend = BLAS
	backend kernels = blasKernels{}
)

// SetBackend switches the kernels used by every subsequent operation.  It is
// not safe to call concurrently with matrix operations.
func SetBackend(b Backend) {
	switch b {
	case BLAS:
		backend = blasKernels{}
	case Native:
		backend = nativeKernels{}
	default:
		panic(fmt.Sprintf("unknown backend %v", b))
	}
	current = b
}

// CurrentBackend returns the backend installed by SetBackend.
func CurrentBackend() Backend {
	return current
}

func general(m *Matrix) blas32.General {
	return blas32.General{
		Rows:   m.Rows,
		Cols:   m.Cols,
		Stride: m.Cols,
		Data:   m.V,
	}
}

func vector(v []float32) blas32.Vector {
	return blas32.Vector{
		N:    len(v),
		Inc:  1,
		Data: v,
	}
}

type blasKernels struct{}

func (blasKernels) gemm(a, b, out *Matrix) {
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, general(a), general(b), 0, general(out))
}

func (blasKernels) gemmTransposeB(a, b, out *Matrix) {
	blas32.Gemm(blas.NoTrans, blas.Trans, 1, general(a), general(b), 0, general(out))
}

func (blasKernels) axpy(alpha float32, x, y []float32) {
	blas32.Axpy(alpha, vector(x), vector(y))
}

func (blasKernels) scal(alpha float32, x []float32) {
	blas32.Scal(alpha, vector(x))
}

type nativeKernels struct{}

// gemm gathers one column of b at a time so every element of out is a single
// denseDot of two contiguous slices.
func (nativeKernels) gemm(a, b, out *Matrix) {
	inner := a.Cols
	col := make([]float32, inner)
	for j := 0; j < b.Cols; j++ {
		for k := range col {
			col[k] = b.V[k*b.Cols+j]
		}
		for i := 0; i < a.Rows; i++ {
			out.V[i*out.Cols+j] = denseDot(a.V[i*inner:i*inner+inner], col)
		}
	}
}

func (nativeKernels) gemmTransposeB(a, b, out *Matrix) {
	inner := a.Cols
	for i := 0; i < a.Rows; i++ {
		aRow := a.V[i*inner : i*inner+inner]
		for j := 0; j < b.Rows; j++ {
			out.V[i*out.Cols+j] = denseDot(aRow, b.V[j*inner:j*inner+inner])
		}
	}
}

func (nativeKernels) axpy(alpha float32, x, y []float32) {
	if len(x) != len(y) {
		panic("mismatched length")
	}
	for i, v := range x {
		y[i] += alpha * v
	}
}

func (nativeKernels) scal(alpha float32, x []float32) {
	for i := range x {
		x[i] *= alpha
	}
}
