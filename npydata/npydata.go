// Package npydata loads training data saved by numpy (.npy arrays and .npz
// archives of arrays) as float32 matrices and datasets.
//
// Arrays of rank greater than 2 are flattened to (shape[0], product of the
// remaining dimensions), so a batch of 28x28 images loads as one 784-wide row
// per image.  Rank 1 arrays load as a single column.
package npydata

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sbinet/npyio/npy"
	"github.com/sbinet/npyio/npz"

	"github.com/ahmedtd/perceptron/matrix"
)

var (
	// ErrUnsupported is returned for arrays whose dtype or shape cannot be
	// represented as a float32 matrix.
	ErrUnsupported = errors.New("unsupported array")

	// ErrBadLabel is returned by OneHot for labels that are not class indices.
	ErrBadLabel = errors.New("bad class label")
)

// ReadNPY reads one .npy array from r.
func ReadNPY(r io.Reader) (*matrix.Matrix, error) {
	rdr, err := npy.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("while reading npy header: %w", err)
	}

	rows, cols, err := matrixShape(rdr.Header.Descr.Shape)
	if err != nil {
		return nil, err
	}

	values, err := readAs(rdr.Header.Descr.Type, rdr.Read)
	if err != nil {
		return nil, err
	}

	return toMatrix(values, rows, cols, rdr.Header.Descr.Fortran)
}

// LoadNPY reads the array stored in the .npy file at path.
func LoadNPY(path string) (*matrix.Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening npy file: %w", err)
	}
	defer f.Close()

	m, err := ReadNPY(f)
	if err != nil {
		return nil, fmt.Errorf("while reading %s: %w", path, err)
	}
	return m, nil
}

// LoadNPZ reads the array called name from the .npz archive at path.  The
// ".npy" suffix on name is optional.
func LoadNPZ(path, name string) (*matrix.Matrix, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening npz file: %w", err)
	}
	defer r.Close()

	return readNPZEntry(r, name)
}

// Keys lists the arrays stored in the .npz archive at path.
func Keys(path string) ([]string, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening npz file: %w", err)
	}
	defer r.Close()
	return r.Keys(), nil
}

// Load reads an array from path.  For .npz archives name selects the entry;
// for .npy files name is ignored.
func Load(path, name string) (*matrix.Matrix, error) {
	if strings.HasSuffix(path, ".npz") {
		return LoadNPZ(path, name)
	}
	return LoadNPY(path)
}

func readNPZEntry(r *npz.Reader, name string) (*matrix.Matrix, error) {
	if !strings.HasSuffix(name, ".npy") {
		name += ".npy"
	}

	header := r.Header(name)
	if header == nil {
		return nil, fmt.Errorf("no array named %s", name)
	}

	rows, cols, err := matrixShape(header.Descr.Shape)
	if err != nil {
		return nil, fmt.Errorf("while reading %s: %w", name, err)
	}

	values, err := readAs(header.Descr.Type, func(ptr any) error {
		return r.Read(name, ptr)
	})
	if err != nil {
		return nil, fmt.Errorf("while reading %s: %w", name, err)
	}

	m, err := toMatrix(values, rows, cols, header.Descr.Fortran)
	if err != nil {
		return nil, fmt.Errorf("while reading %s: %w", name, err)
	}
	return m, nil
}

func matrixShape(shape []int) (rows, cols int, err error) {
	switch len(shape) {
	case 0:
		return 0, 0, fmt.Errorf("%w: scalar arrays are not supported", ErrUnsupported)
	case 1:
		rows, cols = shape[0], 1
	default:
		rows, cols = shape[0], 1
		for _, s := range shape[1:] {
			cols *= s
		}
	}
	if rows <= 0 || cols <= 0 {
		return 0, 0, fmt.Errorf("%w: empty array of shape %v", ErrUnsupported, shape)
	}
	return rows, cols, nil
}

type numeric interface {
	uint8 | int8 | uint16 | int16 | int32 | int64 | float32 | float64
}

// readAs decodes an array with numpy dtype descr through read and converts it
// to float32.
func readAs(descr string, read func(ptr any) error) ([]float32, error) {
	// Byte order markers: '<' little, '|' not applicable.  npyio handles the
	// byte order; only the kind and width matter here.
	switch strings.TrimLeft(descr, "<|=") {
	case "u1":
		return readConverted[uint8](read)
	case "i1":
		return readConverted[int8](read)
	case "u2":
		return readConverted[uint16](read)
	case "i2":
		return readConverted[int16](read)
	case "i4":
		return readConverted[int32](read)
	case "i8":
		return readConverted[int64](read)
	case "f4":
		var raw []float32
		if err := read(&raw); err != nil {
			return nil, fmt.Errorf("while reading float32 array: %w", err)
		}
		return raw, nil
	case "f8":
		return readConverted[float64](read)
	default:
		return nil, fmt.Errorf("%w: dtype %q", ErrUnsupported, descr)
	}
}

func readConverted[T numeric](read func(ptr any) error) ([]float32, error) {
	var raw []T
	if err := read(&raw); err != nil {
		return nil, fmt.Errorf("while reading %T array: %w", raw, err)
	}
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out, nil
}

func toMatrix(values []float32, rows, cols int, fortran bool) (*matrix.Matrix, error) {
	if len(values) != rows*cols {
		return nil, fmt.Errorf("%w: got %d values for a %dx%d matrix", ErrUnsupported, len(values), rows, cols)
	}
	if !fortran || cols == 1 {
		return matrix.New(rows, cols, values), nil
	}
	// Column-major storage is the transpose of a row-major cols x rows matrix.
	return matrix.Transpose(matrix.New(cols, rows, values)), nil
}

// Scale multiplies every element of m by factor, for example 1/255 to bring
// uint8 pixel intensities into [0, 1].
func Scale(m *matrix.Matrix, factor float32) {
	matrix.ScalarMultiply(m, factor)
}

// OneHot expands a column of class indices into one-hot rows of width
// numClasses.
func OneHot(labels *matrix.Matrix, numClasses int) (*matrix.Dataset, error) {
	if labels.Cols != 1 {
		return nil, fmt.Errorf("%w: labels must be a single column, got %d", ErrBadLabel, labels.Cols)
	}
	if numClasses <= 0 {
		return nil, fmt.Errorf("%w: need at least one class, got %d", ErrBadLabel, numClasses)
	}

	out := matrix.Zeros(labels.Rows, numClasses)
	for i, v := range labels.V {
		class := int(v)
		if float32(class) != v || class < 0 || class >= numClasses {
			return nil, fmt.Errorf("%w: row %d has label %v, want an integer in [0, %d)", ErrBadLabel, i, v, numClasses)
		}
		out.Set(i, class, 1)
	}
	return matrix.DatasetFromMatrix(out), nil
}
