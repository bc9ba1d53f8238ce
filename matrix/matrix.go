// Package matrix implements the dense float32 matrices and datasets the
// network engine is built on.
//
// Every operation that combines matrices checks shapes up front and panics on
// a mismatch.  Shape errors are caller bugs, not data errors.
package matrix

import (
	"fmt"
)

// Matrix is a dense, row-major matrix.  Element (r, c) lives at V[r*Cols+c].
type Matrix struct {
	Rows int
	Cols int
	V    []float32
}

// New wraps data as a rows x cols matrix.  If data is nil, fresh storage is
// allocated.  The matrix shares data with the caller.
func New(rows, cols int, data []float32) *Matrix {
	if rows <= 0 || cols <= 0 {
		panic(fmt.Sprintf("invalid shape: %dx%d", rows, cols))
	}
	if data == nil {
		data = make([]float32, rows*cols)
	}
	if len(data) != rows*cols {
		panic(fmt.Sprintf("data has %d elements, want %d for shape %dx%d", len(data), rows*cols, rows, cols))
	}
	return &Matrix{
		Rows: rows,
		Cols: cols,
		V:    data,
	}
}

// Zeros returns a zero-filled rows x cols matrix.
func Zeros(rows, cols int) *Matrix {
	return New(rows, cols, nil)
}

// At returns element (r, c).
func (m *Matrix) At(r, c int) float32 {
	if r < 0 || r >= m.Rows || c < 0 || c >= m.Cols {
		panic(fmt.Sprintf("index (%d, %d) out of range for %dx%d matrix", r, c, m.Rows, m.Cols))
	}
	return m.V[r*m.Cols+c]
}

// Set stores v at (r, c).
func (m *Matrix) Set(r, c int, v float32) {
	if r < 0 || r >= m.Rows || c < 0 || c >= m.Cols {
		panic(fmt.Sprintf("index (%d, %d) out of range for %dx%d matrix", r, c, m.Rows, m.Cols))
	}
	m.V[r*m.Cols+c] = v
}

// RowSlice returns the storage of row r.
func (m *Matrix) RowSlice(r int) []float32 {
	if r < 0 || r >= m.Rows {
		panic(fmt.Sprintf("row %d out of range for %dx%d matrix", r, m.Rows, m.Cols))
	}
	return m.V[r*m.Cols : r*m.Cols+m.Cols]
}

// SameShape reports whether a and b have identical dimensions.
func SameShape(a, b *Matrix) bool {
	return a.Rows == b.Rows && a.Cols == b.Cols
}

func mustSameShape(op string, a, b *Matrix) {
	if !SameShape(a, b) {
		panic(fmt.Sprintf("dimension mismatch in %s: %dx%d vs %dx%d", op, a.Rows, a.Cols, b.Rows, b.Cols))
	}
}

// Copy returns a deep copy of m.
func Copy(m *Matrix) *Matrix {
	out := Zeros(m.Rows, m.Cols)
	copy(out.V, m.V)
	return out
}

// CopyValuesInto overwrites to with the values of from.
func CopyValuesInto(from, to *Matrix) {
	mustSameShape("CopyValuesInto", from, to)
	copy(to.V, from.V)
}

// Zero sets every element of m to 0.
func Zero(m *Matrix) {
	clear(m.V)
}

// Transpose returns a new matrix holding the transpose of m.
func Transpose(m *Matrix) *Matrix {
	out := Zeros(m.Cols, m.Rows)
	TransposeInto(m, out)
	return out
}

// TransposeInto writes the transpose of m into out, which must be m.Cols x m.Rows.
func TransposeInto(m, out *Matrix) {
	if m.Rows != out.Cols || m.Cols != out.Rows {
		panic(fmt.Sprintf("dimension mismatch in TransposeInto: %dx%d into %dx%d", m.Rows, m.Cols, out.Rows, out.Cols))
	}
	for i := 0; i < m.Rows; i++ {
		row := m.V[i*m.Cols : i*m.Cols+m.Cols]
		for j, v := range row {
			out.V[j*out.Cols+i] = v
		}
	}
}

// Add returns a + b.
func Add(a, b *Matrix) *Matrix {
	mustSameShape("Add", a, b)
	out := Copy(a)
	AddTo(b, out)
	return out
}

// AddTo accumulates from into to elementwise.
func AddTo(from, to *Matrix) {
	mustSameShape("AddTo", from, to)
	backend.axpy(1, from.V, to.V)
}

// AddScaledTo accumulates alpha*from into to elementwise.
func AddScaledTo(from, to *Matrix, alpha float32) {
	mustSameShape("AddScaledTo", from, to)
	backend.axpy(alpha, from.V, to.V)
}

// AddToEachRow returns a new matrix whose every row is the corresponding row
// of a plus the row vector b.
func AddToEachRow(a, b *Matrix) *Matrix {
	out := Copy(a)
	AddToEachRowInPlace(out, b)
	return out
}

// AddToEachRowInPlace adds the row vector b to every row of a.
func AddToEachRowInPlace(a, b *Matrix) {
	if b.Rows != 1 || a.Cols != b.Cols {
		panic(fmt.Sprintf("dimension mismatch in AddToEachRow: %dx%d + %dx%d", a.Rows, a.Cols, b.Rows, b.Cols))
	}
	for i := 0; i < a.Rows; i++ {
		row := a.V[i*a.Cols : i*a.Cols+a.Cols]
		for j := range row {
			row[j] += b.V[j]
		}
	}
}

// ScalarMultiply multiplies every element of m by c in place.
func ScalarMultiply(m *Matrix, c float32) {
	backend.scal(c, m.V)
}

// Multiply returns the product a*b.
func Multiply(a, b *Matrix) *Matrix {
	if a.Cols != b.Rows {
		panic(fmt.Sprintf("dimension mismatch in Multiply: %dx%d * %dx%d", a.Rows, a.Cols, b.Rows, b.Cols))
	}
	out := Zeros(a.Rows, b.Cols)
	MultiplyInto(a, b, out)
	return out
}

// MultiplyInto writes a*b into out, which must be a.Rows x b.Cols.
func MultiplyInto(a, b, out *Matrix) {
	if a.Cols != b.Rows {
		panic(fmt.Sprintf("dimension mismatch in MultiplyInto: %dx%d * %dx%d", a.Rows, a.Cols, b.Rows, b.Cols))
	}
	if out.Rows != a.Rows || out.Cols != b.Cols {
		panic(fmt.Sprintf("dimension mismatch in MultiplyInto: output %dx%d, want %dx%d", out.Rows, out.Cols, a.Rows, b.Cols))
	}
	backend.gemm(a, b, out)
}

// MultiplyTransposeBInto writes a*transpose(b) into out, which must be
// a.Rows x b.Rows.  b is never materialized in transposed form.
func MultiplyTransposeBInto(a, b, out *Matrix) {
	if a.Cols != b.Cols {
		panic(fmt.Sprintf("dimension mismatch in MultiplyTransposeBInto: %dx%d * (%dx%d)T", a.Rows, a.Cols, b.Rows, b.Cols))
	}
	if out.Rows != a.Rows || out.Cols != b.Rows {
		panic(fmt.Sprintf("dimension mismatch in MultiplyTransposeBInto: output %dx%d, want %dx%d", out.Rows, out.Cols, a.Rows, b.Rows))
	}
	backend.gemmTransposeB(a, b, out)
}

// Hadamard returns the elementwise product of a and b.
func Hadamard(a, b *Matrix) *Matrix {
	mustSameShape("Hadamard", a, b)
	out := Zeros(a.Rows, a.Cols)
	HadamardInto(a, b, out)
	return out
}

// HadamardInto writes the elementwise product of a and b into out.
func HadamardInto(a, b, out *Matrix) {
	mustSameShape("HadamardInto", a, b)
	mustSameShape("HadamardInto", a, out)
	bv := b.V[:len(a.V)]
	ov := out.V[:len(a.V)]
	for i, v := range a.V {
		ov[i] = v * bv[i]
	}
}

// Equals reports whether a and b have the same shape and bitwise-equal values.
func Equals(a, b *Matrix) bool {
	if !SameShape(a, b) {
		return false
	}
	for i := range a.V {
		if a.V[i] != b.V[i] {
			return false
		}
	}
	return true
}

// SumSquares returns the sum of the squares of all elements of m.
func SumSquares(m *Matrix) float32 {
	var sum float32
	for _, v := range m.V {
		sum += v * v
	}
	return sum
}

// String renders m with two decimals per element, one row per line.
func (m *Matrix) String() string {
	s := ""
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			if j > 0 {
				s += " "
			}
			s += fmt.Sprintf("%.2f", m.V[i*m.Cols+j])
		}
		s += "\n"
	}
	return s
}
