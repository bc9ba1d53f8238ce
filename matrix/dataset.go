package matrix

import (
	"fmt"
	"math/rand"
)

// Dataset holds caller-owned training examples as one buffer per row.  Batches
// and shuffles rearrange the row slice headers; the row buffers themselves are
// never copied.
type Dataset struct {
	Rows int
	Cols int
	Data [][]float32
}

// NewDataset wraps rows as a dataset.  Every row must have cols elements.
func NewDataset(cols int, rows [][]float32) *Dataset {
	if len(rows) == 0 || cols <= 0 {
		panic(fmt.Sprintf("invalid dataset shape: %dx%d", len(rows), cols))
	}
	for i, row := range rows {
		if len(row) != cols {
			panic(fmt.Sprintf("dataset row %d has %d columns, want %d", i, len(row), cols))
		}
	}
	return &Dataset{
		Rows: len(rows),
		Cols: cols,
		Data: rows,
	}
}

// DatasetFromMatrix returns a dataset whose rows alias the rows of m.
func DatasetFromMatrix(m *Matrix) *Dataset {
	rows := make([][]float32, m.Rows)
	for i := range rows {
		rows[i] = m.V[i*m.Cols : i*m.Cols+m.Cols : i*m.Cols+m.Cols]
	}
	return &Dataset{
		Rows: m.Rows,
		Cols: m.Cols,
		Data: rows,
	}
}

// ToMatrix copies the dataset into a new contiguous matrix.
func (d *Dataset) ToMatrix() *Matrix {
	out := Zeros(d.Rows, d.Cols)
	for i, row := range d.Data {
		copy(out.V[i*d.Cols:], row)
	}
	return out
}

// Row returns a 1 x Cols matrix sharing storage with row i.
func (d *Dataset) Row(i int) *Matrix {
	if i < 0 || i >= d.Rows {
		panic(fmt.Sprintf("row %d out of range for dataset with %d rows", i, d.Rows))
	}
	return New(1, d.Cols, d.Data[i])
}

// SplitRows returns one 1 x Cols matrix view per row.
func (d *Dataset) SplitRows() []*Matrix {
	rows := make([]*Matrix, d.Rows)
	for i := range rows {
		rows[i] = d.Row(i)
	}
	return rows
}

// CreateBatches partitions the dataset into numBatches contiguous batches.
// Every batch has Rows/numBatches rows, and the first Rows%numBatches batches
// get one more.  Batches reference the rows of d.
func (d *Dataset) CreateBatches(numBatches int) []*Dataset {
	if numBatches <= 0 || numBatches > d.Rows {
		panic(fmt.Sprintf("cannot split %d rows into %d batches", d.Rows, numBatches))
	}
	batches := make([]*Dataset, numBatches)
	remainder := d.Rows % numBatches
	curRow := 0
	for i := range batches {
		size := d.Rows / numBatches
		if i < remainder {
			size++
		}
		batches[i] = &Dataset{
			Rows: size,
			Cols: d.Cols,
			Data: d.Data[curRow : curRow+size : curRow+size],
		}
		curRow += size
	}
	return batches
}

// ShuffleTogether applies the same random permutation to the rows of a and b,
// so example i of a stays aligned with example i of b.
func ShuffleTogether(a, b *Dataset, r *rand.Rand) {
	if a.Rows != b.Rows {
		panic(fmt.Sprintf("dimension mismatch in ShuffleTogether: %d rows vs %d rows", a.Rows, b.Rows))
	}
	// Fisher-Yates, walking forward.
	for i := 0; i < a.Rows-1; i++ {
		j := i + r.Intn(a.Rows-i)
		a.Data[i], a.Data[j] = a.Data[j], a.Data[i]
		b.Data[i], b.Data[j] = b.Data[j], b.Data[i]
	}
}
