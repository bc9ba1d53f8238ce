package matrix

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func indexedDataset(rows, cols int) *Dataset {
	data := make([][]float32, rows)
	for i := range data {
		data[i] = make([]float32, cols)
		for j := range data[i] {
			data[i][j] = float32(i*cols + j)
		}
	}
	return NewDataset(cols, data)
}

func TestCreateBatchesSizes(t *testing.T) {
	d := indexedDataset(20, 2)
	batches := d.CreateBatches(6)

	got := []int{}
	for _, b := range batches {
		got = append(got, b.Rows)
	}
	want := []int{4, 4, 3, 3, 3, 3}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Fatalf("Wrong batch sizes; diff (-got +want)\n%s", diff)
	}

	if diff := cmp.Diff(batches[2].Data[0], []float32{16, 17}); diff != "" {
		t.Fatalf("Wrong first row of batch 2; diff (-got +want)\n%s", diff)
	}
}

func TestCreateBatchesSharesRows(t *testing.T) {
	d := indexedDataset(5, 1)
	batches := d.CreateBatches(2)

	batches[1].Data[0][0] = 100
	if d.Data[3][0] != 100 {
		t.Fatalf("batch rows do not alias the dataset rows")
	}
}

func TestCreateBatchesPanicsOnTooManyBatches(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("CreateBatches did not panic")
		}
	}()
	indexedDataset(3, 1).CreateBatches(4)
}

func TestShuffleTogetherKeepsAlignment(t *testing.T) {
	inputs := indexedDataset(50, 3)
	targets := indexedDataset(50, 1)
	for i := range targets.Data {
		targets.Data[i][0] = inputs.Data[i][0]
	}

	ShuffleTogether(inputs, targets, rand.New(rand.NewSource(42)))

	moved := 0
	seen := map[float32]bool{}
	for i := range inputs.Data {
		if inputs.Data[i][0] != targets.Data[i][0] {
			t.Fatalf("row %d misaligned: input %v, target %v", i, inputs.Data[i], targets.Data[i])
		}
		if inputs.Data[i][0] != float32(i*3) {
			moved++
		}
		seen[inputs.Data[i][0]] = true
	}
	if len(seen) != 50 {
		t.Fatalf("shuffle lost rows; %d distinct rows remain", len(seen))
	}
	if moved == 0 {
		t.Fatalf("shuffle left every row in place")
	}
}

func TestDatasetFromMatrixRoundTrip(t *testing.T) {
	m := New(3, 2, []float32{1, 2, 3, 4, 5, 6})
	d := DatasetFromMatrix(m)

	if diff := cmp.Diff(d.Row(1), New(1, 2, []float32{3, 4})); diff != "" {
		t.Fatalf("Wrong row; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(d.ToMatrix(), m); diff != "" {
		t.Fatalf("Wrong output; diff (-got +want)\n%s", diff)
	}
	if got := len(d.SplitRows()); got != 3 {
		t.Fatalf("SplitRows returned %d rows, want 3", got)
	}
}
