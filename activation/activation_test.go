package activation

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/ahmedtd/perceptron/matrix"
)

func TestSoftmaxRowsSumToOne(t *testing.T) {
	m := matrix.New(3, 4, []float32{
		1, 2, 3, 4,
		-5, 0, 5, 10,
		100, 100, 100, 100,
	})
	Softmax.Apply(m)

	for r := 0; r < m.Rows; r++ {
		var sum float32
		for _, v := range m.RowSlice(r) {
			assert.GreaterOrEqual(t, v, float32(0))
			assert.LessOrEqual(t, v, float32(1))
			sum += v
		}
		assert.InDelta(t, 1, sum, 1e-2, "row %d", r)
	}
	assert.InDelta(t, 0.25, m.At(2, 0), 1e-6)
}

func TestSoftmaxLargeLogitsStayFinite(t *testing.T) {
	m := matrix.New(1, 2, []float32{1000, 0})
	Softmax.Apply(m)
	assert.InDelta(t, 1, m.At(0, 0), 1e-6)
	assert.InDelta(t, 0, m.At(0, 1), 1e-6)
}

func TestSigmoidRange(t *testing.T) {
	m := matrix.New(1, 5, []float32{-10, -1, 0, 1, 10})
	Sigmoid.Apply(m)
	for _, v := range m.V {
		assert.Greater(t, v, float32(0))
		assert.Less(t, v, float32(1))
	}
	assert.InDelta(t, 0.5, m.At(0, 2), 1e-6)
}

func TestReLU(t *testing.T) {
	m := matrix.New(1, 4, []float32{-2, -0.5, 0, 3})
	ReLU.Apply(m)
	if diff := cmp.Diff(m.V, []float32{0, 0, 0, 3}); diff != "" {
		t.Fatalf("Wrong output; diff (-got +want)\n%s", diff)
	}
}

func TestLinearAndNoneAreIdentity(t *testing.T) {
	for _, k := range []Kind{Linear, None} {
		m := matrix.New(1, 3, []float32{-1, 0, 2})
		k.Apply(m)
		if diff := cmp.Diff(m.V, []float32{-1, 0, 2}); diff != "" {
			t.Fatalf("%v: Wrong output; diff (-got +want)\n%s", k, diff)
		}
	}
}

func TestDerivatives(t *testing.T) {
	testCases := []struct {
		kind Kind
		y    float32
		want float32
	}{
		{Sigmoid, 0.5, 0.25},
		{Softmax, 0.2, 0.16},
		{ReLU, 2, 1},
		{ReLU, 0, 0},
		{TanH, 0.5, 0.75},
		{Linear, 7, 1},
	}
	for _, tc := range testCases {
		assert.InDelta(t, tc.want, tc.kind.Derivative(tc.y), 1e-6, "%v'(%v)", tc.kind, tc.y)
	}
}

func TestDerivativeInto(t *testing.T) {
	y := matrix.New(1, 3, []float32{0, 0.5, 1})
	out := matrix.Zeros(1, 3)
	Sigmoid.DerivativeInto(y, out)
	if diff := cmp.Diff(out.V, []float32{0, 0.25, 0}); diff != "" {
		t.Fatalf("Wrong output; diff (-got +want)\n%s", diff)
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, k := range []Kind{Sigmoid, ReLU, TanH, Softmax, Linear} {
		got, err := Parse(k.String())
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error: %v", k.String(), err)
		}
		if got != k {
			t.Errorf("Parse(%q) = %v, want %v", k.String(), got, k)
		}
	}
}

func TestParseUnknown(t *testing.T) {
	for _, name := range []string{"", "none", "tanh", "gelu"} {
		_, err := Parse(name)
		if !errors.Is(err, ErrUnknownActivation) {
			t.Errorf("Parse(%q) error = %v, want ErrUnknownActivation", name, err)
		}
	}
}
