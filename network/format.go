package network

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ahmedtd/perceptron/activation"
)

// ErrMalformed is wrapped by every structural decode failure in Read.
var ErrMalformed = errors.New("malformed network file")

// Limits on what Read will allocate before any parameter has been parsed.
const (
	maxLayers     = 1 << 12
	maxLayerSize  = 1 << 20
	maxParameters = 1 << 26
)

// Save writes net in the text format:
//
//	<number of layers>
//	<size of each layer, one per line>
//	<activation name of each non-input layer, one per line>
//	<weights of each connection in turn, row-major, one per line>
//	<biases of each connection in turn, one per line>
//
// Values are hexadecimal floating point, so a round trip is exact.
func (net *Network) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%d\n", len(net.Layers))
	for _, l := range net.Layers {
		fmt.Fprintf(bw, "%d\n", l.Size)
	}
	for _, l := range net.Layers[1:] {
		fmt.Fprintf(bw, "%s\n", l.Activation)
	}
	for _, c := range net.Connections {
		for _, v := range c.Weights.V {
			bw.WriteString(formatHexFloat(v))
			bw.WriteByte('\n')
		}
	}
	for _, c := range net.Connections {
		for _, v := range c.Bias.V {
			bw.WriteString(formatHexFloat(v))
			bw.WriteByte('\n')
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("while writing network: %w", err)
	}
	return nil
}

// SaveFile writes net to path in the text format.
func (net *Network) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("while creating network file: %w", err)
	}
	if err := net.Save(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("while closing network file: %w", err)
	}
	return nil
}

// ReadFile reads a network saved by SaveFile.
func ReadFile(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening network file: %w", err)
	}
	defer f.Close()

	net, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("while reading %s: %w", path, err)
	}
	return net, nil
}

// Read parses a network written by Save.  Decimal floats are accepted as well
// as hexadecimal ones.
func Read(r io.Reader) (*Network, error) {
	lr := &lineReader{s: bufio.NewScanner(r)}

	numLayers, err := lr.readInt("layer count")
	if err != nil {
		return nil, err
	}
	if numLayers < 2 || numLayers > maxLayers {
		return nil, fmt.Errorf("%w: line %d: invalid layer count %d", ErrMalformed, lr.line, numLayers)
	}

	sizes := make([]int, numLayers)
	for i := range sizes {
		sizes[i], err = lr.readInt(fmt.Sprintf("size of layer %d", i))
		if err != nil {
			return nil, err
		}
		if sizes[i] <= 0 || sizes[i] > maxLayerSize {
			return nil, fmt.Errorf("%w: line %d: invalid size %d for layer %d", ErrMalformed, lr.line, sizes[i], i)
		}
	}
	numParameters := 0
	for i := 0; i+1 < numLayers; i++ {
		numParameters += (sizes[i] + 1) * sizes[i+1]
	}
	if numParameters > maxParameters {
		return nil, fmt.Errorf("%w: %d parameters exceeds the limit of %d", ErrMalformed, numParameters, maxParameters)
	}

	acts := make([]activation.Kind, numLayers-1)
	for i := range acts {
		name, err := lr.next(fmt.Sprintf("activation of layer %d", i+1))
		if err != nil {
			return nil, err
		}
		acts[i], err = activation.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("while parsing line %d: %w", lr.line, err)
		}
	}

	hidden := []LayerSpec{}
	for i := 1; i < numLayers-1; i++ {
		hidden = append(hidden, LayerSpec{Size: sizes[i], Activation: acts[i-1]})
	}
	net := New(sizes[0], hidden, sizes[numLayers-1], acts[numLayers-2], nil)

	for i, c := range net.Connections {
		for j := range c.Weights.V {
			c.Weights.V[j], err = lr.readFloat(fmt.Sprintf("weight %d of connection %d", j, i))
			if err != nil {
				return nil, err
			}
		}
	}
	for i, c := range net.Connections {
		for j := range c.Bias.V {
			c.Bias.V[j], err = lr.readFloat(fmt.Sprintf("bias %d of connection %d", j, i))
			if err != nil {
				return nil, err
			}
		}
	}

	if err := lr.expectEOF(); err != nil {
		return nil, err
	}

	return net, nil
}

func formatHexFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'x', -1, 32)
}

func parseFloat(s string) (float32, error) {
	// C's printf spells NaN with a sign; strconv does not accept one.
	if strings.EqualFold(s, "-nan") || strings.EqualFold(s, "+nan") {
		s = s[1:]
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}

type lineReader struct {
	s    *bufio.Scanner
	line int
}

func (lr *lineReader) next(what string) (string, error) {
	if !lr.s.Scan() {
		if err := lr.s.Err(); err != nil {
			return "", fmt.Errorf("while reading %s: %w", what, err)
		}
		return "", fmt.Errorf("%w: unexpected end of file reading %s", ErrMalformed, what)
	}
	lr.line++
	return strings.TrimSpace(lr.s.Text()), nil
}

func (lr *lineReader) readInt(what string) (int, error) {
	s, err := lr.next(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: line %d: bad %s %q", ErrMalformed, lr.line, what, s)
	}
	return v, nil
}

func (lr *lineReader) readFloat(what string) (float32, error) {
	s, err := lr.next(what)
	if err != nil {
		return 0, err
	}
	v, err := parseFloat(s)
	if err != nil {
		return 0, fmt.Errorf("%w: line %d: bad %s %q", ErrMalformed, lr.line, what, s)
	}
	return v, nil
}

func (lr *lineReader) expectEOF() error {
	for lr.s.Scan() {
		lr.line++
		if strings.TrimSpace(lr.s.Text()) != "" {
			return fmt.Errorf("%w: line %d: trailing content", ErrMalformed, lr.line)
		}
	}
	if err := lr.s.Err(); err != nil {
		return fmt.Errorf("while reading trailing content: %w", err)
	}
	return nil
}
