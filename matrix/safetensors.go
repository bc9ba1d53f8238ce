package matrix

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
)

// ErrBadSafeTensors is wrapped by every decode failure in ReadSafeTensors.
var ErrBadSafeTensors = errors.New("malformed safetensors data")

// maxSafeTensorsHeader bounds the JSON header we are willing to buffer.
const maxSafeTensorsHeader = 64 << 20

const safeTensorsMetadataKey = "__metadata__"

type SafeTensorInfo struct {
	DType       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets []int  `json:"data_offsets"`
}

// WriteSafeTensors writes tensors (and optional string metadata) in the
// safetensors format.  Tensors are laid out in sorted key order.
func WriteSafeTensors(w io.Writer, tensors map[string]*Matrix, metadata map[string]string) error {
	header := map[string]any{}
	dataOffset := 0

	keys := []string{}
	for k := range tensors {
		if k == safeTensorsMetadataKey {
			return fmt.Errorf("tensor name %q is reserved", k)
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		begin := dataOffset
		dataOffset += len(tensors[k].V) * 4
		end := dataOffset

		header[k] = SafeTensorInfo{
			DType:       "F32",
			Shape:       []int{tensors[k].Rows, tensors[k].Cols},
			DataOffsets: []int{begin, end},
		}
	}
	if len(metadata) > 0 {
		header[safeTensorsMetadataKey] = metadata
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("while marshaling header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerBytes))); err != nil {
		return fmt.Errorf("while writing header length: %w", err)
	}

	if _, err := w.Write(headerBytes); err != nil {
		return fmt.Errorf("while writing header: %w", err)
	}

	for _, k := range keys {
		if err := binary.Write(w, binary.LittleEndian, tensors[k].V); err != nil {
			return fmt.Errorf("while writing %s values: %w", k, err)
		}
	}

	return nil
}

// ReadSafeTensors reads a safetensors stream written by WriteSafeTensors.
// Only F32 tensors of rank 1 or 2 are accepted; rank 1 tensors load as a
// single row.
func ReadSafeTensors(r io.Reader) (map[string]*Matrix, map[string]string, error) {
	var headerLen uint64
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, nil, fmt.Errorf("while reading header length: %w", err)
	}
	if headerLen > maxSafeTensorsHeader {
		return nil, nil, fmt.Errorf("%w: header length %d too large", ErrBadSafeTensors, headerLen)
	}

	headerBytes := make([]byte, int(headerLen))
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, nil, fmt.Errorf("while reading header: %w", err)
	}

	rawHeader := map[string]json.RawMessage{}
	if err := json.Unmarshal(headerBytes, &rawHeader); err != nil {
		return nil, nil, fmt.Errorf("%w: while parsing header: %v", ErrBadSafeTensors, err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("while reading tensor data: %w", err)
	}

	var metadata map[string]string
	tensors := map[string]*Matrix{}
	for k, raw := range rawHeader {
		if k == safeTensorsMetadataKey {
			if err := json.Unmarshal(raw, &metadata); err != nil {
				return nil, nil, fmt.Errorf("%w: while parsing metadata: %v", ErrBadSafeTensors, err)
			}
			continue
		}

		var hdr SafeTensorInfo
		if err := json.Unmarshal(raw, &hdr); err != nil {
			return nil, nil, fmt.Errorf("%w: while parsing entry %s: %v", ErrBadSafeTensors, k, err)
		}
		if hdr.DType != "F32" {
			return nil, nil, fmt.Errorf("%w: unsupported dtype %s for %s", ErrBadSafeTensors, hdr.DType, k)
		}

		rows, cols := 1, 0
		switch len(hdr.Shape) {
		case 1:
			cols = hdr.Shape[0]
		case 2:
			rows, cols = hdr.Shape[0], hdr.Shape[1]
		default:
			return nil, nil, fmt.Errorf("%w: unsupported shape %v for %s", ErrBadSafeTensors, hdr.Shape, k)
		}
		if rows < 1 || cols < 1 {
			return nil, nil, fmt.Errorf("%w: bad shape %v for %s", ErrBadSafeTensors, hdr.Shape, k)
		}

		if len(hdr.DataOffsets) != 2 {
			return nil, nil, fmt.Errorf("%w: bad data offsets %v for %s", ErrBadSafeTensors, hdr.DataOffsets, k)
		}
		begin, end := hdr.DataOffsets[0], hdr.DataOffsets[1]
		if begin < 0 || end > len(data) || end-begin != rows*cols*4 {
			return nil, nil, fmt.Errorf("%w: data offsets %v out of range for %s", ErrBadSafeTensors, hdr.DataOffsets, k)
		}

		m := Zeros(rows, cols)
		if err := binary.Read(bytes.NewReader(data[begin:end]), binary.LittleEndian, m.V); err != nil {
			return nil, nil, fmt.Errorf("while decoding %s values: %w", k, err)
		}
		tensors[k] = m
	}

	return tensors, metadata, nil
}
