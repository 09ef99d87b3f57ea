// Package compression implements the vector storage-efficiency layer
// (spec.md §4.3, component C5): scalar quantization of float32 embeddings
// to int8, and zstd byte compression, the reference system's dominant
// choice for columnar/vector payloads (ch-go, milvus use zstd in this
// pack; klauspost/compress is the idiomatic Go library for it).
package compression

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
)

// QuantizedVector is a scalar-quantized embedding: each component is an
// int8 in [-127,127], recoverable to within one quantization step of the
// original float32 via Scale and Offset.
type QuantizedVector struct {
	Values []int8
	Scale  float64
	Offset float64
}

// Quantize maps a float32 vector onto the int8 grid [-127,127], storing
// the affine transform needed to invert it exactly on that grid.
func Quantize(vec []float32) QuantizedVector {
	if len(vec) == 0 {
		return QuantizedVector{}
	}
	min, max := vec[0], vec[0]
	for _, v := range vec {
		if float64(v) < float64(min) {
			min = v
		}
		if float64(v) > float64(max) {
			max = v
		}
	}

	rng := float64(max) - float64(min)
	scale := 1.0
	if rng > 0 {
		scale = rng / 254.0
	}
	offset := float64(min)

	values := make([]int8, len(vec))
	for i, v := range vec {
		q := math.Round((float64(v)-offset)/scale) - 127
		if q > 127 {
			q = 127
		}
		if q < -127 {
			q = -127
		}
		values[i] = int8(q)
	}

	return QuantizedVector{Values: values, Scale: scale, Offset: offset}
}

// Dequantize inverts Quantize, returning the vector on the int8 grid (not
// bit-identical to the original float32 input, but round-trips exactly
// through repeated Quantize/Dequantize on that grid).
func (q QuantizedVector) Dequantize() []float32 {
	out := make([]float32, len(q.Values))
	for i, v := range q.Values {
		out[i] = float32((float64(v)+127)*q.Scale + q.Offset)
	}
	return out
}

// Marshal serializes q to a fixed-layout byte slice (scale, offset, then
// one byte per component) ahead of Compress, so the archived blob is
// self-describing and needs no external dimension metadata to invert.
func (q QuantizedVector) Marshal() []byte {
	buf := make([]byte, 16+len(q.Values))
	binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(q.Scale))
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(q.Offset))
	for i, v := range q.Values {
		buf[16+i] = byte(v)
	}
	return buf
}

// UnmarshalQuantizedVector inverts Marshal.
func UnmarshalQuantizedVector(data []byte) (QuantizedVector, error) {
	if len(data) < 16 {
		return QuantizedVector{}, fmt.Errorf("compression: quantized vector payload too short: %d bytes", len(data))
	}
	scale := math.Float64frombits(binary.LittleEndian.Uint64(data[0:8]))
	offset := math.Float64frombits(binary.LittleEndian.Uint64(data[8:16]))
	values := make([]int8, len(data)-16)
	for i, b := range data[16:] {
		values[i] = int8(b)
	}
	return QuantizedVector{Values: values, Scale: scale, Offset: offset}, nil
}

// Compress zstd-compresses an arbitrary byte payload (typically a
// serialized QuantizedVector or batch thereof).
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("compression: creating zstd writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("compression: writing payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compression: closing zstd writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress inverts Compress exactly.
func Decompress(data []byte) ([]byte, error) {
	r, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("compression: creating zstd reader: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("compression: reading decompressed payload: %w", err)
	}
	return out, nil
}
