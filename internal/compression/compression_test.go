package compression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantizeDequantize_RoundTripsOnGrid(t *testing.T) {
	vec := []float32{-1.0, -0.5, 0.0, 0.5, 1.0}

	q := Quantize(vec)
	back := q.Dequantize()

	require.Len(t, back, len(vec))
	for i, v := range vec {
		assert.InDelta(t, v, back[i], 0.01)
	}
}

func TestQuantizeDequantize_RepeatedRoundTripIsExact(t *testing.T) {
	vec := []float32{0.12, -0.87, 0.33, 0.0, -1.0, 1.0}

	first := Quantize(vec).Dequantize()
	second := Quantize(first).Dequantize()

	assert.Equal(t, first, second)
}

func TestQuantize_ConstantVectorDoesNotDivideByZero(t *testing.T) {
	vec := []float32{0.4, 0.4, 0.4}

	q := Quantize(vec)
	back := q.Dequantize()

	for _, v := range back {
		assert.InDelta(t, 0.4, v, 0.01)
	}
}

func TestCompressDecompress_RoundTripsExactly(t *testing.T) {
	payload := []byte("motorcycle vector payload, repeated repeated repeated repeated")

	compressed, err := Compress(payload)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(payload)+64)

	decompressed, err := Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, payload, decompressed)
}

func TestMarshalUnmarshalQuantizedVector_RoundTripsExactly(t *testing.T) {
	q := Quantize([]float32{0.1, -0.9, 0.5, 0.0, 1.0})

	restored, err := UnmarshalQuantizedVector(q.Marshal())
	require.NoError(t, err)

	assert.Equal(t, q.Values, restored.Values)
	assert.InDelta(t, q.Scale, restored.Scale, 1e-12)
	assert.InDelta(t, q.Offset, restored.Offset, 1e-12)
}

func TestMarshalUnmarshalQuantizedVector_ThroughCompressDecompress(t *testing.T) {
	q := Quantize([]float32{3, -3, 0, 1.5, -1.5})

	compressed, err := Compress(q.Marshal())
	require.NoError(t, err)

	raw, err := Decompress(compressed)
	require.NoError(t, err)

	restored, err := UnmarshalQuantizedVector(raw)
	require.NoError(t, err)
	assert.Equal(t, q, restored)
}

func TestUnmarshalQuantizedVector_RejectsTruncatedPayload(t *testing.T) {
	_, err := UnmarshalQuantizedVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
