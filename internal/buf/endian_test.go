package buf_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cellstore/cellstore/internal/buf"
)

func TestRoundTripIntegers(t *testing.T) {
	b := make([]byte, 8)

	buf.PutU16LE(b, 0xBEEF)
	require.Equal(t, uint16(0xBEEF), buf.U16LE(b))

	buf.PutU32LE(b, 0xDEADBEEF)
	require.Equal(t, uint32(0xDEADBEEF), buf.U32LE(b))

	buf.PutU64LE(b, 0x0102030405060708)
	require.Equal(t, uint64(0x0102030405060708), buf.U64LE(b))

	buf.PutI16LE(b, -1234)
	require.Equal(t, int16(-1234), buf.I16LE(b))

	buf.PutI32LE(b, -123456)
	require.Equal(t, int32(-123456), buf.I32LE(b))

	buf.PutI64LE(b, -123456789012)
	require.Equal(t, int64(-123456789012), buf.I64LE(b))
}

func TestRoundTripFloats(t *testing.T) {
	b := make([]byte, 8)

	buf.PutF32LE(b, 3.5)
	require.Equal(t, float32(3.5), buf.F32LE(b))

	buf.PutF64LE(b, -2.25)
	require.Equal(t, -2.25, buf.F64LE(b))
}

func TestShortReadsReturnZero(t *testing.T) {
	require.Equal(t, uint16(0), buf.U16LE(nil))
	require.Equal(t, uint32(0), buf.U32LE([]byte{1, 2}))
	require.Equal(t, uint64(0), buf.U64LE([]byte{1, 2, 3}))
}

func TestAddOverflowSafe(t *testing.T) {
	sum, ok := buf.AddOverflowSafe(3, 4)
	require.True(t, ok)
	require.Equal(t, 7, sum)

	_, ok = buf.AddOverflowSafe(math.MaxInt, 1)
	require.False(t, ok)
}

func TestSliceAndHas(t *testing.T) {
	b := []byte{0, 1, 2, 3, 4}

	got, ok := buf.Slice(b, 1, 3)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, got)

	_, ok = buf.Slice(b, 3, 3)
	require.False(t, ok)
	require.False(t, buf.Has(b, -1, 2))
	require.True(t, buf.Has(b, 0, 5))
}
