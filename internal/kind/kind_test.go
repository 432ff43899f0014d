package kind_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellstore/cellstore/internal/kind"
)

func TestFieldKindEncodeDecodeRoundTrip(t *testing.T) {
	cases := []kind.FieldKind{
		{Kind: kind.Bool, IsArray: false},
		{Kind: kind.Int32, IsArray: true},
		{Kind: kind.Ref, IsArray: false},
		{Kind: kind.Blob, IsArray: true},
	}
	for _, fk := range cases {
		got := kind.Decode(kind.Encode(fk))
		assert.Equal(t, fk, got)
	}
}

func TestDecodeInvalidKindBecomesUnknown(t *testing.T) {
	// bits 2..6 set to an index beyond Ref (14) decode to Unknown.
	b := byte(31) << 2
	fk := kind.Decode(b)
	require.Equal(t, kind.Unknown, fk.Kind)
}

func TestSizeOf(t *testing.T) {
	assert.Equal(t, 1, kind.SizeOf(kind.Bool))
	assert.Equal(t, 2, kind.SizeOf(kind.Char16))
	assert.Equal(t, 4, kind.SizeOf(kind.Int32))
	assert.Equal(t, 8, kind.SizeOf(kind.Ref))
	assert.Equal(t, 0, kind.SizeOf(kind.Value(200)))
}

func TestIsImplicitlyConvertibleWideningLattice(t *testing.T) {
	assert.True(t, kind.IsImplicitlyConvertible(kind.Int8, kind.Int32))
	assert.True(t, kind.IsImplicitlyConvertible(kind.UInt8, kind.Int64))
	assert.True(t, kind.IsImplicitlyConvertible(kind.Int32, kind.Float64))
	assert.True(t, kind.IsImplicitlyConvertible(kind.Char16, kind.Int32))
	assert.True(t, kind.IsImplicitlyConvertible(kind.Float32, kind.Float64))

	assert.False(t, kind.IsImplicitlyConvertible(kind.Int32, kind.Int8), "narrowing is never implicit")
	assert.False(t, kind.IsImplicitlyConvertible(kind.Bool, kind.Int8))
	assert.False(t, kind.IsImplicitlyConvertible(kind.Int32, kind.Char16))
	assert.False(t, kind.IsImplicitlyConvertible(kind.Blob, kind.Int8))
	assert.False(t, kind.IsImplicitlyConvertible(kind.Ref, kind.Int64))

	assert.True(t, kind.IsImplicitlyConvertible(kind.UInt32, kind.Int64), "unsigned widens to a strictly larger signed type")
	assert.False(t, kind.IsImplicitlyConvertible(kind.UInt32, kind.Int32), "same-width signed type cannot hold the unsigned range")
	assert.False(t, kind.IsImplicitlyConvertible(kind.UInt16, kind.Int16))
}

func TestCanCastExplicitNarrowing(t *testing.T) {
	assert.True(t, kind.CanCast(kind.Int32, kind.Int8, false))
	assert.True(t, kind.CanCast(kind.Float64, kind.Int8, false))
	assert.True(t, kind.CanCast(kind.Bool, kind.Int32, false))

	assert.False(t, kind.CanCast(kind.Blob, kind.Int8, false))
	assert.False(t, kind.CanCast(kind.Ref, kind.Int8, false))
	assert.False(t, kind.CanCast(kind.Unknown, kind.Int8, false))

	// exact=true only permits already-implicit conversions.
	assert.False(t, kind.CanCast(kind.Int32, kind.Int8, true))
	assert.True(t, kind.CanCast(kind.Int8, kind.Int32, true))
}

func TestClassify(t *testing.T) {
	isBool, isSigned, isUnsigned, isFloat, isChar16 := kind.Class(kind.Int16)
	assert.False(t, isBool)
	assert.True(t, isSigned)
	assert.False(t, isUnsigned)
	assert.False(t, isFloat)
	assert.False(t, isChar16)

	isBool, _, _, _, _ = kind.Class(kind.Bool)
	assert.True(t, isBool)

	_, _, _, _, isChar16 = kind.Class(kind.Char16)
	assert.True(t, isChar16)
}

func TestValueStringAndValid(t *testing.T) {
	assert.Equal(t, "Int32", kind.Int32.String())
	assert.Equal(t, "Invalid", kind.Value(200).String())
	assert.True(t, kind.Valid(kind.Ref))
	assert.False(t, kind.Valid(kind.Value(200)))
}
