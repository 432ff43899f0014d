package layout_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cellstore/cellstore/internal/kind"
	"github.com/cellstore/cellstore/internal/layout"
	"github.com/cellstore/cellstore/internal/layoutbuilder"
)

func buildTestLayout(t *testing.T) []byte {
	t.Helper()
	b := layoutbuilder.New()
	b.SetScalar("age", kind.Int32)
	b.SetArray("name", kind.Char16, 5)
	b.SetScalar("parent", kind.Ref)
	out, err := b.BuildLayout()
	require.NoError(t, err)
	return out
}

func TestParseRoundTrip(t *testing.T) {
	raw := buildTestLayout(t)
	v, err := layout.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, 3, v.FieldCount())
}

func TestParseRejectsTruncated(t *testing.T) {
	raw := buildTestLayout(t)
	_, err := layout.Parse(raw[:len(raw)-1])
	require.Error(t, err)
}

func TestIndexOfFindsSortedNames(t *testing.T) {
	raw := buildTestLayout(t)
	v, err := layout.Parse(raw)
	require.NoError(t, err)

	for _, name := range []string{"age", "name", "parent"} {
		idx, err := v.IndexOf(utf16LE(name))
		require.NoError(t, err)
		require.GreaterOrEqual(t, idx, 0)
		got, err := v.FieldName(idx)
		require.NoError(t, err)
		require.Equal(t, name, utf16ToString(got))
	}
}

func TestIndexOfAbsentReturnsComplementOfInsertionPoint(t *testing.T) {
	raw := buildTestLayout(t)
	v, err := layout.Parse(raw)
	require.NoError(t, err)

	idx, err := v.IndexOf(utf16LE("zzz"))
	require.NoError(t, err)
	require.Less(t, idx, 0)
	insertion := ^idx
	require.Equal(t, v.FieldCount(), insertion, "zzz sorts after every existing field")
}

func TestFieldDataLengthsMatchDeclaration(t *testing.T) {
	raw := buildTestLayout(t)
	v, err := layout.Parse(raw)
	require.NoError(t, err)

	idx, err := v.IndexOf(utf16LE("name"))
	require.NoError(t, err)
	fd, err := v.Field(idx)
	require.NoError(t, err)
	require.Equal(t, uint32(10), fd.DataLength) // 5 units * 2 bytes
	require.True(t, fd.FieldKind.IsArray)
	require.Equal(t, kind.Char16, fd.FieldKind.Kind)

	data, err := v.FieldData(idx)
	require.NoError(t, err)
	require.Len(t, data, 10)
}

func TestFieldOutOfRange(t *testing.T) {
	raw := buildTestLayout(t)
	v, err := layout.Parse(raw)
	require.NoError(t, err)
	_, err = v.Field(v.FieldCount())
	require.ErrorIs(t, err, layout.ErrOutOfRange)
}

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := layout.Header{
		TotalLength:     100,
		VersionTag:      3,
		FieldCount:      2,
		NameRegionOff:   28,
		DataRegionOff:   60,
		ContainerName:   40,
		ContainerNameLn: 4,
	}
	b := make([]byte, layout.HeaderSize)
	require.NoError(t, layout.EncodeHeader(b, h))
	got, err := layout.DecodeHeader(b)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func utf16LE(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		out = append(out, byte(r), 0)
	}
	return out
}

func utf16ToString(b []byte) string {
	out := make([]rune, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		out = append(out, rune(uint16(b[i])|uint16(b[i+1])<<8))
	}
	return string(out)
}
