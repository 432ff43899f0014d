package path_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cellstore/cellstore/internal/path"
)

func TestSingleSegment(t *testing.T) {
	r := path.New("name")
	seg, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, "name", seg.Name)
	require.False(t, seg.HasIdx)
	require.False(t, seg.HasMore)
	require.True(t, r.Done())
}

func TestDottedSegments(t *testing.T) {
	r := path.New("a.b.c")
	for _, want := range []string{"a", "b", "c"} {
		seg, err := r.Next()
		require.NoError(t, err)
		require.Equal(t, want, seg.Name)
	}
	require.True(t, r.Done())
}

func TestIndexedSegment(t *testing.T) {
	r := path.New("items[3]")
	seg, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, "items", seg.Name)
	require.True(t, seg.HasIdx)
	require.Equal(t, uint32(3), seg.Index)
	require.False(t, seg.HasMore)
}

func TestIndexedThenDotted(t *testing.T) {
	r := path.New("items[2].name")
	seg, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, "items", seg.Name)
	require.True(t, seg.HasIdx)
	require.True(t, seg.HasMore)

	seg, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, "name", seg.Name)
	require.False(t, seg.HasMore)
}

func TestUnbalancedBracketIsSyntaxError(t *testing.T) {
	r := path.New("items[2")
	_, err := r.Next()
	require.ErrorIs(t, err, path.ErrSyntax)
}

func TestEmptySegmentIsSyntaxError(t *testing.T) {
	r := path.New("a..b")
	_, err := r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.ErrorIs(t, err, path.ErrSyntax)
}

func TestTrailingDotIsSyntaxError(t *testing.T) {
	r := path.New("a.")
	_, err := r.Next()
	require.ErrorIs(t, err, path.ErrSyntax)
}

func TestNonIntegerIndexIsSyntaxError(t *testing.T) {
	r := path.New("items[x]")
	_, err := r.Next()
	require.ErrorIs(t, err, path.ErrSyntax)
}

func TestReadPastEndIsSyntaxError(t *testing.T) {
	r := path.New("a")
	_, err := r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.ErrorIs(t, err, path.ErrSyntax)
}
