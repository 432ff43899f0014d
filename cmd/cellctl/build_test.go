package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cellstore/cellstore/internal/kind"
)

func TestParseFieldSpecScalar(t *testing.T) {
	fs, err := parseFieldSpec("age:int32")
	require.NoError(t, err)
	require.Equal(t, "age", fs.Name)
	require.Equal(t, kind.Int32, fs.Kind)
	require.False(t, fs.IsArray)
}

func TestParseFieldSpecArray(t *testing.T) {
	fs, err := parseFieldSpec("name:char16[16]")
	require.NoError(t, err)
	require.Equal(t, "name", fs.Name)
	require.Equal(t, kind.Char16, fs.Kind)
	require.True(t, fs.IsArray)
	require.Equal(t, 16, fs.Length)
}

func TestParseFieldSpecCaseInsensitiveKind(t *testing.T) {
	fs, err := parseFieldSpec("flag:BOOL")
	require.NoError(t, err)
	require.Equal(t, kind.Bool, fs.Kind)
}

func TestParseFieldSpecRejectsMissingColon(t *testing.T) {
	_, err := parseFieldSpec("age")
	require.Error(t, err)
}

func TestParseFieldSpecRejectsEmptyName(t *testing.T) {
	_, err := parseFieldSpec(":int32")
	require.Error(t, err)
}

func TestParseFieldSpecRejectsUnbalancedBracket(t *testing.T) {
	_, err := parseFieldSpec("vals:int32[4")
	require.Error(t, err)
}

func TestParseFieldSpecRejectsNonIntegerLength(t *testing.T) {
	_, err := parseFieldSpec("vals:int32[x]")
	require.Error(t, err)
}

func TestParseFieldSpecRejectsUnknownKind(t *testing.T) {
	_, err := parseFieldSpec("x:nonsense")
	require.Error(t, err)
}

func TestBuildContainerDeclaresEveryField(t *testing.T) {
	c, _, err := buildContainer([]string{"age:int32", "name:char16[8]"})
	require.NoError(t, err)

	n, err := c.FieldCount()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	idx, err := c.IndexOf("age")
	require.NoError(t, err)
	require.GreaterOrEqual(t, idx, 0)
}

func TestBuildContainerPropagatesParseError(t *testing.T) {
	_, _, err := buildContainer([]string{"bad-spec"})
	require.Error(t, err)
}
