package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cellstore/cellstore/container"
	"github.com/cellstore/cellstore/internal/kind"
	"github.com/cellstore/cellstore/internal/layoutbuilder"
	"github.com/cellstore/cellstore/internal/pool"
)

var kindNames = map[string]kind.Value{
	"bool":    kind.Bool,
	"int8":    kind.Int8,
	"uint8":   kind.UInt8,
	"char16":  kind.Char16,
	"int16":   kind.Int16,
	"uint16":  kind.UInt16,
	"int32":   kind.Int32,
	"uint32":  kind.UInt32,
	"int64":   kind.Int64,
	"uint64":  kind.UInt64,
	"float32": kind.Float32,
	"float64": kind.Float64,
	"blob":    kind.Blob,
	"ref":     kind.Ref,
}

// parseFieldSpec parses one --field value of the form "name:kind" or
// "name:kind[length]" into a layoutbuilder.FieldSpec.
func parseFieldSpec(spec string) (layoutbuilder.FieldSpec, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 || parts[0] == "" {
		return layoutbuilder.FieldSpec{}, fmt.Errorf("malformed --field %q, want name:kind", spec)
	}
	name, kindPart := parts[0], parts[1]

	length := 1
	isArray := false
	if open := strings.IndexByte(kindPart, '['); open != -1 {
		if !strings.HasSuffix(kindPart, "]") {
			return layoutbuilder.FieldSpec{}, fmt.Errorf("malformed --field %q, unbalanced bracket", spec)
		}
		n, err := strconv.Atoi(kindPart[open+1 : len(kindPart)-1])
		if err != nil {
			return layoutbuilder.FieldSpec{}, fmt.Errorf("malformed --field %q: %w", spec, err)
		}
		length = n
		isArray = true
		kindPart = kindPart[:open]
	}

	k, ok := kindNames[strings.ToLower(kindPart)]
	if !ok {
		return layoutbuilder.FieldSpec{}, fmt.Errorf("unknown kind %q in --field %q", kindPart, spec)
	}
	return layoutbuilder.FieldSpec{Name: name, Kind: k, IsArray: isArray, Length: length}, nil
}

// buildContainer turns the --field flags into a fresh, zero-initialized
// container.
func buildContainer(specs []string) (*container.Container, *pool.Pool, error) {
	b := layoutbuilder.New()
	for _, s := range specs {
		fs, err := parseFieldSpec(s)
		if err != nil {
			return nil, nil, err
		}
		if fs.IsArray {
			b.SetArray(fs.Name, fs.Kind, fs.Length)
		} else {
			b.SetScalar(fs.Name, fs.Kind)
		}
	}
	layoutBytes, err := b.BuildLayout()
	if err != nil {
		return nil, nil, fmt.Errorf("build layout: %w", err)
	}
	p := pool.New()
	c, err := container.FromLayout(p, layoutBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("build container: %w", err)
	}
	return c, p, nil
}
