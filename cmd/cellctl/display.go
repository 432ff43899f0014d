package main

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/cellstore/cellstore/container"
	"github.com/cellstore/cellstore/internal/buf"
	"github.com/cellstore/cellstore/internal/kind"
)

// displayValue renders the field at idx as human-readable text: a decoded
// scalar/array for known kinds, a hex dump for Unknown/Blob.
func displayValue(c *container.Container, idx int) (string, error) {
	fk, err := c.FieldKindAt(idx)
	if err != nil {
		return "", err
	}
	raw, err := c.FieldBytes(idx)
	if err != nil {
		return "", err
	}

	if fk.Kind == kind.Char16 && fk.IsArray {
		units := make([]uint16, len(raw)/2)
		for i := range units {
			units[i] = uint16(raw[i*2]) | uint16(raw[i*2+1])<<8
		}
		return fmt.Sprintf("%q", string(utf16.Decode(units))), nil
	}

	elemSize := kind.SizeOf(fk.Kind)
	if elemSize == 0 {
		elemSize = 1
	}
	n := len(raw) / elemSize
	if n == 0 {
		return "", nil
	}

	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, displayScalar(raw[i*elemSize:i*elemSize+elemSize], fk.Kind))
	}
	if !fk.IsArray {
		return parts[0], nil
	}
	return "[" + strings.Join(parts, ", ") + "]", nil
}

func displayScalar(b []byte, k kind.Value) string {
	switch k {
	case kind.Bool:
		return fmt.Sprintf("%v", b[0] != 0)
	case kind.Int8:
		return fmt.Sprintf("%d", int8(b[0]))
	case kind.UInt8:
		return fmt.Sprintf("%d", b[0])
	case kind.Char16:
		return fmt.Sprintf("%q", string(rune(buf.U16LE(b))))
	case kind.Int16:
		return fmt.Sprintf("%d", buf.I16LE(b))
	case kind.UInt16:
		return fmt.Sprintf("%d", buf.U16LE(b))
	case kind.Int32:
		return fmt.Sprintf("%d", buf.I32LE(b))
	case kind.UInt32:
		return fmt.Sprintf("%d", buf.U32LE(b))
	case kind.Int64:
		return fmt.Sprintf("%d", buf.I64LE(b))
	case kind.UInt64:
		return fmt.Sprintf("%d", buf.U64LE(b))
	case kind.Ref:
		return fmt.Sprintf("ref(%d)", buf.U64LE(b))
	case kind.Float32:
		return fmt.Sprintf("%g", buf.F32LE(b))
	case kind.Float64:
		return fmt.Sprintf("%g", buf.F64LE(b))
	default:
		return hex.EncodeToString(b)
	}
}
