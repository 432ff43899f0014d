// Package migrate is the value migration kernel (spec §4.D): the single
// point that converts a raw byte span of one kind into a raw byte span of
// another kind. Every typed read/write and every per-field Migrate in the
// container package funnels through here.
package migrate

import (
	"fmt"
	"math"

	"github.com/cellstore/cellstore/internal/buf"
	"github.com/cellstore/cellstore/internal/kind"
)

// ErrKernel is wrapped by every failure this package returns.
var ErrKernel = fmt.Errorf("migrate: conversion failed")

// Convert copies/converts src (of kind srcKind) into dst (of kind dstKind).
// explicit permits narrowing conversions that IsImplicitlyConvertible would
// reject. Rules are applied in the order spec §4.D lists them; dst is only
// written to on success.
func Convert(src []byte, srcKind kind.Value, dst []byte, dstKind kind.Value, explicit bool) error {
	if srcKind == dstKind {
		n := len(src)
		if len(dst) < n {
			n = len(dst)
		}
		copy(dst, src[:n])
		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}
		return nil
	}

	if !explicit && !kind.IsImplicitlyConvertible(srcKind, dstKind) {
		return fmt.Errorf("%w: %s -> %s not implicitly convertible", ErrKernel, srcKind, dstKind)
	}
	if !kind.CanCast(srcKind, dstKind, false) {
		return fmt.Errorf("%w: %s -> %s unsupported", ErrKernel, srcKind, dstKind)
	}

	srcSize := kind.SizeOf(srcKind)
	if len(src) < srcSize {
		return fmt.Errorf("%w: source has %d bytes, need %d for %s", ErrKernel, len(src), srcSize, srcKind)
	}

	srcIsBool, srcIsSigned, srcIsUnsigned, srcIsFloat, srcIsChar16 := kind.Class(srcKind)
	_, dstIsSigned, dstIsUnsigned, dstIsFloat, dstIsChar16 := kind.Class(dstKind)

	switch {
	case srcIsBool:
		var v int64
		if src[0] != 0 {
			v = 1
		}
		return writeNumeric(dst, dstKind, dstIsFloat, v, float64(v))

	case dstKind == kind.Bool:
		nonzero := false
		for _, b := range src[:srcSize] {
			if b != 0 {
				nonzero = true
				break
			}
		}
		if nonzero {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
		for i := 1; i < len(dst); i++ {
			dst[i] = 0
		}
		return nil

	case srcIsChar16:
		v := int64(buf.U16LE(src))
		return writeNumeric(dst, dstKind, dstIsFloat, v, float64(v))

	case dstIsChar16:
		var v uint16
		switch {
		case srcIsSigned:
			v = uint16(readSigned(src, srcKind))
		case srcIsUnsigned:
			v = uint16(readUnsigned(src, srcKind))
		case srcIsFloat:
			v = uint16(int64(readFloat(src, srcKind)))
		}
		buf.PutU16LE(dst, v)
		return nil

	case (srcIsSigned || srcIsUnsigned) && (dstIsSigned || dstIsUnsigned):
		var v int64
		if srcIsSigned {
			v = readSigned(src, srcKind)
		} else {
			v = int64(readUnsigned(src, srcKind))
		}
		writeInteger(dst, dstKind, v)
		return nil

	case (srcIsSigned || srcIsUnsigned) && dstIsFloat:
		var v float64
		if srcIsSigned {
			v = float64(readSigned(src, srcKind))
		} else {
			v = float64(readUnsigned(src, srcKind))
		}
		return writeFloat(dst, dstKind, v)

	case srcIsFloat && (dstIsSigned || dstIsUnsigned):
		v := int64(math.Trunc(readFloat(src, srcKind)))
		writeInteger(dst, dstKind, v)
		return nil

	case srcIsFloat && dstIsFloat:
		return writeFloat(dst, dstKind, readFloat(src, srcKind))
	}

	return fmt.Errorf("%w: %s -> %s has no dispatch rule", ErrKernel, srcKind, dstKind)
}

func writeNumeric(dst []byte, dstKind kind.Value, dstIsFloat bool, intVal int64, floatVal float64) error {
	if dstIsFloat {
		return writeFloat(dst, dstKind, floatVal)
	}
	writeInteger(dst, dstKind, intVal)
	return nil
}

func readSigned(b []byte, k kind.Value) int64 {
	switch k {
	case kind.Int8:
		return int64(int8(b[0]))
	case kind.Int16:
		return int64(buf.I16LE(b))
	case kind.Int32:
		return int64(buf.I32LE(b))
	case kind.Int64:
		return buf.I64LE(b)
	default:
		return 0
	}
}

func readUnsigned(b []byte, k kind.Value) uint64 {
	switch k {
	case kind.UInt8:
		return uint64(b[0])
	case kind.UInt16:
		return uint64(buf.U16LE(b))
	case kind.UInt32:
		return uint64(buf.U32LE(b))
	case kind.UInt64:
		return buf.U64LE(b)
	default:
		return 0
	}
}

func readFloat(b []byte, k kind.Value) float64 {
	switch k {
	case kind.Float32:
		return float64(buf.F32LE(b))
	case kind.Float64:
		return buf.F64LE(b)
	default:
		return 0
	}
}

// writeInteger truncates v to dstKind's width with no saturation, per spec
// §4.D rule "Integer -> integer: ... truncation to destination width. No
// saturation."
func writeInteger(dst []byte, k kind.Value, v int64) {
	switch k {
	case kind.Int8, kind.UInt8:
		dst[0] = byte(v)
	case kind.Int16, kind.UInt16:
		buf.PutU16LE(dst, uint16(v))
	case kind.Int32, kind.UInt32:
		buf.PutU32LE(dst, uint32(v))
	case kind.Int64, kind.UInt64:
		buf.PutU64LE(dst, uint64(v))
	}
	for i := kind.SizeOf(k); i < len(dst); i++ {
		dst[i] = 0
	}
}

// writeFloat converts through float64 and narrows to float32 when the
// destination is 32-bit, per spec §4.D.
func writeFloat(dst []byte, k kind.Value, v float64) error {
	switch k {
	case kind.Float32:
		buf.PutF32LE(dst, float32(v))
	case kind.Float64:
		buf.PutF64LE(dst, v)
	default:
		return fmt.Errorf("%w: %s is not a float kind", ErrKernel, k)
	}
	for i := kind.SizeOf(k); i < len(dst); i++ {
		dst[i] = 0
	}
	return nil
}

// ConvertInPlaceSameSize converts each element of an inline array of n
// elements from srcKind to dstKind in place, for the case where the two
// kinds share an element size (e.g. int32->uint32, int16->char16). The
// container is responsible for handling size-changing conversions by
// rescheming the field and calling Convert on the fresh slot instead.
func ConvertInPlaceSameSize(span []byte, n int, srcKind, dstKind kind.Value, explicit bool) error {
	srcSize, dstSize := kind.SizeOf(srcKind), kind.SizeOf(dstKind)
	if srcSize != dstSize {
		return fmt.Errorf("%w: element sizes differ (%d vs %d)", ErrKernel, srcSize, dstSize)
	}
	need := n * srcSize
	if len(span) < need {
		return fmt.Errorf("%w: span has %d bytes, need %d for %d elements", ErrKernel, len(span), need, n)
	}
	scratch := make([]byte, dstSize)
	for i := 0; i < n; i++ {
		elem := span[i*srcSize : i*srcSize+srcSize]
		if err := Convert(elem, srcKind, scratch, dstKind, explicit); err != nil {
			return err
		}
		copy(elem, scratch)
	}
	return nil
}
