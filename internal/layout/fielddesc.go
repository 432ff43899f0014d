package layout

import (
	"fmt"

	"github.com/cellstore/cellstore/internal/buf"
	"github.com/cellstore/cellstore/internal/kind"
)

// FieldDescriptor is the decoded form of one 24-byte field descriptor row
// (spec §6).
type FieldDescriptor struct {
	NameHash    uint32
	NameOffset  uint32
	NameLength  uint16
	FieldKind   kind.FieldKind
	DataOffset  uint32
	ElementSize uint16
	DataLength  uint32
}

// DecodeFieldDescriptor decodes the descriptor at b[:FieldHeaderSize].
func DecodeFieldDescriptor(b []byte) (FieldDescriptor, error) {
	if len(b) < FieldHeaderSize {
		return FieldDescriptor{}, fmt.Errorf("field descriptor: %w (have %d, need %d)", ErrTruncated, len(b), FieldHeaderSize)
	}
	return FieldDescriptor{
		NameHash:    buf.U32LE(b[fdNameHash:]),
		NameOffset:  buf.U32LE(b[fdNameOffset:]),
		NameLength:  buf.U16LE(b[fdNameLength:]),
		FieldKind:   kind.Decode(b[fdFieldKind]),
		DataOffset:  buf.U32LE(b[fdDataOffset:]),
		ElementSize: buf.U16LE(b[fdElementSize:]),
		DataLength:  buf.U32LE(b[fdDataLength:]),
	}, nil
}

// EncodeFieldDescriptor writes fd into b[:FieldHeaderSize].
func EncodeFieldDescriptor(b []byte, fd FieldDescriptor) error {
	if len(b) < FieldHeaderSize {
		return fmt.Errorf("field descriptor: %w (have %d, need %d)", ErrTruncated, len(b), FieldHeaderSize)
	}
	buf.PutU32LE(b[fdNameHash:], fd.NameHash)
	buf.PutU32LE(b[fdNameOffset:], fd.NameOffset)
	buf.PutU16LE(b[fdNameLength:], fd.NameLength)
	b[fdFieldKind] = kind.Encode(fd.FieldKind)
	b[fdReserved1] = 0
	buf.PutU32LE(b[fdDataOffset:], fd.DataOffset)
	buf.PutU16LE(b[fdElementSize:], fd.ElementSize)
	buf.PutU16LE(b[fdReserved2:], 0)
	buf.PutU32LE(b[fdDataLength:], fd.DataLength)
	return nil
}

// NameHash32 computes the descriptor name-hash (FNV-1a over the UTF-16LE
// bytes). It is stored in each descriptor; lookups compare names directly
// and do not consult it.
func NameHash32(utf16LE []byte) uint32 {
	const (
		offsetBasis = 2166136261
		prime       = 16777619
	)
	h := uint32(offsetBasis)
	for _, c := range utf16LE {
		h ^= uint32(c)
		h *= prime
	}
	return h
}
