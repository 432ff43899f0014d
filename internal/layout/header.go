package layout

import (
	"fmt"

	"github.com/cellstore/cellstore/internal/buf"
)

// Header is the decoded form of the fixed container header (spec §6).
type Header struct {
	TotalLength     uint32
	VersionTag      uint32
	FieldCount      uint32
	NameRegionOff   uint32
	DataRegionOff   uint32
	ContainerName   uint32 // absolute byte offset into the name region, 0 if unnamed
	ContainerNameLn uint32 // length in UTF-16 code units
}

// DecodeHeader decodes the fixed header at the start of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("header: %w (have %d, need %d)", ErrTruncated, len(b), HeaderSize)
	}
	return Header{
		TotalLength:     buf.U32LE(b[offTotalLength:]),
		VersionTag:      buf.U32LE(b[offVersionTag:]),
		FieldCount:      buf.U32LE(b[offFieldCount:]),
		NameRegionOff:   buf.U32LE(b[offNameRegion:]),
		DataRegionOff:   buf.U32LE(b[offDataRegion:]),
		ContainerName:   buf.U32LE(b[offNameOffset:]),
		ContainerNameLn: buf.U32LE(b[offNameLength:]),
	}, nil
}

// EncodeHeader writes h into b[:HeaderSize]. b must be at least HeaderSize long.
func EncodeHeader(b []byte, h Header) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("header: %w (have %d, need %d)", ErrTruncated, len(b), HeaderSize)
	}
	buf.PutU32LE(b[offTotalLength:], h.TotalLength)
	buf.PutU32LE(b[offVersionTag:], h.VersionTag)
	buf.PutU32LE(b[offFieldCount:], h.FieldCount)
	buf.PutU32LE(b[offNameRegion:], h.NameRegionOff)
	buf.PutU32LE(b[offDataRegion:], h.DataRegionOff)
	buf.PutU32LE(b[offNameOffset:], h.ContainerName)
	buf.PutU32LE(b[offNameLength:], h.ContainerNameLn)
	return nil
}
