// Package layout reads and writes the container wire format described in
// spec §6: a fixed header, a sorted field descriptor table, and trailing
// name/data regions. It mirrors internal/format in the teacher package this
// module grew from — fixed-offset structs decoded with bounds-checked
// little-endian reads, never a struct cast over the raw buffer.
package layout

// HeaderSize is the fixed size of the container header. The optional
// container-name offset/length pair always occupies its 8 bytes (zeroed
// when the container is unnamed) so that two builders producing the same
// field set always emit byte-identical headers — required for the layout
// builder's structural caching (spec §4.G).
const HeaderSize = 28

// Container header field offsets (spec §6).
const (
	offTotalLength = 0
	offVersionTag  = 4
	offFieldCount  = 8
	offNameRegion  = 12
	offDataRegion  = 16
	offNameOffset  = 20
	offNameLength  = 24
)

// FieldHeaderSize is the fixed size of one field descriptor.
const FieldHeaderSize = 24

// Field descriptor offsets, relative to the start of the descriptor (spec §6).
const (
	fdNameHash    = 0
	fdNameOffset  = 4
	fdNameLength  = 8
	fdFieldKind   = 10
	fdReserved1   = 11
	fdDataOffset  = 12
	fdElementSize = 16
	fdReserved2   = 18
	fdDataLength  = 20
)

// FieldKindByteOffset is the byte offset of the field-kind byte within a
// field descriptor, exported so Container can stamp a kind in place
// without re-encoding the whole descriptor.
const FieldKindByteOffset = fdFieldKind
