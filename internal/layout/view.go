package layout

import (
	"fmt"
	"sort"

	"github.com/cellstore/cellstore/internal/buf"
)

// View is an immutable accessor over a parsed container buffer: the decoded
// header, the field descriptor table, and slices into the name/data
// regions. It does not copy the buffer; every returned slice aliases it
// (spec §9 "Buffer ownership" — callers must treat these as borrows that a
// rescheme invalidates).
type View struct {
	buf    []byte
	Header Header
	fields []FieldDescriptor
}

// Parse decodes the header and field descriptor table of b.
func Parse(b []byte) (View, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return View{}, err
	}
	if int(h.TotalLength) != len(b) {
		return View{}, fmt.Errorf("layout: %w: header length %d != buffer length %d", ErrTruncated, h.TotalLength, len(b))
	}
	n := int(h.FieldCount)
	tableEnd := HeaderSize + n*FieldHeaderSize
	if tableEnd > len(b) {
		return View{}, fmt.Errorf("layout: %w: field table needs %d bytes, have %d", ErrTruncated, tableEnd, len(b))
	}
	fields := make([]FieldDescriptor, n)
	for i := 0; i < n; i++ {
		off := HeaderSize + i*FieldHeaderSize
		fd, err := DecodeFieldDescriptor(b[off : off+FieldHeaderSize])
		if err != nil {
			return View{}, err
		}
		fields[i] = fd
	}
	return View{buf: b, Header: h, fields: fields}, nil
}

// FieldCount returns the number of field descriptors.
func (v View) FieldCount() int { return len(v.fields) }

// Field returns the descriptor at idx.
func (v View) Field(idx int) (FieldDescriptor, error) {
	if idx < 0 || idx >= len(v.fields) {
		return FieldDescriptor{}, fmt.Errorf("layout: %w: field index %d", ErrOutOfRange, idx)
	}
	return v.fields[idx], nil
}

// Fields returns the full descriptor table. The returned slice must not be
// mutated by callers; it aliases the View's internal table.
func (v View) Fields() []FieldDescriptor { return v.fields }

// FieldName returns the UTF-16LE bytes of the field name at idx.
func (v View) FieldName(idx int) ([]byte, error) {
	fd, err := v.Field(idx)
	if err != nil {
		return nil, err
	}
	b, ok := buf.Slice(v.buf, int(fd.NameOffset), int(fd.NameLength)*2)
	if !ok {
		return nil, fmt.Errorf("layout: %w: field %d name", ErrOutOfRange, idx)
	}
	return b, nil
}

// FieldData returns the raw data bytes for the field at idx.
func (v View) FieldData(idx int) ([]byte, error) {
	fd, err := v.Field(idx)
	if err != nil {
		return nil, err
	}
	b, ok := buf.Slice(v.buf, int(fd.DataOffset), int(fd.DataLength))
	if !ok {
		return nil, fmt.Errorf("layout: %w: field %d data", ErrOutOfRange, idx)
	}
	return b, nil
}

// ContainerName returns the container's own name, if any.
func (v View) ContainerName() ([]byte, bool) {
	if v.Header.ContainerNameLn == 0 {
		return nil, false
	}
	b, ok := buf.Slice(v.buf, int(v.Header.ContainerName), int(v.Header.ContainerNameLn)*2)
	return b, ok
}

// compareUTF16 compares two UTF-16LE byte slices ordinally, code unit by
// code unit, matching spec §3's "ordinal lexicographic over UTF-16 units".
func compareUTF16(a, b []byte) int {
	na, nb := len(a)/2, len(b)/2
	for i := 0; i < na && i < nb; i++ {
		ca := buf.U16LE(a[i*2:])
		cb := buf.U16LE(b[i*2:])
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
	}
	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	default:
		return 0
	}
}

// IndexOf binary-searches the sorted field descriptor table for name
// (UTF-16LE bytes). When the name is absent it returns the bitwise
// complement of the insertion point (always negative); current callers only
// test the sign to tell present from absent.
func (v View) IndexOf(nameUTF16LE []byte) (int, error) {
	n := len(v.fields)
	idx := sort.Search(n, func(i int) bool {
		fn, err := v.FieldName(i)
		if err != nil {
			return true
		}
		return compareUTF16(fn, nameUTF16LE) >= 0
	})
	if idx < n {
		fn, err := v.FieldName(idx)
		if err != nil {
			return 0, err
		}
		if compareUTF16(fn, nameUTF16LE) == 0 {
			return idx, nil
		}
	}
	return ^idx, nil
}
