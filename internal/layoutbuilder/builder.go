// Package layoutbuilder is the layout builder (spec §4.G): a mutable
// schema description (its setters edit the Builder in place) used as the
// target of a Rescheme; BuildLayout returns freshly allocated bytes of a
// header + descriptor table with a zero-filled data region.
//
// Grounded on the teacher's hive/builder package, which accumulates a set
// of path-keyed edits and only materializes bytes when asked — the same
// "describe now, encode once" shape, generalized from registry keys/values
// to named, typed fields.
package layoutbuilder

import (
	"fmt"
	"sort"
	"unicode/utf16"

	"github.com/cellstore/cellstore/internal/kind"
	"github.com/cellstore/cellstore/internal/layout"
)

// FieldSpec describes one field the builder will lay out.
type FieldSpec struct {
	Name    string
	Kind    kind.Value
	IsArray bool
	// Length is the element count for an array field (1 for a scalar).
	Length int
}

// Builder accumulates field specs before producing layout bytes.
type Builder struct {
	containerName string
	fields        map[string]FieldSpec
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{fields: make(map[string]FieldSpec)}
}

// FromFields seeds a Builder from an existing field list, the building
// block Container.Rebuilder is implemented on top of.
func FromFields(containerName string, fields []FieldSpec) *Builder {
	b := New()
	b.containerName = containerName
	for _, f := range fields {
		b.fields[f.Name] = f
	}
	return b
}

// SetScalar declares (or replaces) name as a scalar field of kind k.
func (b *Builder) SetScalar(name string, k kind.Value) *Builder {
	b.fields[name] = FieldSpec{Name: name, Kind: k, Length: 1}
	return b
}

// SetArray declares (or replaces) name as an inline array field of kind k
// with length elements.
func (b *Builder) SetArray(name string, k kind.Value, length int) *Builder {
	if length < 0 {
		length = 0
	}
	b.fields[name] = FieldSpec{Name: name, Kind: k, IsArray: true, Length: length}
	return b
}

// Remove drops name from the schema, if present.
func (b *Builder) Remove(name string) *Builder {
	delete(b.fields, name)
	return b
}

// Rename moves the field at oldName to newName, preserving its kind/length.
// A no-op if oldName is absent.
func (b *Builder) Rename(oldName, newName string) *Builder {
	f, ok := b.fields[oldName]
	if !ok {
		return b
	}
	delete(b.fields, oldName)
	f.Name = newName
	b.fields[newName] = f
	return b
}

// SetContainerName sets (or clears, with "") the container's own name.
func (b *Builder) SetContainerName(name string) *Builder {
	b.containerName = name
	return b
}

// Fields returns a snapshot of the builder's current field specs, sorted by
// name. Used by BuildLayout and by tests.
func (b *Builder) Fields() []FieldSpec {
	out := make([]FieldSpec, 0, len(b.fields))
	for _, f := range b.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// alignmentFor returns the natural alignment stride for an element of size
// elemSize: 1/2/4/8, per spec §4.G's deterministic alignment rule.
func alignmentFor(elemSize int) int {
	switch {
	case elemSize >= 8:
		return 8
	case elemSize >= 4:
		return 4
	case elemSize >= 2:
		return 2
	default:
		return 1
	}
}

func alignUp(n, a int) int {
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}

// BuildLayout computes the bytes of a fresh header + field descriptor table
// + name region + zero-filled data region, deterministically: fields are
// sorted by name, then the name region and data region are laid out in that
// same order with each field's data slot aligned to its element's natural
// size. Two builders with the same field set always produce byte-identical
// layouts (spec §4.G).
func (b *Builder) BuildLayout() ([]byte, error) {
	fields := b.Fields()
	n := len(fields)

	// Pass 1: compute name region contents/offsets and each field's raw
	// byte length, in sorted-name order (both name and data regions are
	// laid out in field order; this is an implementation choice spec §3
	// leaves open, since only the descriptor offsets are load-bearing).
	nameRegionStart := layout.HeaderSize + n*layout.FieldHeaderSize
	cursor := nameRegionStart

	type built struct {
		spec       FieldSpec
		nameOffset int
		nameUnits  []uint16
		dataOffset int
		dataLen    int
		elemSize   int
	}
	rows := make([]built, n)
	for i, f := range fields {
		units := utf16.Encode([]rune(f.Name))
		rows[i].spec = f
		rows[i].nameOffset = cursor
		rows[i].nameUnits = units
		cursor += len(units) * 2
	}

	var containerNameUnits []uint16
	var containerNameOffset int
	if b.containerName != "" {
		containerNameUnits = utf16.Encode([]rune(b.containerName))
		containerNameOffset = cursor
		cursor += len(containerNameUnits) * 2
	}

	dataRegionStart := cursor
	cursor = dataRegionStart
	for i := range rows {
		elemSize := kind.SizeOf(rows[i].spec.Kind)
		if rows[i].spec.Kind == kind.Ref {
			elemSize = 8
		}
		length := rows[i].spec.Length
		if length < 1 {
			length = 1
		}
		if !rows[i].spec.IsArray {
			length = 1
		}
		align := alignmentFor(elemSize)
		cursor = alignUp(cursor, align)
		rows[i].dataOffset = cursor
		rows[i].elemSize = elemSize
		rows[i].dataLen = elemSize * length
		cursor += rows[i].dataLen
	}

	total := cursor
	out := make([]byte, total)

	h := layout.Header{
		TotalLength:   uint32(total),
		VersionTag:    0,
		FieldCount:    uint32(n),
		NameRegionOff: uint32(nameRegionStart),
		DataRegionOff: uint32(dataRegionStart),
	}
	if len(containerNameUnits) > 0 {
		h.ContainerName = uint32(containerNameOffset)
		h.ContainerNameLn = uint32(len(containerNameUnits))
	}
	if err := layout.EncodeHeader(out, h); err != nil {
		return nil, fmt.Errorf("layoutbuilder: %w", err)
	}

	for j, u := range containerNameUnits {
		out[containerNameOffset+j*2] = byte(u)
		out[containerNameOffset+j*2+1] = byte(u >> 8)
	}
	for i, row := range rows {
		for j, u := range row.nameUnits {
			out[row.nameOffset+j*2] = byte(u)
			out[row.nameOffset+j*2+1] = byte(u >> 8)
		}
		fd := layout.FieldDescriptor{
			NameHash:    layout.NameHash32(nameBytesLE(row.nameUnits)),
			NameOffset:  uint32(row.nameOffset),
			NameLength:  uint16(len(row.nameUnits)),
			FieldKind:   kind.FieldKind{Kind: row.spec.Kind, IsArray: row.spec.IsArray},
			DataOffset:  uint32(row.dataOffset),
			ElementSize: uint16(row.elemSize),
			DataLength:  uint32(row.dataLen),
		}
		descOff := layout.HeaderSize + i*layout.FieldHeaderSize
		if err := layout.EncodeFieldDescriptor(out[descOff:descOff+layout.FieldHeaderSize], fd); err != nil {
			return nil, fmt.Errorf("layoutbuilder: field %q: %w", row.spec.Name, err)
		}
	}

	return out, nil
}

func nameBytesLE(units []uint16) []byte {
	b := make([]byte, len(units)*2)
	for i, u := range units {
		b[i*2] = byte(u)
		b[i*2+1] = byte(u >> 8)
	}
	return b
}
