package container

import (
	"github.com/cellstore/cellstore/cellerr"
	"github.com/cellstore/cellstore/internal/buf"
	"github.com/cellstore/cellstore/internal/kind"
)

// ReferenceIDs returns every id stored across the container's reference
// fields (scalar or inline array), in field order. Used by the registry to
// walk a container's children during cascading unregister (spec §4.F).
func (c *Container) ReferenceIDs() ([]uint64, error) {
	if err := c.checkLive(); err != nil {
		return nil, err
	}
	v, err := c.view()
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for i := 0; i < v.FieldCount(); i++ {
		fd, err := v.Field(i)
		if err != nil {
			return nil, err
		}
		if fd.FieldKind.Kind != kind.Ref {
			continue
		}
		data, err := v.FieldData(i)
		if err != nil {
			return nil, err
		}
		for off := 0; off+8 <= len(data); off += 8 {
			ids = append(ids, buf.U64LE(data[off:]))
		}
	}
	return ids, nil
}

// FindReferenceField scans the container's reference fields for the one
// holding childID, returning its name and, for an inline array of
// references, the element index holding the id. Used by the event
// registry to build a bubbled path without the registry itself tracking
// field/index provenance for every parent link (spec §4.J propagation
// protocol).
func (c *Container) FindReferenceField(childID uint64) (name string, index int, isArray bool, ok bool) {
	if err := c.checkLive(); err != nil {
		return "", 0, false, false
	}
	v, err := c.view()
	if err != nil {
		return "", 0, false, false
	}
	for i := 0; i < v.FieldCount(); i++ {
		fd, err := v.Field(i)
		if err != nil {
			continue
		}
		if fd.FieldKind.Kind != kind.Ref {
			continue
		}
		data, err := v.FieldData(i)
		if err != nil {
			continue
		}
		for off, elem := 0, 0; off+8 <= len(data); off, elem = off+8, elem+1 {
			if buf.U64LE(data[off:]) != childID {
				continue
			}
			nameRaw, err := v.FieldName(i)
			if err != nil {
				continue
			}
			return utf16ToString(nameRaw), elem, fd.FieldKind.IsArray, true
		}
	}
	return "", 0, false, false
}

// WriteRefElem writes id into element idx of the inline reference array
// field name (or the scalar reference itself when idx is 0 and the field
// is not an array). Used by the storage façade to populate one slot of an
// array-of-objects without rebuilding the whole field.
func (c *Container) WriteRefElem(name string, idx int, id uint64) error {
	if err := c.checkLive(); err != nil {
		return err
	}
	fidx, err := c.IndexOf(name)
	if err != nil {
		return err
	}
	if fidx < 0 {
		return cellerr.New(cellerr.NotFound, "field %q", name)
	}
	v, err := c.view()
	if err != nil {
		return err
	}
	fd, err := v.Field(fidx)
	if err != nil {
		return err
	}
	if fd.FieldKind.Kind != kind.Ref {
		return cellerr.New(cellerr.ReferenceKindMismatch, "field %q is not a reference", name)
	}
	data, err := v.FieldData(fidx)
	if err != nil {
		return err
	}
	off := idx * 8
	if off < 0 || off+8 > len(data) {
		return cellerr.New(cellerr.OutOfRange, "field %q index %d", name, idx)
	}
	buf.PutU64LE(data[off:off+8], id)
	return nil
}
