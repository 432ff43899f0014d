package container

import (
	"fmt"

	"github.com/cellstore/cellstore/cellerr"
	"github.com/cellstore/cellstore/internal/buf"
	"github.com/cellstore/cellstore/internal/kind"
	"github.com/cellstore/cellstore/internal/layout"
	"github.com/cellstore/cellstore/internal/migrate"
)

// Rescheme replaces the buffer with a new one whose header/descriptor table
// matches newLayoutBytes, migrating each old field by name (spec §4.E
// "Rescheme"):
//
//  1. old field present, same kind and array-ness: copy min(oldLen, newLen).
//  2. old field present, different refness: old bytes discarded; every
//     non-zero id in an old reference field is unregistered.
//  3. old field present, different kind (same or different size): treated
//     as (2) — zero-initialized, since the new layout's data region already
//     starts zeroed.
//  4. old field absent from the new layout: dropped; non-zero reference
//     ids are unregistered the same way as (2).
//
// Container id is preserved; schema-version increments; generation bumps
// because the underlying buffer is always replaced.
func (c *Container) Rescheme(newLayoutBytes []byte) error {
	if err := c.checkLive(); err != nil {
		return err
	}
	newBuf := make([]byte, len(newLayoutBytes))
	copy(newBuf, newLayoutBytes)

	oldView, err := c.view()
	if err != nil {
		return err
	}
	newView, err := layout.Parse(newBuf)
	if err != nil {
		return fmt.Errorf("container: rescheme: %w", err)
	}

	for i := 0; i < oldView.FieldCount(); i++ {
		oldFd, err := oldView.Field(i)
		if err != nil {
			return err
		}
		oldNameRaw, err := oldView.FieldName(i)
		if err != nil {
			return err
		}
		oldData, err := oldView.FieldData(i)
		if err != nil {
			return err
		}

		newIdx, err := newView.IndexOf(oldNameRaw)
		if err != nil {
			return err
		}
		if newIdx < 0 {
			// Case 4: dropped.
			if oldFd.FieldKind.Kind == kind.Ref {
				c.unregisterAllRefs(oldData)
			}
			continue
		}

		newFd, err := newView.Field(newIdx)
		if err != nil {
			return err
		}
		sameShape := oldFd.FieldKind.Kind == newFd.FieldKind.Kind && oldFd.FieldKind.IsArray == newFd.FieldKind.IsArray
		if sameShape {
			// Case 1: copy what fits.
			newData, err := newView.FieldData(newIdx)
			if err != nil {
				return err
			}
			n := len(oldData)
			if len(newData) < n {
				n = len(newData)
			}
			copy(newData, oldData[:n])
			continue
		}

		// Cases 2/3: kind or array-ness changed; the new slot is already
		// zero. Reclaim any reference ids the old field held.
		if oldFd.FieldKind.Kind == kind.Ref {
			c.unregisterAllRefs(oldData)
		}
	}

	c.schemaVersion++
	c.reinit(newBuf, len(newBuf))
	return nil
}

// unregisterAllRefs walks data as a run of 8-byte reference ids and calls
// the registry's unregister hook for every non-zero one (spec §4.F
// "Unregister cascades").
func (c *Container) unregisterAllRefs(data []byte) {
	if c.unregisterRef == nil {
		return
	}
	for off := 0; off+8 <= len(data); off += 8 {
		id := buf.U64LE(data[off:])
		if id != 0 {
			c.unregisterRef(id)
		}
	}
}

// Migrate converts a single non-reference field to targetKind (spec §4.E
// "Migrate<T>"). Reference fields are rejected outright — they are never
// subject to the migration kernel.
func (c *Container) Migrate(idx int, targetKind kind.Value) error {
	if err := c.checkLive(); err != nil {
		return err
	}
	v, err := c.view()
	if err != nil {
		return err
	}
	fd, err := v.Field(idx)
	if err != nil {
		return err
	}
	if fd.FieldKind.Kind == kind.Ref {
		return ErrCannotConvertRef
	}

	oldKind := fd.FieldKind.Kind
	oldSize := kind.SizeOf(oldKind)
	newSize := kind.SizeOf(targetKind)
	count := 1
	if oldSize > 0 {
		count = int(fd.DataLength) / oldSize
	}
	if count < 1 {
		count = 1
	}

	if newSize == oldSize {
		data, err := v.FieldData(idx)
		if err != nil {
			return err
		}
		if err := migrate.ConvertInPlaceSameSize(data, count, oldKind, targetKind, true); err != nil {
			return cellerr.Wrap(cellerr.TypeMismatch, err, "migrate field %d", idx)
		}
		c.stampFieldKind(idx, targetKind)
		return nil
	}

	// Sizes differ: save the old bytes, rescheme the field to the new kind
	// at the same element count, then let the kernel fill the fresh slot.
	name, err := c.FieldNameAt(idx)
	if err != nil {
		return err
	}
	data, err := v.FieldData(idx)
	if err != nil {
		return err
	}
	oldBytes := append([]byte(nil), data...)
	isArray := fd.FieldKind.IsArray

	b, err := c.Rebuilder()
	if err != nil {
		return err
	}
	b.Remove(name)
	if isArray {
		b.SetArray(name, targetKind, count)
	} else {
		b.SetScalar(name, targetKind)
	}
	layoutBytes, err := b.BuildLayout()
	if err != nil {
		return fmt.Errorf("container: %w", err)
	}
	if err := c.Rescheme(layoutBytes); err != nil {
		return err
	}

	newIdx, err := c.IndexOf(name)
	if err != nil {
		return err
	}
	nv, err := c.view()
	if err != nil {
		return err
	}
	newData, err := nv.FieldData(newIdx)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		src := oldBytes[i*oldSize : i*oldSize+oldSize]
		dst := newData[i*newSize : i*newSize+newSize]
		if err := migrate.Convert(src, oldKind, dst, targetKind, true); err != nil {
			return cellerr.Wrap(cellerr.TypeMismatch, err, "migrate field %d element %d", idx, i)
		}
	}
	return nil
}

// EnsureFieldForRead is the generic EnsureFieldForRead<T> operation (spec
// §4.E): a no-op if the field already holds T's kind, a plain kind stamp if
// the field is still Unknown, and a full Migrate otherwise.
func EnsureFieldForRead[T Scalar](c *Container, idx int) error {
	if err := c.checkLive(); err != nil {
		return err
	}
	v, err := c.view()
	if err != nil {
		return err
	}
	fd, err := v.Field(idx)
	if err != nil {
		return err
	}
	tKind := kindOf[T]()
	switch fd.FieldKind.Kind {
	case tKind:
		return nil
	case kind.Unknown:
		c.stampFieldKind(idx, tKind)
		return nil
	default:
		return c.Migrate(idx, tKind)
	}
}
