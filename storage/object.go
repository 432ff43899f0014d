// Package storage is the StorageObject/StorageArray façade (spec §4.I): a
// lightweight, cheap-to-copy handle over a Container that adds dotted-path
// navigation, string/array sugar, and change notification on top of the
// raw typed Read/Write primitives in package container.
//
// Grounded on the teacher's hive.Key (a cheap value wrapping a cell
// offset plus the owning hive) for the "handle, not owner" shape, and on
// hive/edit for reschematizing a field before writing into it.
package storage

import (
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"

	"github.com/cellstore/cellstore/cellerr"
	"github.com/cellstore/cellstore/container"
	"github.com/cellstore/cellstore/events"
	"github.com/cellstore/cellstore/internal/kind"
	"github.com/cellstore/cellstore/internal/layoutbuilder"
	"github.com/cellstore/cellstore/internal/migrate"
	"github.com/cellstore/cellstore/internal/path"
	"github.com/cellstore/cellstore/internal/pool"
	"github.com/cellstore/cellstore/registry"
)

// stringValueField is the conventional field name that holds a string or
// array value on a referenced child container, used when the named field
// already holds a reference rather than an inline array (spec §4.I
// "stored ... as a direct inline array OR a referenced child container").
// The façade itself never creates such a child.
const stringValueField = "value"

// Object is a lightweight handle over a Container (spec §4.I
// "StorageObject"). Cheap to copy: it carries no cached state beyond the
// collaborators needed to navigate and notify, so every operation re-reads
// the container's current view. A disposed container fails the next op
// through Container's own disposed check; a rescheme does not invalidate
// the handle, which keeps working against the new layout.
type Object struct {
	c   *container.Container
	reg *registry.Registry
	ev  *events.Registry
	p   *pool.Pool
}

// New wraps c as an Object backed by reg (id/parent tracking) and ev
// (change notification), allocating any child containers from p.
func New(c *container.Container, reg *registry.Registry, ev *events.Registry, p *pool.Pool) Object {
	return Object{c: c, reg: reg, ev: ev, p: p}
}

// Container returns the underlying Container.
func (o Object) Container() *container.Container { return o.c }

func (o Object) fieldKind(name string) (kind.FieldKind, error) {
	idx, err := o.c.IndexOf(name)
	if err != nil {
		return kind.FieldKind{}, err
	}
	if idx < 0 {
		return kind.FieldKind{}, cellerr.New(cellerr.NotFound, "field %q", name)
	}
	return o.c.FieldKindAt(idx)
}

// Read is the generic Read<T> operation, delegating straight to
// container.ReadT (spec §4.I "Read/Write typed scalars").
func Read[T container.Scalar](o Object, name string) (T, error) {
	return container.ReadT[T](o.c, name)
}

// Write is the generic Write<T> operation; on success it notifies the
// event registry.
func Write[T container.Scalar](o Object, name string, value T, allowRescheme bool) error {
	if err := container.WriteT(o.c, name, value, allowRescheme); err != nil {
		return err
	}
	if fk, err := o.fieldKind(name); err == nil {
		o.ev.Notify(o.c, name, fk, events.Write)
	}
	return nil
}

func utf16LEBytes(s string) []byte {
	units := utf16.Encode([]rune(s))
	raw := make([]byte, len(units)*2)
	for i, u := range units {
		raw[i*2] = byte(u)
		raw[i*2+1] = byte(u >> 8)
	}
	return raw
}

func utf16LEString(raw []byte) string {
	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = uint16(raw[i*2]) | uint16(raw[i*2+1])<<8
	}
	return string(utf16.Decode(units))
}

// writeInlineArray reschemes name to an inline array of kind k holding
// len(raw)/sizeOf(k) elements only when the current field doesn't already
// match that shape exactly, then writes raw in place.
func (o Object) writeInlineArray(name string, k kind.Value, raw []byte) error {
	elemSize := kind.SizeOf(k)
	if elemSize == 0 {
		elemSize = 1
	}
	count := len(raw) / elemSize

	idx, err := o.c.IndexOf(name)
	if err != nil {
		return err
	}
	matches := false
	if idx >= 0 {
		fk, err := o.c.FieldKindAt(idx)
		if err != nil {
			return err
		}
		n, err := o.c.FieldDataLength(idx)
		if err != nil {
			return err
		}
		matches = fk.Kind == k && fk.IsArray && n == len(raw)
	}
	if !matches {
		b, err := o.c.Rebuilder()
		if err != nil {
			return err
		}
		b.Remove(name).SetArray(name, k, count)
		layoutBytes, err := b.BuildLayout()
		if err != nil {
			return err
		}
		if err := o.c.Rescheme(layoutBytes); err != nil {
			return err
		}
	}
	return o.c.WriteBytes(name, raw)
}

// WriteString stores s as name: inline on the current container if name
// is absent or already inline, or on the existing referenced child if
// name already holds a reference (spec §4.I "WriteString/ReadString").
func (o Object) WriteString(name string, s string) error {
	raw := utf16LEBytes(s)

	idx, err := o.c.IndexOf(name)
	if err != nil {
		return err
	}
	if idx >= 0 {
		fk, err := o.c.FieldKindAt(idx)
		if err != nil {
			return err
		}
		if fk.Kind == kind.Ref {
			child, err := o.resolveChild(name)
			if err != nil {
				return err
			}
			if err := child.writeInlineArray(stringValueField, kind.Char16, raw); err != nil {
				return err
			}
			o.ev.Notify(o.c, name, fk, events.Write)
			return nil
		}
	}
	if err := o.writeInlineArray(name, kind.Char16, raw); err != nil {
		return err
	}
	if fk, err := o.fieldKind(name); err == nil {
		o.ev.Notify(o.c, name, fk, events.Write)
	}
	return nil
}

// ReadString returns the string stored at name, following a reference to
// a child container transparently. Returns "" if name is absent.
func (o Object) ReadString(name string) (string, error) {
	idx, err := o.c.IndexOf(name)
	if err != nil {
		return "", err
	}
	if idx < 0 {
		return "", nil
	}
	fk, err := o.c.FieldKindAt(idx)
	if err != nil {
		return "", err
	}
	if fk.Kind == kind.Ref {
		child, err := o.resolveChild(name)
		if err != nil {
			return "", err
		}
		return child.readInlineString(stringValueField)
	}
	return o.readInlineString(name)
}

func (o Object) readInlineString(name string) (string, error) {
	idx, err := o.c.IndexOf(name)
	if err != nil {
		return "", err
	}
	if idx < 0 {
		return "", nil
	}
	raw, err := o.c.FieldBytes(idx)
	if err != nil {
		return "", err
	}
	return utf16LEString(raw), nil
}

// ReadBlobText decodes name, which must hold a Blob field, as legacy
// Windows-1252 text rather than the UTF-16 convention ReadString assumes.
// Useful for blob fields populated by a non-UTF-16 producer (spec §3 "Blob"
// carries no text encoding of its own).
func (o Object) ReadBlobText(name string) (string, error) {
	idx, err := o.c.IndexOf(name)
	if err != nil {
		return "", err
	}
	if idx < 0 {
		return "", cellerr.New(cellerr.NotFound, "field %q", name)
	}
	fk, err := o.c.FieldKindAt(idx)
	if err != nil {
		return "", err
	}
	if fk.Kind != kind.Blob {
		return "", cellerr.New(cellerr.TypeMismatch, "field %q is not a blob", name)
	}
	raw, err := o.c.FieldBytes(idx)
	if err != nil {
		return "", err
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return "", cellerr.Wrap(cellerr.Unsupported, err, "field %q: windows-1252 decode", name)
	}
	return string(out), nil
}

// WriteArray stores values as an inline array field (spec §4.I
// "WriteArray/ReadArray"). Same inline-or-child-container resolution as
// WriteString.
func WriteArray[T container.Scalar](o Object, name string, values []T) error {
	k := container.KindOf[T]()
	elemSize := kind.SizeOf(k)
	if elemSize == 0 {
		elemSize = 1
	}
	raw := make([]byte, len(values)*elemSize)
	for i, v := range values {
		copy(raw[i*elemSize:], container.EncodeScalar(v))
	}

	idx, err := o.c.IndexOf(name)
	if err != nil {
		return err
	}
	if idx >= 0 {
		fk, err := o.c.FieldKindAt(idx)
		if err != nil {
			return err
		}
		if fk.Kind == kind.Ref && !fk.IsArray {
			child, err := o.resolveChild(name)
			if err != nil {
				return err
			}
			if err := child.writeInlineArray(stringValueField, k, raw); err != nil {
				return err
			}
			o.ev.Notify(o.c, name, fk, events.Write)
			return nil
		}
	}
	if err := o.writeInlineArray(name, k, raw); err != nil {
		return err
	}
	if fk, err := o.fieldKind(name); err == nil {
		o.ev.Notify(o.c, name, fk, events.Write)
	}
	return nil
}

// ReadArray decodes name as an array of T, converting each element from
// its stored kind via the migration kernel.
func ReadArray[T container.Scalar](o Object, name string) ([]T, error) {
	idx, err := o.c.IndexOf(name)
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, nil
	}
	fk, err := o.c.FieldKindAt(idx)
	if err != nil {
		return nil, err
	}
	target := o
	if fk.Kind == kind.Ref && !fk.IsArray {
		child, err := o.resolveChild(name)
		if err != nil {
			return nil, err
		}
		target, name = child, stringValueField
		idx, err = target.c.IndexOf(name)
		if err != nil {
			return nil, err
		}
		fk, err = target.c.FieldKindAt(idx)
		if err != nil {
			return nil, err
		}
	}
	raw, err := target.c.FieldBytes(idx)
	if err != nil {
		return nil, err
	}
	return decodeArray[T](raw, fk.Kind)
}

func decodeArray[T container.Scalar](raw []byte, srcKind kind.Value) ([]T, error) {
	srcSize := kind.SizeOf(srcKind)
	if srcSize == 0 {
		srcSize = 1
	}
	n := len(raw) / srcSize
	tKind := container.KindOf[T]()
	dstSize := kind.SizeOf(tKind)
	out := make([]T, n)
	dst := make([]byte, dstSize)
	for i := 0; i < n; i++ {
		src := raw[i*srcSize : i*srcSize+srcSize]
		if err := migrate.Convert(src, srcKind, dst, tKind, true); err != nil {
			return nil, cellerr.Wrap(cellerr.TypeMismatch, err, "array element %d", i)
		}
		out[i] = container.DecodeScalar[T](dst)
	}
	return out, nil
}

// resolveChild follows a reference field to its registered child Object.
func (o Object) resolveChild(name string) (Object, error) {
	id, err := o.c.GetRef(name)
	if err != nil {
		return Object{}, err
	}
	child, ok := o.reg.Lookup(uint64(id))
	if !ok {
		return Object{}, cellerr.New(cellerr.NotFound, "reference %q (id %d) not registered", name, id)
	}
	return Object{c: child, reg: o.reg, ev: o.ev, p: o.p}, nil
}

// GetObject resolves name to a reference-typed child Object, creating one
// (from layoutIfMissing, or an empty layout when nil) if the field is
// absent (spec §4.I "GetObject").
func (o Object) GetObject(name string, layoutIfMissing []byte) (Object, error) {
	idx, err := o.c.IndexOf(name)
	if err != nil {
		return Object{}, err
	}
	if idx >= 0 {
		return o.resolveChild(name)
	}
	if layoutIfMissing == nil {
		layoutIfMissing, err = layoutbuilder.New().BuildLayout()
		if err != nil {
			return Object{}, err
		}
	}
	child, err := o.reg.CreateAt(o.c, name, layoutIfMissing)
	if err != nil {
		return Object{}, err
	}
	if fk, err := o.fieldKind(name); err == nil {
		o.ev.Notify(o.c, name, fk, events.Write)
	}
	return Object{c: child, reg: o.reg, ev: o.ev, p: o.p}, nil
}

// Delete reschemes to drop name and fires a Delete event for it. If it was
// a reference, the referenced container (or, for a reference array, every
// non-null referenced container) is unregistered; a per-child Delete event
// is fired only for the elements of a reference array (spec §4.I
// "Delete").
func (o Object) Delete(name string) error {
	idx, err := o.c.IndexOf(name)
	if err != nil {
		return err
	}
	if idx < 0 {
		return nil
	}
	fk, err := o.c.FieldKindAt(idx)
	if err != nil {
		return err
	}

	if fk.Kind == kind.Ref {
		if fk.IsArray {
			ids, err := o.arrayRefIDs(idx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if id == container.NullID {
					continue
				}
				child, ok := o.reg.Lookup(id)
				o.reg.UnregisterByID(id)
				if ok {
					o.ev.Notify(child, "", kind.FieldKind{}, events.Delete)
				}
			}
		} else if err := o.reg.UnregisterRef(o.c, name); err != nil {
			return err
		}
	}

	b, err := o.c.Rebuilder()
	if err != nil {
		return err
	}
	b.Remove(name)
	layoutBytes, err := b.BuildLayout()
	if err != nil {
		return err
	}
	if err := o.c.Rescheme(layoutBytes); err != nil {
		return err
	}
	o.ev.Notify(o.c, name, fk, events.Delete)
	return nil
}

func (o Object) arrayRefIDs(idx int) ([]uint64, error) {
	raw, err := o.c.FieldBytes(idx)
	if err != nil {
		return nil, err
	}
	n := len(raw) / 8
	ids := make([]uint64, n)
	for i := 0; i < n; i++ {
		ids[i] = uint64(container.DecodeScalar[container.RefID](raw[i*8 : i*8+8]))
	}
	return ids, nil
}

// Each visits every field currently defined on the container.
func (o Object) Each(fn func(name string, fk kind.FieldKind) error) error {
	n, err := o.c.FieldCount()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		name, err := o.c.FieldNameAt(i)
		if err != nil {
			return err
		}
		fk, err := o.c.FieldKindAt(i)
		if err != nil {
			return err
		}
		if err := fn(name, fk); err != nil {
			return err
		}
	}
	return nil
}

// Navigate walks every segment but the last of pathStr, resolving or
// creating (createIfMissing) intermediate child objects, and returns the
// final Object together with the leaf field name. A leaf segment that
// carries an index (".foo[2]") is itself descended into, in which case the
// returned field name is "" and the returned Object IS the target (spec
// §4.I "Navigation by dotted path").
func (o Object) Navigate(pathStr string, createIfMissing bool) (Object, string, error) {
	r := path.New(pathStr)
	cur := o
	for {
		seg, err := r.Next()
		if err != nil {
			return Object{}, "", cellerr.Wrap(cellerr.PathSyntax, err, "path %q", pathStr)
		}
		if !seg.HasMore && !seg.HasIdx {
			return cur, seg.Name, nil
		}
		var next Object
		if seg.HasIdx {
			next, err = cur.childAt(seg.Name, int(seg.Index), createIfMissing)
		} else {
			if !createIfMissing {
				fidx, err := cur.c.IndexOf(seg.Name)
				if err != nil {
					return Object{}, "", err
				}
				if fidx < 0 {
					return Object{}, "", cellerr.New(cellerr.NotFound, "path %q: field %q", pathStr, seg.Name)
				}
				if id, err := cur.c.GetRef(seg.Name); err == nil && uint64(id) == container.NullID {
					return Object{}, "", cellerr.New(cellerr.NotFound, "path %q: field %q is null", pathStr, seg.Name)
				}
			}
			next, err = cur.GetObject(seg.Name, nil)
		}
		if err != nil {
			return Object{}, "", err
		}
		cur = next
		if !seg.HasMore {
			return cur, "", nil
		}
	}
}

// childAt resolves element idx of reference-array field name, growing the
// array and/or allocating an empty child when createIfMissing is set.
func (o Object) childAt(name string, idx int, createIfMissing bool) (Object, error) {
	fidx, err := o.c.IndexOf(name)
	if err != nil {
		return Object{}, err
	}
	if fidx < 0 {
		if !createIfMissing {
			return Object{}, cellerr.New(cellerr.NotFound, "field %q", name)
		}
		if err := o.growRefArray(name, idx+1); err != nil {
			return Object{}, err
		}
		fidx, err = o.c.IndexOf(name)
		if err != nil {
			return Object{}, err
		}
	}
	fk, err := o.c.FieldKindAt(fidx)
	if err != nil {
		return Object{}, err
	}
	if fk.Kind != kind.Ref || !fk.IsArray {
		return Object{}, cellerr.New(cellerr.ReferenceKindMismatch, "field %q is not a reference array", name)
	}
	n, err := o.c.FieldDataLength(fidx)
	if err != nil {
		return Object{}, err
	}
	if idx < 0 || idx >= n/8 {
		if !createIfMissing {
			return Object{}, cellerr.New(cellerr.OutOfRange, "field %q index %d", name, idx)
		}
		if err := o.growRefArray(name, idx+1); err != nil {
			return Object{}, err
		}
		fidx, err = o.c.IndexOf(name)
		if err != nil {
			return Object{}, err
		}
	}
	ids, err := o.arrayRefIDs(fidx)
	if err != nil {
		return Object{}, err
	}
	id := ids[idx]
	if id == container.NullID {
		if !createIfMissing {
			return Object{}, cellerr.New(cellerr.NotFound, "field %q index %d is empty", name, idx)
		}
		empty, err := layoutbuilder.New().BuildLayout()
		if err != nil {
			return Object{}, err
		}
		child, err := container.FromLayout(o.p, empty)
		if err != nil {
			return Object{}, err
		}
		newID, err := o.reg.Register(child)
		if err != nil {
			return Object{}, err
		}
		o.reg.SetParent(child, o.c)
		if err := o.c.WriteRefElem(name, idx, newID); err != nil {
			return Object{}, err
		}
		return Object{c: child, reg: o.reg, ev: o.ev, p: o.p}, nil
	}
	child, ok := o.reg.Lookup(id)
	if !ok {
		return Object{}, cellerr.New(cellerr.NotFound, "field %q index %d: id %d not registered", name, idx, id)
	}
	return Object{c: child, reg: o.reg, ev: o.ev, p: o.p}, nil
}

func (o Object) growRefArray(name string, minCount int) error {
	cur := 0
	if idx, err := o.c.IndexOf(name); err == nil && idx >= 0 {
		if n, err := o.c.FieldDataLength(idx); err == nil {
			cur = n / 8
		}
	}
	if minCount < cur {
		minCount = cur
	}
	b, err := o.c.Rebuilder()
	if err != nil {
		return err
	}
	b.Remove(name).SetArray(name, kind.Ref, minCount)
	layoutBytes, err := b.BuildLayout()
	if err != nil {
		return err
	}
	return o.c.Rescheme(layoutBytes)
}
