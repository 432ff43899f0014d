package container

import (
	"fmt"

	"github.com/cellstore/cellstore/cellerr"
	"github.com/cellstore/cellstore/internal/buf"
	"github.com/cellstore/cellstore/internal/kind"
	"github.com/cellstore/cellstore/internal/layout"
)

// Scalar is the set of Go representations the generic Read/Write/Migrate
// API accepts. Char16 and RefID are distinct named types (see types.go) so
// the dispatch below can tell a Char16 apart from a plain uint16, and a
// RefID apart from a plain uint64.
type Scalar interface {
	bool | int8 | uint8 | Char16 | int16 | uint16 | int32 | uint32 | int64 | RefID | uint64 | float32 | float64
}

func kindOf[T Scalar]() kind.Value {
	var zero T
	switch any(zero).(type) {
	case bool:
		return kind.Bool
	case int8:
		return kind.Int8
	case uint8:
		return kind.UInt8
	case Char16:
		return kind.Char16
	case int16:
		return kind.Int16
	case uint16:
		return kind.UInt16
	case int32:
		return kind.Int32
	case uint32:
		return kind.UInt32
	case int64:
		return kind.Int64
	case RefID:
		return kind.Ref
	case uint64:
		return kind.UInt64
	case float32:
		return kind.Float32
	case float64:
		return kind.Float64
	default:
		return kind.Unknown
	}
}

func encodeScalar[T Scalar](v T) []byte {
	k := kindOf[T]()
	b := make([]byte, kind.SizeOf(k))
	switch k {
	case kind.Bool:
		if any(v).(bool) {
			b[0] = 1
		}
	case kind.Int8:
		b[0] = byte(any(v).(int8))
	case kind.UInt8:
		b[0] = any(v).(uint8)
	case kind.Char16:
		buf.PutU16LE(b, uint16(any(v).(Char16)))
	case kind.Int16:
		buf.PutI16LE(b, any(v).(int16))
	case kind.UInt16:
		buf.PutU16LE(b, any(v).(uint16))
	case kind.Int32:
		buf.PutI32LE(b, any(v).(int32))
	case kind.UInt32:
		buf.PutU32LE(b, any(v).(uint32))
	case kind.Int64:
		buf.PutI64LE(b, any(v).(int64))
	case kind.Ref:
		buf.PutU64LE(b, uint64(any(v).(RefID)))
	case kind.UInt64:
		buf.PutU64LE(b, any(v).(uint64))
	case kind.Float32:
		buf.PutF32LE(b, any(v).(float32))
	case kind.Float64:
		buf.PutF64LE(b, any(v).(float64))
	}
	return b
}

func decodeScalar[T Scalar](b []byte) T {
	k := kindOf[T]()
	var out any
	switch k {
	case kind.Bool:
		out = b[0] != 0
	case kind.Int8:
		out = int8(b[0])
	case kind.UInt8:
		out = b[0]
	case kind.Char16:
		out = Char16(buf.U16LE(b))
	case kind.Int16:
		out = buf.I16LE(b)
	case kind.UInt16:
		out = buf.U16LE(b)
	case kind.Int32:
		out = buf.I32LE(b)
	case kind.UInt32:
		out = buf.U32LE(b)
	case kind.Int64:
		out = buf.I64LE(b)
	case kind.Ref:
		out = RefID(buf.U64LE(b))
	case kind.UInt64:
		out = buf.U64LE(b)
	case kind.Float32:
		out = buf.F32LE(b)
	case kind.Float64:
		out = buf.F64LE(b)
	}
	return out.(T)
}

// KindOf exposes kindOf for callers outside this package (the storage
// façade needs it to pick an element kind without duplicating the type
// switch).
func KindOf[T Scalar]() kind.Value { return kindOf[T]() }

// EncodeScalar exposes encodeScalar for callers outside this package.
func EncodeScalar[T Scalar](v T) []byte { return encodeScalar(v) }

// DecodeScalar exposes decodeScalar for callers outside this package.
func DecodeScalar[T Scalar](b []byte) T { return decodeScalar[T](b) }

// ReadT is the generic Read<T> operation (spec §4.E): locates name,
// converts the stored bytes from the field's kind to T's kind (explicit
// mode: narrowing permitted), and returns the value. If the field is
// absent, it is rescheme-added as a zero-initialized scalar of T's kind and
// the zero value is returned.
func ReadT[T Scalar](c *Container, name string) (T, error) {
	var zero T
	if err := c.checkLive(); err != nil {
		return zero, err
	}
	idx, err := c.IndexOf(name)
	if err != nil {
		return zero, err
	}
	if idx < 0 {
		if err := c.addScalarField(name, kindOf[T]()); err != nil {
			return zero, err
		}
		return zero, nil
	}
	v, err := c.view()
	if err != nil {
		return zero, err
	}
	fd, err := v.Field(idx)
	if err != nil {
		return zero, err
	}
	tKind := kindOf[T]()
	if (fd.FieldKind.Kind == kind.Ref) != (tKind == kind.Ref) {
		return zero, cellerr.New(cellerr.ReferenceKindMismatch, "field %q", name)
	}
	data, err := v.FieldData(idx)
	if err != nil {
		return zero, err
	}
	dst := make([]byte, kind.SizeOf(tKind))
	if err := convertBytes(data, fd.FieldKind.Kind, dst, tKind, true); err != nil {
		cellerr.LogIfSet(c.logger, "container: read %q as %s: %v", name, tKind, err)
		return zero, cellerr.Wrap(cellerr.TypeMismatch, err, "field %q", name)
	}
	return decodeScalar[T](dst), nil
}

// addScalarField reschemes the container to add name as a zero-initialized
// scalar field of kind k.
func (c *Container) addScalarField(name string, k kind.Value) error {
	b, err := c.Rebuilder()
	if err != nil {
		return err
	}
	b.SetScalar(name, k)
	layoutBytes, err := b.BuildLayout()
	if err != nil {
		return fmt.Errorf("container: %w", err)
	}
	return c.Rescheme(layoutBytes)
}

// WriteT is the generic Write<T> operation (spec §4.E four-branch policy).
func WriteT[T Scalar](c *Container, name string, value T, allowRescheme bool) error {
	if err := c.checkLive(); err != nil {
		return err
	}
	tKind := kindOf[T]()
	tSize := kind.SizeOf(tKind)
	raw := encodeScalar(value)

	idx, err := c.IndexOf(name)
	if err != nil {
		return err
	}
	if idx < 0 {
		if !allowRescheme {
			return cellerr.New(cellerr.NotFound, "field %q absent, rescheme not allowed", name)
		}
		b, err := c.Rebuilder()
		if err != nil {
			return err
		}
		b.SetScalar(name, tKind)
		layoutBytes, err := b.BuildLayout()
		if err != nil {
			return fmt.Errorf("container: %w", err)
		}
		if err := c.Rescheme(layoutBytes); err != nil {
			return err
		}
		return c.writeRawField(name, raw, tKind)
	}

	v, err := c.view()
	if err != nil {
		return err
	}
	fd, err := v.Field(idx)
	if err != nil {
		return err
	}
	if (fd.FieldKind.Kind == kind.Ref) != (tKind == kind.Ref) {
		return cellerr.New(cellerr.ReferenceKindMismatch, "field %q", name)
	}
	existingSize := int(fd.DataLength)

	switch {
	case existingSize == tSize:
		// Branch 2: overwrite the bytes and stamp the kind tag to T's kind
		// (the "change-type" branch; spec Open Question #2 resolves this as
		// a plain same-size copy, never a kernel pass, since both sides are
		// scalar and little-endian).
		return c.overwriteField(idx, raw, tKind, false)

	case existingSize < tSize:
		// Branch 3: grow the field via rescheme, or fail if not allowed.
		if !allowRescheme {
			return cellerr.New(cellerr.SizeMismatch, "field %q: value does not fit and rescheme not allowed", name)
		}
		b, err := c.Rebuilder()
		if err != nil {
			return err
		}
		b.Remove(name).SetScalar(name, tKind)
		layoutBytes, err := b.BuildLayout()
		if err != nil {
			return fmt.Errorf("container: %w", err)
		}
		if err := c.Rescheme(layoutBytes); err != nil {
			return err
		}
		return c.writeRawField(name, raw, tKind)

	default:
		// Branch 4: field is larger than T. Convert T's bytes into the
		// field's existing kind via the migration kernel; the kind tag is
		// only updated when the current tag is Unknown.
		newKind := fd.FieldKind.Kind
		stampUnknown := newKind == kind.Unknown
		if stampUnknown {
			newKind = tKind
		}
		dst := make([]byte, existingSize)
		if err := convertBytes(raw, tKind, dst, newKind, false); err != nil {
			cellerr.LogIfSet(c.logger, "container: write %s into %q (%s): %v", tKind, name, newKind, err)
			return cellerr.Wrap(cellerr.TypeMismatch, err, "field %q", name)
		}
		return c.overwriteField(idx, dst, newKind, !stampUnknown)
	}
}

// overwriteField writes raw (already the right length) into the field's
// data slot. keepKind, when true, leaves the stored kind byte untouched
// even though newKind was computed by the caller (used by branch 4 to
// avoid re-stamping a field that already had a concrete kind).
func (c *Container) overwriteField(idx int, raw []byte, newKind kind.Value, keepKind bool) error {
	v, err := c.view()
	if err != nil {
		return err
	}
	fd, err := v.Field(idx)
	if err != nil {
		return err
	}
	data, err := v.FieldData(idx)
	if err != nil {
		return err
	}
	if len(data) != len(raw) {
		return cellerr.New(cellerr.SizeMismatch, "field %d: have %d bytes, write %d", idx, len(data), len(raw))
	}
	copy(data, raw)
	if !keepKind && fd.FieldKind.Kind != newKind {
		c.stampFieldKind(idx, newKind)
	}
	return nil
}

// stampFieldKind rewrites only the field-kind byte of descriptor idx,
// in place, without touching data.
func (c *Container) stampFieldKind(idx int, k kind.Value) {
	off := layout.HeaderSize + idx*layout.FieldHeaderSize + layout.FieldKindByteOffset
	existing := c.buf[off]
	isArray := existing&0x80 != 0
	fk := kind.FieldKind{Kind: k, IsArray: isArray}
	c.buf[off] = kind.Encode(fk)
}

// writeRawField writes raw into name's data slot after a rescheme just
// created it at exactly the right size.
func (c *Container) writeRawField(name string, raw []byte, k kind.Value) error {
	idx, err := c.IndexOf(name)
	if err != nil {
		return err
	}
	if idx < 0 {
		return cellerr.New(cellerr.NotFound, "field %q missing after rescheme", name)
	}
	return c.overwriteField(idx, raw, k, true)
}

// WriteBytes raw-overwrites name's data; len(src) must equal the field's
// data length exactly (spec §4.E "WriteBytes").
func (c *Container) WriteBytes(name string, src []byte) error {
	if err := c.checkLive(); err != nil {
		return err
	}
	idx, err := c.IndexOf(name)
	if err != nil {
		return err
	}
	if idx < 0 {
		return cellerr.New(cellerr.NotFound, "field %q", name)
	}
	v, err := c.view()
	if err != nil {
		return err
	}
	data, err := v.FieldData(idx)
	if err != nil {
		return err
	}
	if len(data) != len(src) {
		return cellerr.New(cellerr.SizeMismatch, "field %q: have %d bytes, write %d", name, len(data), len(src))
	}
	copy(data, src)
	return nil
}

// WriteFieldElemBytes writes raw into element idx of an inline array field
// without disturbing the rest of the array. len(raw) must equal the
// field's per-element size exactly, else SizeMismatch; no kernel
// conversion is applied (the storage façade's Array.Set is the only
// caller, and it passes T's own encoding unchanged).
func (c *Container) WriteFieldElemBytes(name string, idx int, raw []byte) error {
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
	elemSize := int(fd.ElementSize)
	if elemSize == 0 {
		elemSize = 1
	}
	if len(raw) != elemSize {
		return cellerr.New(cellerr.SizeMismatch, "field %q element: have %d bytes, write %d", name, elemSize, len(raw))
	}
	data, err := v.FieldData(fidx)
	if err != nil {
		return err
	}
	off := idx * elemSize
	if off < 0 || off+elemSize > len(data) {
		return cellerr.New(cellerr.OutOfRange, "field %q index %d", name, idx)
	}
	copy(data[off:off+elemSize], raw)
	return nil
}

// FieldBytes returns a copy of the raw data bytes stored in field idx.
func (c *Container) FieldBytes(idx int) ([]byte, error) {
	if err := c.checkLive(); err != nil {
		return nil, err
	}
	v, err := c.view()
	if err != nil {
		return nil, err
	}
	data, err := v.FieldData(idx)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), data...), nil
}

// FieldDataLength returns the declared data length, in bytes, of field idx.
func (c *Container) FieldDataLength(idx int) (int, error) {
	if err := c.checkLive(); err != nil {
		return 0, err
	}
	v, err := c.view()
	if err != nil {
		return 0, err
	}
	fd, err := v.Field(idx)
	if err != nil {
		return 0, err
	}
	return int(fd.DataLength), nil
}

// GetRef returns the reference id stored in name, creating a reference
// slot (zero-initialized, i.e. null) if absent. Fails if the field exists
// and is not a reference field (spec §4.E "GetRef").
func (c *Container) GetRef(name string) (RefID, error) {
	if err := c.checkLive(); err != nil {
		return 0, err
	}
	idx, err := c.IndexOf(name)
	if err != nil {
		return 0, err
	}
	if idx < 0 {
		if err := c.addScalarField(name, kind.Ref); err != nil {
			return 0, err
		}
		return 0, nil
	}
	v, err := c.view()
	if err != nil {
		return 0, err
	}
	fd, err := v.Field(idx)
	if err != nil {
		return 0, err
	}
	if fd.FieldKind.Kind != kind.Ref {
		return 0, cellerr.New(cellerr.ReferenceKindMismatch, "field %q is not a reference", name)
	}
	data, err := v.FieldData(idx)
	if err != nil {
		return 0, err
	}
	return RefID(buf.U64LE(data)), nil
}

// SetRef overwrites name's reference id directly (used by the registry and
// by the storage façade once a child has been registered).
func (c *Container) SetRef(name string, id RefID) error {
	return WriteT(c, name, id, true)
}
