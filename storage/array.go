package storage

import (
	"github.com/cellstore/cellstore/cellerr"
	"github.com/cellstore/cellstore/container"
	"github.com/cellstore/cellstore/events"
	"github.com/cellstore/cellstore/internal/kind"
	"github.com/cellstore/cellstore/internal/migrate"
)

// Array is a view over one inline array field (spec §4.I "StorageArray"):
// length, element kind, indexed access, bulk conversion, and a char16
// shortcut to string.
type Array struct {
	o    Object
	name string
}

// GetArray resolves name to an Array view: directly over an inline array
// field on the current container, or over the conventional value field of
// a referenced child container that is itself an array (spec §4.I
// "GetArray").
func (o Object) GetArray(name string) (Array, error) {
	idx, err := o.c.IndexOf(name)
	if err != nil {
		return Array{}, err
	}
	if idx < 0 {
		return Array{}, cellerr.New(cellerr.NotFound, "field %q", name)
	}
	fk, err := o.c.FieldKindAt(idx)
	if err != nil {
		return Array{}, err
	}
	if fk.Kind == kind.Ref && !fk.IsArray {
		child, err := o.resolveChild(name)
		if err != nil {
			return Array{}, err
		}
		return child.GetArray(stringValueField)
	}
	if !fk.IsArray {
		return Array{}, cellerr.New(cellerr.TypeMismatch, "field %q is not an array", name)
	}
	return Array{o: o, name: name}, nil
}

func (a Array) index() (int, error) {
	idx, err := a.o.c.IndexOf(a.name)
	if err != nil {
		return 0, err
	}
	if idx < 0 {
		return 0, cellerr.New(cellerr.NotFound, "field %q", a.name)
	}
	return idx, nil
}

// Length returns the element count of the array.
func (a Array) Length() (int, error) {
	idx, err := a.index()
	if err != nil {
		return 0, err
	}
	fk, err := a.o.c.FieldKindAt(idx)
	if err != nil {
		return 0, err
	}
	n, err := a.o.c.FieldDataLength(idx)
	if err != nil {
		return 0, err
	}
	elemSize := kind.SizeOf(fk.Kind)
	if elemSize == 0 {
		elemSize = 1
	}
	return n / elemSize, nil
}

// ElementKind returns the array's stored field kind.
func (a Array) ElementKind() (kind.FieldKind, error) {
	idx, err := a.index()
	if err != nil {
		return kind.FieldKind{}, err
	}
	return a.o.c.FieldKindAt(idx)
}

// ToArray returns a copy of every element converted to T via the
// migration kernel (spec §4.I "ToArray<T>()").
func ToArray[T container.Scalar](a Array) ([]T, error) {
	idx, err := a.index()
	if err != nil {
		return nil, err
	}
	fk, err := a.o.c.FieldKindAt(idx)
	if err != nil {
		return nil, err
	}
	raw, err := a.o.c.FieldBytes(idx)
	if err != nil {
		return nil, err
	}
	return decodeArray[T](raw, fk.Kind)
}

// Get returns element i converted to T via the migration kernel.
func Get[T container.Scalar](a Array, i int) (T, error) {
	var zero T
	idx, err := a.index()
	if err != nil {
		return zero, err
	}
	fk, err := a.o.c.FieldKindAt(idx)
	if err != nil {
		return zero, err
	}
	raw, err := a.o.c.FieldBytes(idx)
	if err != nil {
		return zero, err
	}
	srcSize := kind.SizeOf(fk.Kind)
	if srcSize == 0 {
		srcSize = 1
	}
	if i < 0 || (i+1)*srcSize > len(raw) {
		return zero, cellerr.New(cellerr.OutOfRange, "field %q index %d", a.name, i)
	}
	tKind := container.KindOf[T]()
	dst := make([]byte, kind.SizeOf(tKind))
	if err := migrate.Convert(raw[i*srcSize:i*srcSize+srcSize], fk.Kind, dst, tKind, true); err != nil {
		return zero, cellerr.Wrap(cellerr.TypeMismatch, err, "field %q index %d", a.name, i)
	}
	return container.DecodeScalar[T](dst), nil
}

// Set writes v into element i. The array's element kind must already
// match T exactly; Set does not rescheme, so a kind change must go
// through Object.WriteArray instead.
func Set[T container.Scalar](a Array, i int, v T) error {
	raw := container.EncodeScalar(v)
	if err := a.o.c.WriteFieldElemBytes(a.name, i, raw); err != nil {
		return err
	}
	if fk, err := a.ElementKind(); err == nil {
		a.o.ev.Notify(a.o.c, a.name, fk, events.Write)
	}
	return nil
}

// AsString decodes a char16 array as a UTF-16 string (spec §4.I
// "AsString()").
func (a Array) AsString() (string, error) {
	idx, err := a.index()
	if err != nil {
		return "", err
	}
	fk, err := a.o.c.FieldKindAt(idx)
	if err != nil {
		return "", err
	}
	if fk.Kind != kind.Char16 {
		return "", cellerr.New(cellerr.TypeMismatch, "field %q is not char16", a.name)
	}
	raw, err := a.o.c.FieldBytes(idx)
	if err != nil {
		return "", err
	}
	return utf16LEString(raw), nil
}
