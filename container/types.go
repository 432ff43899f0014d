package container

import "github.com/cellstore/cellstore/internal/kind"

// reexported kinds so callers don't need to import internal/kind directly
// for the common scalar set.
const (
	Unknown = kind.Unknown
	Bool    = kind.Bool
	Int8    = kind.Int8
	UInt8   = kind.UInt8
	Char16K = kind.Char16
	Int16   = kind.Int16
	UInt16  = kind.UInt16
	Int32   = kind.Int32
	UInt32  = kind.UInt32
	Int64   = kind.Int64
	UInt64  = kind.UInt64
	Float32 = kind.Float32
	Float64 = kind.Float64
	Blob    = kind.Blob
	Ref     = kind.Ref
)

// Char16 is the Go representation of a Char16-kinded scalar; a distinct
// type from uint16 so the generic Read/Write dispatch can tell it apart
// from UInt16.
type Char16 uint16

// RefID is the Go representation of a reference-kinded scalar: a 64-bit id
// resolved through the registry. A distinct type from uint64 for the same
// reason as Char16.
type RefID uint64

// Null is the reference value meaning "no child".
const Null RefID = 0
