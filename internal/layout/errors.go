package layout

import "errors"

var (
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("layout: truncated buffer")
	// ErrOutOfRange indicates a field index or byte offset exceeded bounds.
	ErrOutOfRange = errors.New("layout: out of range")
)
