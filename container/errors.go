package container

import "errors"

// ErrCannotConvertRef is returned by Migrate when asked to convert a
// reference field; references are never subject to the migration kernel
// (spec §4.E).
var ErrCannotConvertRef = errors.New("container: cannot convert ref")
