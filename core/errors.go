package core

import "errors"

// Errors reported while reading and resolving packages. Callers test for
// them with errors.Is; every layer wraps them with context.
var (
	ErrNotAPackage        = errors.New("not a package file")
	ErrUnsupportedVersion = errors.New("unsupported package version")
	ErrOutOfBounds        = errors.New("read out of bounds")
	ErrTrailingData       = errors.New("trailing data after object")
	ErrTypeMismatch       = errors.New("object type mismatch")
	ErrMissingBaseClass   = errors.New("no native base class")
	ErrUnknownPackage     = errors.New("unknown package")
	ErrUnknownClass       = errors.New("unknown class")
	ErrUnknownObject      = errors.New("object not found")
	ErrReferenceCycle     = errors.New("reference cycle")
)
