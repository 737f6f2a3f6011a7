// Package core provides the low-level primitives of the package file
// format.
//
// # Encoding
//
// Files are little-endian. Counts, name indices and object references
// are usually stored as compact indices, a signed variable-length
// integer of one to five bytes: see [DecodeIndex] and [AppendIndex].
// Strings are length-prefixed from version 64 ([VersionSizedStrings])
// and NUL-terminated before it.
//
// # Tables
//
// A file starts with a [Header] locating three tables, read with a
// [TableReader]:
//
//   - names ([NameEntry]) - every identifier used in the file
//   - imports ([ImportEntry]) - objects defined in other files
//   - exports ([ExportEntry]) - objects defined in this file
//
// # References
//
// Table entries and payloads refer to objects with a signed integer:
// zero is null, a positive value n is export n-1 and a negative value n
// is import -n-1. [RefFromRaw] decodes it into a [Ref] once; all other
// code works with Ref.
//
// # Object Streams
//
// An [ObjectStream] is a bounds-checked cursor over the payload of one
// export. It resolves names and object references through the package
// that opened it.
//
// # Errors
//
// Failures wrap one of the sentinel errors in errors.go, so callers can
// test them with errors.Is.
package core
