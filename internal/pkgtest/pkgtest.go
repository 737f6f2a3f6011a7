// Package pkgtest builds package files in memory for tests.
package pkgtest

import (
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/tsawler/upkg/core"
)

// Export describes one export table entry. Payload becomes the object's
// serialized bytes; a nil or empty payload produces a size-0 export.
type Export struct {
	Class   core.Ref
	Base    core.Ref
	Package core.Ref
	Name    string
	Flags   core.ObjectFlags
	Payload []byte
}

// Builder assembles a package file.
type Builder struct {
	Signature uint32
	Version   uint16
	Licensee  uint16
	Flags     core.PackageFlags
	GUID      uuid.UUID

	// Generations is written for versions >= core.VersionGUID.
	Generations []core.Generation

	names   []core.NameEntry
	imports []core.ImportEntry
	exports []Export
}

// New returns a builder for the given format version.
func New(version uint16) *Builder {
	return &Builder{
		Signature: core.Signature,
		Version:   version,
		GUID:      uuid.MustParse("6f3b2f4e-1d2c-4a5b-8c7d-9e0f1a2b3c4d"),
	}
}

// Name returns the index of s in the name table, adding it if needed.
func (b *Builder) Name(s string) int32 {
	for i, n := range b.names {
		if n.Name == s {
			return int32(i)
		}
	}
	b.names = append(b.names, core.NameEntry{Name: s})
	return int32(len(b.names) - 1)
}

// AddName appends s even if an entry with the same text exists.
func (b *Builder) AddName(s string, flags uint32) int32 {
	b.names = append(b.names, core.NameEntry{Name: s, Flags: flags})
	return int32(len(b.names) - 1)
}

// Import adds an import entry and returns its reference.
func (b *Builder) Import(classPackage, className string, pkg core.Ref, objectName string) core.Ref {
	b.imports = append(b.imports, core.ImportEntry{
		ClassPackage: b.Name(classPackage),
		ClassName:    b.Name(className),
		PackageRef:   pkg,
		ObjectName:   b.Name(objectName),
	})
	return core.ImportRef(len(b.imports) - 1)
}

// Export adds an export entry and returns its reference.
func (b *Builder) Export(e Export) core.Ref {
	b.Name(e.Name)
	b.exports = append(b.exports, e)
	return core.ExportRef(len(b.exports) - 1)
}

// SetPayload replaces the payload of an export added earlier.
func (b *Builder) SetPayload(ref core.Ref, payload []byte) {
	b.exports[ref.Index()].Payload = payload
}

// Data starts a payload whose name indices come from b.
func (b *Builder) Data() *Data {
	return &Data{b: b}
}

func (b *Builder) headerLen() int {
	n := 36
	if b.Version < core.VersionGUID {
		return n + 8
	}
	return n + 16 + 4 + 8*len(b.Generations)
}

// Bytes lays the file out as header, payloads, heritage, names, imports,
// exports.
func (b *Builder) Bytes() []byte {
	out := make([]byte, b.headerLen())

	offsets := make([]int32, len(b.exports))
	for i, e := range b.exports {
		if len(e.Payload) > 0 {
			offsets[i] = int32(len(out))
			out = append(out, e.Payload...)
		}
	}

	heritageOffset := int32(len(out))
	if b.Version < core.VersionGUID {
		out = append(out, b.GUID[:]...)
	}

	nameOffset := int32(len(out))
	for _, n := range b.names {
		var err error
		out, err = core.AppendString(out, n.Name, b.Version)
		if err != nil {
			panic(err)
		}
		out = binary.LittleEndian.AppendUint32(out, n.Flags)
	}

	importOffset := int32(len(out))
	for _, e := range b.imports {
		out = core.AppendIndex(out, e.ClassPackage)
		out = core.AppendIndex(out, e.ClassName)
		out = binary.LittleEndian.AppendUint32(out, uint32(e.PackageRef.Raw()))
		out = core.AppendIndex(out, e.ObjectName)
	}

	exportOffset := int32(len(out))
	for i, e := range b.exports {
		out = core.AppendIndex(out, e.Class.Raw())
		out = core.AppendIndex(out, e.Base.Raw())
		out = binary.LittleEndian.AppendUint32(out, uint32(e.Package.Raw()))
		out = core.AppendIndex(out, b.Name(e.Name))
		out = binary.LittleEndian.AppendUint32(out, uint32(e.Flags))
		out = core.AppendIndex(out, int32(len(e.Payload)))
		if len(e.Payload) > 0 {
			out = core.AppendIndex(out, offsets[i])
		}
	}

	h := make([]byte, 0, b.headerLen())
	h = binary.LittleEndian.AppendUint32(h, b.Signature)
	h = binary.LittleEndian.AppendUint16(h, b.Version)
	h = binary.LittleEndian.AppendUint16(h, b.Licensee)
	h = binary.LittleEndian.AppendUint32(h, uint32(b.Flags))
	for _, v := range []int32{
		int32(len(b.names)), nameOffset,
		int32(len(b.exports)), exportOffset,
		int32(len(b.imports)), importOffset,
	} {
		h = binary.LittleEndian.AppendUint32(h, uint32(v))
	}
	if b.Version < core.VersionGUID {
		h = binary.LittleEndian.AppendUint32(h, 1)
		h = binary.LittleEndian.AppendUint32(h, uint32(heritageOffset))
	} else {
		h = append(h, b.GUID[:]...)
		h = binary.LittleEndian.AppendUint32(h, uint32(len(b.Generations)))
		for _, g := range b.Generations {
			h = binary.LittleEndian.AppendUint32(h, uint32(g.ExportCount))
			h = binary.LittleEndian.AppendUint32(h, uint32(g.NameCount))
		}
	}
	copy(out, h)

	return out
}

// Write stores the package at path in fs.
func (b *Builder) Write(t testing.TB, fs afero.Fs, path string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, b.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write package %s: %v", path, err)
	}
}

// Data accumulates an object payload.
type Data struct {
	b   *Builder
	buf []byte
}

func (d *Data) Index(v int32) *Data {
	d.buf = core.AppendIndex(d.buf, v)
	return d
}

func (d *Data) Ref(r core.Ref) *Data {
	return d.Index(r.Raw())
}

// Name writes the name table index of s, adding the name if needed.
func (d *Data) Name(s string) *Data {
	return d.Index(d.b.Name(s))
}

func (d *Data) Int32(v int32) *Data {
	d.buf = binary.LittleEndian.AppendUint32(d.buf, uint32(v))
	return d
}

func (d *Data) Raw(p ...byte) *Data {
	d.buf = append(d.buf, p...)
	return d
}

func (d *Data) String(s string) *Data {
	var err error
	d.buf, err = core.AppendString(d.buf, s, d.b.Version)
	if err != nil {
		panic(err)
	}
	return d
}

// Bytes returns the accumulated payload.
func (d *Data) Bytes() []byte {
	return d.buf
}
