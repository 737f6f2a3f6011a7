package core

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Signature is the magic number at offset 0 of every package file.
const Signature uint32 = 0x9E2A83C1

// Supported versions form the half-open range [MinVersion, MaxVersion).
const (
	MinVersion = 60
	MaxVersion = 100
)

// NameEntry is one row of the name table.
type NameEntry struct {
	Name  string
	Flags uint32
}

// ImportEntry describes an object that lives in another package.
// ClassPackage, ClassName and ObjectName index the name table;
// PackageRef is the enclosing package or group.
type ImportEntry struct {
	ClassPackage int32
	ClassName    int32
	PackageRef   Ref
	ObjectName   int32
}

// ExportEntry describes an object stored in this package. A null ClassRef
// means the export is itself a class. Offset is only meaningful when
// Size > 0.
type ExportEntry struct {
	ClassRef   Ref
	BaseRef    Ref
	PackageRef Ref
	NameRef    int32
	Flags      ObjectFlags
	Size       int32
	Offset     int32
}

// Generation is one entry of the generation list of newer headers.
type Generation struct {
	ExportCount int32
	NameCount   int32
}

// Header is the fixed header at the start of a package file.
type Header struct {
	Signature uint32
	Version   uint16
	Licensee  uint16
	Flags     PackageFlags

	NameCount    int32
	NameOffset   int32
	ExportCount  int32
	ExportOffset int32
	ImportCount  int32
	ImportOffset int32

	// Versions below VersionGUID describe a heritage table instead of
	// storing a GUID; GUID is then taken from its last entry.
	HeritageCount  int32
	HeritageOffset int32

	GUID        uuid.UUID
	Generations []Generation
}

// TableReader reads the header and the three tables of a package file.
type TableReader struct {
	src     io.ReadSeeker
	r       *bufio.Reader
	version uint16
	size    int64
}

// NewTableReader creates a TableReader over src. size is the total file
// size and bounds every table offset.
func NewTableReader(src io.ReadSeeker, size int64) *TableReader {
	return &TableReader{
		src:  src,
		r:    bufio.NewReader(src),
		size: size,
	}
}

// seek positions the reader at an absolute file offset.
func (t *TableReader) seek(offset int64) error {
	if offset < 0 || offset > t.size {
		return fmt.Errorf("%w: offset %d outside file of %d bytes", ErrOutOfBounds, offset, t.size)
	}
	if _, err := t.src.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to %d: %w", offset, err)
	}
	t.r.Reset(t.src)
	return nil
}

func (t *TableReader) readUint32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(t.r, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: truncated table data", ErrOutOfBounds)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (t *TableReader) readInt32() (int32, error) {
	v, err := t.readUint32()
	return int32(v), err
}

func (t *TableReader) readUint16() (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(t.r, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: truncated table data", ErrOutOfBounds)
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (t *TableReader) readGUID() (uuid.UUID, error) {
	var g uuid.UUID
	if _, err := io.ReadFull(t.r, g[:]); err != nil {
		return uuid.Nil, fmt.Errorf("%w: truncated GUID", ErrOutOfBounds)
	}
	return g, nil
}

// ReadHeader reads and validates the header at offset 0.
func (t *TableReader) ReadHeader() (*Header, error) {
	if err := t.seek(0); err != nil {
		return nil, err
	}

	sig, err := t.readUint32()
	if err != nil {
		return nil, fmt.Errorf("%w: file too short for signature", ErrNotAPackage)
	}
	if sig != Signature {
		return nil, fmt.Errorf("%w: signature 0x%08X", ErrNotAPackage, sig)
	}

	h := &Header{Signature: sig}
	if h.Version, err = t.readUint16(); err != nil {
		return nil, err
	}
	if h.Version < MinVersion || h.Version >= MaxVersion {
		return nil, fmt.Errorf("%w: %d (supported %d-%d)", ErrUnsupportedVersion, h.Version, MinVersion, MaxVersion-1)
	}
	t.version = h.Version

	if h.Licensee, err = t.readUint16(); err != nil {
		return nil, err
	}
	flags, err := t.readUint32()
	if err != nil {
		return nil, err
	}
	h.Flags = PackageFlags(flags)

	for _, dst := range []*int32{
		&h.NameCount, &h.NameOffset,
		&h.ExportCount, &h.ExportOffset,
		&h.ImportCount, &h.ImportOffset,
	} {
		if *dst, err = t.readInt32(); err != nil {
			return nil, err
		}
	}

	for _, c := range []struct {
		name  string
		count int32
	}{{"name", h.NameCount}, {"export", h.ExportCount}, {"import", h.ImportCount}} {
		if c.count < 0 {
			return nil, fmt.Errorf("%w: negative %s count %d", ErrOutOfBounds, c.name, c.count)
		}
	}

	if h.Version < VersionGUID {
		if h.HeritageCount, err = t.readInt32(); err != nil {
			return nil, err
		}
		if h.HeritageOffset, err = t.readInt32(); err != nil {
			return nil, err
		}
		t.readHeritage(h)
		return h, nil
	}

	if h.GUID, err = t.readGUID(); err != nil {
		return nil, err
	}
	n, err := t.readInt32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative generation count %d", ErrOutOfBounds, n)
	}
	h.Generations = make([]Generation, 0, capHint(n))
	for i := int32(0); i < n; i++ {
		var g Generation
		if g.ExportCount, err = t.readInt32(); err != nil {
			return nil, err
		}
		if g.NameCount, err = t.readInt32(); err != nil {
			return nil, err
		}
		h.Generations = append(h.Generations, g)
	}

	return h, nil
}

// readHeritage takes the package GUID from the last heritage entry. The
// heritage list is informational; when it cannot be read the GUID stays
// zero.
func (t *TableReader) readHeritage(h *Header) {
	if h.HeritageCount <= 0 {
		return
	}
	last := int64(h.HeritageOffset) + int64(h.HeritageCount-1)*16
	if err := t.seek(last); err != nil {
		return
	}
	if g, err := t.readGUID(); err == nil {
		h.GUID = g
	}
}

// ReadNames reads the name table described by h.
func (t *TableReader) ReadNames(h *Header) ([]NameEntry, error) {
	if err := t.seek(int64(h.NameOffset)); err != nil {
		return nil, fmt.Errorf("name table: %w", err)
	}

	names := make([]NameEntry, 0, capHint(h.NameCount))
	for i := int32(0); i < h.NameCount; i++ {
		s, err := decodeString(t.r, t.version)
		if err != nil {
			return nil, fmt.Errorf("name %d: %w", i, err)
		}
		flags, err := t.readUint32()
		if err != nil {
			return nil, fmt.Errorf("name %d: %w", i, err)
		}
		names = append(names, NameEntry{Name: s, Flags: flags})
	}
	return names, nil
}

func (t *TableReader) readRef() (Ref, error) {
	v, err := DecodeIndex(t.r)
	if err != nil {
		return NullRef, err
	}
	return RefFromRaw(v), nil
}

// ReadExports reads the export table described by h.
func (t *TableReader) ReadExports(h *Header) ([]ExportEntry, error) {
	if err := t.seek(int64(h.ExportOffset)); err != nil {
		return nil, fmt.Errorf("export table: %w", err)
	}

	exports := make([]ExportEntry, 0, capHint(h.ExportCount))
	for i := int32(0); i < h.ExportCount; i++ {
		e, err := t.readExport()
		if err != nil {
			return nil, fmt.Errorf("export %d: %w", i, err)
		}
		exports = append(exports, e)
	}
	return exports, nil
}

func (t *TableReader) readExport() (ExportEntry, error) {
	var e ExportEntry
	var err error

	if e.ClassRef, err = t.readRef(); err != nil {
		return e, err
	}
	if e.BaseRef, err = t.readRef(); err != nil {
		return e, err
	}
	pkg, err := t.readInt32()
	if err != nil {
		return e, err
	}
	e.PackageRef = RefFromRaw(pkg)
	if e.NameRef, err = DecodeIndex(t.r); err != nil {
		return e, err
	}
	flags, err := t.readUint32()
	if err != nil {
		return e, err
	}
	e.Flags = ObjectFlags(flags)
	if e.Size, err = DecodeIndex(t.r); err != nil {
		return e, err
	}
	if e.Size < 0 {
		return e, fmt.Errorf("%w: negative size %d", ErrOutOfBounds, e.Size)
	}
	if e.Size > 0 {
		if e.Offset, err = DecodeIndex(t.r); err != nil {
			return e, err
		}
		end := int64(e.Offset) + int64(e.Size)
		if e.Offset < 0 || end > t.size {
			return e, fmt.Errorf("%w: payload [%d, %d) outside file of %d bytes", ErrOutOfBounds, e.Offset, end, t.size)
		}
	}
	return e, nil
}

// ReadImports reads the import table described by h.
func (t *TableReader) ReadImports(h *Header) ([]ImportEntry, error) {
	if err := t.seek(int64(h.ImportOffset)); err != nil {
		return nil, fmt.Errorf("import table: %w", err)
	}

	imports := make([]ImportEntry, 0, capHint(h.ImportCount))
	for i := int32(0); i < h.ImportCount; i++ {
		var e ImportEntry
		var err error
		if e.ClassPackage, err = DecodeIndex(t.r); err != nil {
			return nil, fmt.Errorf("import %d: %w", i, err)
		}
		if e.ClassName, err = DecodeIndex(t.r); err != nil {
			return nil, fmt.Errorf("import %d: %w", i, err)
		}
		pkg, err := t.readInt32()
		if err != nil {
			return nil, fmt.Errorf("import %d: %w", i, err)
		}
		e.PackageRef = RefFromRaw(pkg)
		if e.ObjectName, err = DecodeIndex(t.r); err != nil {
			return nil, fmt.Errorf("import %d: %w", i, err)
		}
		imports = append(imports, e)
	}
	return imports, nil
}

// capHint limits up-front allocation for counts read from the file.
func capHint(n int32) int {
	if n > 4096 {
		return 4096
	}
	return int(n)
}
