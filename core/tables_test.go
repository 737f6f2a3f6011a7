package core_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/tsawler/upkg/core"
	"github.com/tsawler/upkg/internal/pkgtest"
)

func readAll(t *testing.T, data []byte) (*core.Header, []core.NameEntry, []core.ExportEntry, []core.ImportEntry) {
	t.Helper()

	tr := core.NewTableReader(bytes.NewReader(data), int64(len(data)))
	h, err := tr.ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	names, err := tr.ReadNames(h)
	if err != nil {
		t.Fatalf("ReadNames: %v", err)
	}
	exports, err := tr.ReadExports(h)
	if err != nil {
		t.Fatalf("ReadExports: %v", err)
	}
	imports, err := tr.ReadImports(h)
	if err != nil {
		t.Fatalf("ReadImports: %v", err)
	}
	return h, names, exports, imports
}

func samplePackage(version uint16) *pkgtest.Builder {
	b := pkgtest.New(version)
	b.Flags = core.PackageAllowDownload
	b.Generations = []core.Generation{{ExportCount: 2, NameCount: 6}}

	corePkg := b.Import("Core", "Package", core.NullRef, "Core")
	object := b.Import("Core", "Class", corePkg, "Object")
	cls := b.Export(pkgtest.Export{Base: object, Name: "Widget", Flags: core.FlagPublic | core.FlagNative})
	b.Export(pkgtest.Export{
		Class:   cls,
		Name:    "DefaultWidget",
		Flags:   core.FlagPublic,
		Payload: []byte{1, 2, 3, 4},
	})
	return b
}

// TestReadTablesModern tests a version with a GUID and generation list
func TestReadTablesModern(t *testing.T) {
	b := samplePackage(69)
	h, names, exports, imports := readAll(t, b.Bytes())

	if h.Version != 69 || h.Flags != core.PackageAllowDownload {
		t.Errorf("header version %d flags %v", h.Version, h.Flags)
	}
	if h.GUID != b.GUID {
		t.Errorf("GUID = %v, want %v", h.GUID, b.GUID)
	}
	if len(h.Generations) != 1 || h.Generations[0].NameCount != 6 {
		t.Errorf("generations = %+v", h.Generations)
	}

	if len(imports) != 2 {
		t.Fatalf("expected 2 imports, got %d", len(imports))
	}
	if !imports[0].PackageRef.IsNull() {
		t.Errorf("import 0 package ref = %v", imports[0].PackageRef)
	}
	if imports[1].PackageRef != core.ImportRef(0) {
		t.Errorf("import 1 package ref = %v", imports[1].PackageRef)
	}
	if names[imports[1].ObjectName].Name != "Object" {
		t.Errorf("import 1 object name = %q", names[imports[1].ObjectName].Name)
	}

	if len(exports) != 2 {
		t.Fatalf("expected 2 exports, got %d", len(exports))
	}
	cls := exports[0]
	if !cls.ClassRef.IsNull() || cls.BaseRef != core.ImportRef(1) || cls.Size != 0 {
		t.Errorf("class export = %+v", cls)
	}
	obj := exports[1]
	if obj.ClassRef != core.ExportRef(0) || obj.Size != 4 {
		t.Errorf("object export = %+v", obj)
	}
	if !obj.Flags.Has(core.FlagPublic) {
		t.Errorf("object flags = %v", obj.Flags)
	}
	data := b.Bytes()
	if !bytes.Equal(data[obj.Offset:obj.Offset+obj.Size], []byte{1, 2, 3, 4}) {
		t.Errorf("payload at offset %d does not match", obj.Offset)
	}
}

// TestReadTablesLegacy tests NUL-terminated strings and the heritage block
func TestReadTablesLegacy(t *testing.T) {
	b := samplePackage(61)
	h, names, exports, _ := readAll(t, b.Bytes())

	if h.HeritageCount != 1 {
		t.Errorf("heritage count = %d", h.HeritageCount)
	}
	if h.GUID != b.GUID {
		t.Errorf("GUID from heritage = %v, want %v", h.GUID, b.GUID)
	}
	if len(h.Generations) != 0 {
		t.Errorf("legacy header should have no generations")
	}
	if names[exports[1].NameRef].Name != "DefaultWidget" {
		t.Errorf("export 1 name = %q", names[exports[1].NameRef].Name)
	}
}

// TestReadTablesLegacyBadHeritage tests that an unreadable heritage list
// leaves the GUID unset instead of failing the package
func TestReadTablesLegacyBadHeritage(t *testing.T) {
	data := samplePackage(61).Bytes()
	// heritage count and offset follow the three table descriptors
	binary.LittleEndian.PutUint32(data[40:], 0x7FFFFF00)

	h, names, exports, _ := readAll(t, data)
	if h.GUID != uuid.Nil {
		t.Errorf("GUID = %v, want zero", h.GUID)
	}
	if h.HeritageOffset != 0x7FFFFF00 {
		t.Errorf("heritage offset = %#x", h.HeritageOffset)
	}
	if names[exports[1].NameRef].Name != "DefaultWidget" {
		t.Errorf("tables not read after a bad heritage list")
	}
}

// TestReadHeaderBadSignature tests rejection of non-package files
func TestReadHeaderBadSignature(t *testing.T) {
	data := samplePackage(69).Bytes()
	binary.LittleEndian.PutUint32(data, 0x12345678)

	tr := core.NewTableReader(bytes.NewReader(data), int64(len(data)))
	if _, err := tr.ReadHeader(); !errors.Is(err, core.ErrNotAPackage) {
		t.Errorf("expected ErrNotAPackage, got %v", err)
	}

	short := []byte{0xC1, 0x83}
	tr = core.NewTableReader(bytes.NewReader(short), int64(len(short)))
	if _, err := tr.ReadHeader(); !errors.Is(err, core.ErrNotAPackage) {
		t.Errorf("short file: expected ErrNotAPackage, got %v", err)
	}
}

// TestReadHeaderVersionRange tests the supported version window
func TestReadHeaderVersionRange(t *testing.T) {
	tests := []struct {
		version uint16
		ok      bool
	}{
		{core.MinVersion - 1, false},
		{core.MinVersion, true},
		{core.VersionGUID, true},
		{core.MaxVersion - 1, true},
		{core.MaxVersion, false},
		{127, false},
	}

	for _, tt := range tests {
		b := samplePackage(tt.version)
		data := b.Bytes()
		tr := core.NewTableReader(bytes.NewReader(data), int64(len(data)))
		_, err := tr.ReadHeader()
		if tt.ok && err != nil {
			t.Errorf("version %d: %v", tt.version, err)
		}
		if !tt.ok && !errors.Is(err, core.ErrUnsupportedVersion) {
			t.Errorf("version %d: expected ErrUnsupportedVersion, got %v", tt.version, err)
		}
	}
}

// TestReadNamesCorruptOffset tests a name table offset outside the file
func TestReadNamesCorruptOffset(t *testing.T) {
	data := samplePackage(69).Bytes()
	binary.LittleEndian.PutUint32(data[16:], uint32(len(data)+10))

	tr := core.NewTableReader(bytes.NewReader(data), int64(len(data)))
	h, err := tr.ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if _, err := tr.ReadNames(h); !errors.Is(err, core.ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}
}
