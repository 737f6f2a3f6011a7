package natives_test

import (
	"bytes"
	"errors"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"golang.org/x/image/bmp"

	"github.com/tsawler/upkg/core"
	"github.com/tsawler/upkg/internal/pkgtest"
	"github.com/tsawler/upkg/natives"
	"github.com/tsawler/upkg/reader"
)

type fixture struct {
	b       *pkgtest.Builder
	corePkg core.Ref
}

func newFixture() *fixture {
	b := pkgtest.New(69)
	return &fixture{b: b, corePkg: b.Import("Core", "Package", core.NullRef, "Core")}
}

func (f *fixture) add(class, name string, payload []byte) core.Ref {
	cls := f.b.Import("Core", "Class", f.corePkg, class)
	return f.b.Export(pkgtest.Export{Class: cls, Name: name, Payload: payload})
}

func (f *fixture) open(t *testing.T) *reader.Package {
	t.Helper()
	fs := afero.NewMemMapFs()
	f.b.Write(t, fs, filepath.Join("/game", "System", "Test.u"))

	m, err := reader.New("/game", reader.WithFs(fs), reader.WithNatives(natives.Register))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })
	if _, err := m.ScanFolder("System", "*.u"); err != nil {
		t.Fatal(err)
	}
	p, err := m.GetPackage("Test")
	if err != nil {
		t.Fatalf("GetPackage failed: %v", err)
	}
	return p
}

func TestRegisterSynthesizesRootClasses(t *testing.T) {
	f := newFixture()
	p := f.open(t)

	for _, name := range []string{"Object", "Class"} {
		if p.FindObjectReference(reader.ClassClassName, name, "").IsNull() {
			t.Errorf("class %s was not synthesized", name)
		}
	}
	if !p.FindObjectReference(reader.ClassClassName, "Palette", "").IsNull() {
		t.Error("Palette should not be synthesized")
	}

	got := p.NativeClasses()
	if len(got) != len(natives.Names()) {
		t.Errorf("registered %v, want %v", got, natives.Names())
	}
}

func TestScriptedClassFallsBackToObject(t *testing.T) {
	f := newFixture()
	objClass := f.b.Import("Core", "Class", f.corePkg, "Object")
	weapon := f.b.Export(pkgtest.Export{Name: "Weapon", Base: objClass})
	ref := f.b.Export(pkgtest.Export{Class: weapon, Name: "Rifle", Payload: []byte{1, 2}})
	p := f.open(t)

	obj, err := p.GetUObject(ref)
	if err != nil {
		t.Fatalf("GetUObject failed: %v", err)
	}
	o, ok := obj.(*natives.Object)
	if !ok {
		t.Fatalf("got %T, want *natives.Object", obj)
	}
	if !bytes.Equal(o.Data, []byte{1, 2}) {
		t.Errorf("Data = %v, want [1 2]", o.Data)
	}
	if o.Class() != "Weapon" {
		t.Errorf("class = %q, want Weapon", o.Class())
	}
}

func TestClassObject(t *testing.T) {
	f := newFixture()
	ref := f.b.Export(pkgtest.Export{Name: "Weapon", Payload: []byte{0xAB}})
	p := f.open(t)

	obj, err := p.GetUObject(ref)
	if err != nil {
		t.Fatalf("GetUObject failed: %v", err)
	}
	c, ok := obj.(*natives.Class)
	if !ok {
		t.Fatalf("got %T, want *natives.Class", obj)
	}
	if c.Class() != "Class" || !bytes.Equal(c.Data, []byte{0xAB}) {
		t.Errorf("got class %s data %v", c.Class(), c.Data)
	}
}

func TestPackageObject(t *testing.T) {
	f := newFixture()
	empty := f.add("Package", "Skins", nil)
	withProps := f.add("Package", "Effects", f.b.Data().Name("None").Bytes())
	bad := f.add("Package", "Broken", f.b.Data().Name("Tag").Bytes())
	p := f.open(t)

	for _, ref := range []core.Ref{empty, withProps} {
		obj, err := p.GetUObject(ref)
		if err != nil {
			t.Fatalf("GetUObject(%v) failed: %v", ref, err)
		}
		if _, ok := obj.(*natives.Package); !ok {
			t.Errorf("got %T, want *natives.Package", obj)
		}
	}
	if _, err := p.GetUObject(bad); !errors.Is(err, natives.ErrProperties) {
		t.Errorf("expected ErrProperties, got %v", err)
	}

	root, err := p.Root()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := root.(*natives.Package); !ok || root.Name() != "Test" {
		t.Errorf("root is %T named %q", root, root.Name())
	}
}

func TestPalette(t *testing.T) {
	f := newFixture()
	payload := f.b.Data().Name("None").Index(3).
		Raw(255, 0, 0, 255).
		Raw(0, 255, 0, 255).
		Raw(0, 0, 255, 255).
		Bytes()
	ref := f.add("Palette", "Flames", payload)
	p := f.open(t)

	obj, err := p.GetUObject(ref)
	if err != nil {
		t.Fatalf("GetUObject failed: %v", err)
	}
	pal, ok := obj.(*natives.Palette)
	if !ok {
		t.Fatalf("got %T, want *natives.Palette", obj)
	}
	want := []color.RGBA{{255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}}
	if len(pal.Colors) != len(want) {
		t.Fatalf("got %d colours, want %d", len(pal.Colors), len(want))
	}
	for i := range want {
		if pal.Colors[i] != want[i] {
			t.Errorf("colour %d = %v, want %v", i, pal.Colors[i], want[i])
		}
	}

	var buf bytes.Buffer
	if err := pal.WriteBMP(&buf); err != nil {
		t.Fatalf("WriteBMP failed: %v", err)
	}
	img, err := bmp.Decode(&buf)
	if err != nil {
		t.Fatalf("bmp.Decode failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 128 || b.Dy() != 8 {
		t.Errorf("swatch is %dx%d, want 128x8", b.Dx(), b.Dy())
	}
	for i, c := range want {
		r, g, bl, _ := img.At(i*8+4, 4).RGBA()
		if uint8(r>>8) != c.R || uint8(g>>8) != c.G || uint8(bl>>8) != c.B {
			t.Errorf("cell %d = %d,%d,%d, want %v", i, r>>8, g>>8, bl>>8, c)
		}
	}
}

func TestPaletteErrors(t *testing.T) {
	f := newFixture()
	short := f.add("Palette", "Short", f.b.Data().Name("None").Index(2).Raw(1, 2, 3, 4).Bytes())
	trailing := f.add("Palette", "Trailing", f.b.Data().Name("None").Index(1).Raw(1, 2, 3, 4, 5).Bytes())
	empty := f.add("Palette", "Empty", f.b.Data().Name("None").Index(0).Bytes())
	p := f.open(t)

	if _, err := p.GetUObject(short); !errors.Is(err, core.ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}
	if _, err := p.GetUObject(trailing); !errors.Is(err, core.ErrTrailingData) {
		t.Errorf("expected ErrTrailingData, got %v", err)
	}
	obj, err := p.GetUObject(empty)
	if err != nil {
		t.Fatal(err)
	}
	if err := obj.(*natives.Palette).WriteBMP(&bytes.Buffer{}); err == nil {
		t.Error("expected WriteBMP to refuse an empty palette")
	}
}

func TestTextBuffer(t *testing.T) {
	f := newFixture()
	payload := f.b.Data().Name("None").Int32(12).Int32(3).String("class Rifle extends Weapon;").Bytes()
	ref := f.add("TextBuffer", "ScriptText", payload)
	p := f.open(t)

	obj, err := p.GetUObject(ref)
	if err != nil {
		t.Fatalf("GetUObject failed: %v", err)
	}
	tb := obj.(*natives.TextBuffer)
	if tb.Pos != 12 || tb.Top != 3 || tb.Text != "class Rifle extends Weapon;" {
		t.Errorf("got pos %d top %d text %q", tb.Pos, tb.Top, tb.Text)
	}
}

func TestNewObjectUsesNatives(t *testing.T) {
	p := newFixture().open(t)

	obj, err := p.NewObject("Scratch", "TextBuffer", core.FlagTransient)
	if err != nil {
		t.Fatalf("NewObject failed: %v", err)
	}
	if _, ok := obj.(*natives.TextBuffer); !ok {
		t.Errorf("got %T, want *natives.TextBuffer", obj)
	}
}
