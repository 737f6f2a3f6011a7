package reader

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/tsawler/upkg/core"
	"github.com/tsawler/upkg/internal/pkgtest"
	"github.com/tsawler/upkg/object"
)

const gameDir = "/game"

// blob keeps its payload.
type blob struct {
	object.Base
	data []byte
}

func newBlob(name, class string, flags core.ObjectFlags) object.Object {
	return &blob{Base: object.NewBase(name, class, flags)}
}

func (b *blob) Load(s *core.ObjectStream) error {
	b.data = make([]byte, s.Remaining())
	return s.ReadBytes(b.data)
}

// linked refers to one other object and records its post-load pass.
type linked struct {
	object.Base
	next           object.Object
	postLoads      int
	nextAtPostLoad object.Object
}

func newLinked(name, class string, flags core.ObjectFlags) object.Object {
	return &linked{Base: object.NewBase(name, class, flags)}
}

func (l *linked) Load(s *core.ObjectStream) error {
	next, err := core.ReadObject[object.Object](s)
	if err != nil {
		return err
	}
	l.next = next
	return s.EnsureEnd()
}

func (l *linked) PostLoad() error {
	l.postLoads++
	l.nextAtPostLoad = l.next
	return nil
}

var errPostLoad = errors.New("post-load refused")

// refusing fails its post-load pass.
type refusing struct {
	blob
}

func newRefusing(name, class string, flags core.ObjectFlags) object.Object {
	return &refusing{blob: blob{Base: object.NewBase(name, class, flags)}}
}

func (r *refusing) PostLoad() error { return errPostLoad }

// actor is native only in the package defining its class.
type actor struct {
	blob
}

func newActor(name, class string, flags core.ObjectFlags) object.Object {
	return &actor{blob: blob{Base: object.NewBase(name, class, flags)}}
}

func testNatives(r *Registrar) error {
	r.RegisterNativeClass("Object", newBlob, false)
	r.RegisterNativeClass(ClassClassName, newBlob, false)
	r.RegisterNativeClass(PackageClassName, newBlob, false)
	r.RegisterNativeClass("Linked", newLinked, false)
	r.RegisterNativeClass("Refusing", newRefusing, false)
	return nil
}

func systemPath(name string) string {
	return filepath.Join(gameDir, SystemDir, name+".u")
}

// newTestManager scans the System folder of fs with the test natives.
func newTestManager(t *testing.T, fs afero.Fs, opts ...Option) *Manager {
	t.Helper()

	opts = append([]Option{WithFs(fs), WithNatives(testNatives)}, opts...)
	m, err := New(gameDir, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	if _, err := m.ScanFolder(SystemDir, "*.u"); err != nil {
		t.Fatalf("ScanFolder failed: %v", err)
	}
	return m
}

func mustPackage(t *testing.T, m *Manager, name string) *Package {
	t.Helper()
	p, err := m.GetPackage(name)
	if err != nil {
		t.Fatalf("GetPackage(%q) failed: %v", name, err)
	}
	return p
}

// coreBuilder returns a package defining the root classes.
func coreBuilder() *pkgtest.Builder {
	b := pkgtest.New(69)
	obj := b.Export(pkgtest.Export{Name: "Object", Flags: core.FlagNative | core.FlagPublic})
	b.Export(pkgtest.Export{Name: "Package", Base: obj, Flags: core.FlagNative | core.FlagPublic})
	b.Export(pkgtest.Export{Name: "Texture", Base: obj, Flags: core.FlagPublic})
	return b
}
