package reader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tsawler/upkg/core"
	"github.com/tsawler/upkg/internal/textenc"
	"github.com/tsawler/upkg/object"
	"github.com/tsawler/upkg/resolver"
)

// ClassClassName is the class of every export whose class reference is
// null: such an export is itself a class.
const ClassClassName = "Class"

// PackageClassName is the class of package and group objects.
const PackageClassName = "Package"

// Package holds the tables of one package file and the objects
// materialised from it. Packages are created by a Manager and live as
// long as it does.
type Package struct {
	mgr  *Manager
	name string // file name without extension, case preserved
	path string

	header    core.Header
	names     []core.NameEntry
	nameIndex map[string]int32 // folded name -> last index with that name
	imports   []core.ImportEntry
	exports   []core.ExportEntry

	// objects and loadErrs run parallel to exports. A slot is filled at
	// most once; a failed load keeps its error instead.
	objects  []object.Object
	loadErrs []error

	natives *object.Registry
	spawned []object.Object
	root    object.Object
}

// Name returns the package name, the file name without its extension.
func (p *Package) Name() string { return p.name }

// Path returns the file the package was read from.
func (p *Package) Path() string { return p.path }

// Manager returns the manager that owns the package.
func (p *Package) Manager() *Manager { return p.mgr }

// Header returns a copy of the file header.
func (p *Package) Header() core.Header {
	h := p.header
	h.Generations = append([]core.Generation(nil), h.Generations...)
	return h
}

// Version returns the format version.
func (p *Package) Version() uint16 { return p.header.Version }

func newPackage(m *Manager, path string) *Package {
	base := filepath.Base(path)
	return &Package{
		mgr:       m,
		name:      strings.TrimSuffix(base, filepath.Ext(base)),
		path:      path,
		nameIndex: make(map[string]int32),
		natives:   object.NewRegistry(),
	}
}

// readTables reads the header and the three tables. It runs once, before
// the package is visible to anyone else.
func (p *Package) readTables() error {
	f, err := p.mgr.streams.Get(p.path)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", p.path, err)
	}

	tr := core.NewTableReader(f, info.Size())
	h, err := tr.ReadHeader()
	if err != nil {
		return err
	}
	p.header = *h

	if p.names, err = tr.ReadNames(h); err != nil {
		return err
	}
	for i, n := range p.names {
		p.nameIndex[textenc.Fold(n.Name)] = int32(i)
	}

	if p.exports, err = tr.ReadExports(h); err != nil {
		return err
	}
	if p.imports, err = tr.ReadImports(h); err != nil {
		return err
	}

	p.objects = make([]object.Object, len(p.exports))
	p.loadErrs = make([]error, len(p.exports))
	return nil
}

// tableView exposes the tables to the resolver without taking the
// manager lock; it is only used by code that already holds it.
type tableView struct{ p *Package }

func (v tableView) NameAt(i int32) (string, bool) { return v.p.nameAtLocked(i) }

func (v tableView) Import(i int) (core.ImportEntry, bool) {
	if i < 0 || i >= len(v.p.imports) {
		return core.ImportEntry{}, false
	}
	return v.p.imports[i], true
}

func (v tableView) Export(i int) (core.ExportEntry, bool) {
	if i < 0 || i >= len(v.p.exports) {
		return core.ExportEntry{}, false
	}
	return v.p.exports[i], true
}

func (p *Package) view() resolver.Tables { return tableView{p} }

func (p *Package) nameAtLocked(i int32) (string, bool) {
	if i < 0 || int(i) >= len(p.names) {
		return "", false
	}
	return p.names[i].Name, true
}

func (p *Package) nameLocked(i int32) (string, error) {
	n, ok := p.nameAtLocked(i)
	if !ok {
		return "", fmt.Errorf("%w: name index %d in %s", core.ErrOutOfBounds, i, p.name)
	}
	return n, nil
}

// NameAt returns the name table entry at index, with its case preserved.
func (p *Package) NameAt(index int32) (string, bool) {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()
	return p.nameAtLocked(index)
}

// NameIndex looks a name up ignoring case.
func (p *Package) NameIndex(name string) (int32, bool) {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()
	i, ok := p.nameIndex[textenc.Fold(name)]
	return i, ok
}

// Import returns import table entry index.
func (p *Package) Import(index int) (core.ImportEntry, bool) {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()
	return tableView{p}.Import(index)
}

// Export returns export table entry index.
func (p *Package) Export(index int) (core.ExportEntry, bool) {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()
	return tableView{p}.Export(index)
}

// Names returns a copy of the name table.
func (p *Package) Names() []core.NameEntry {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()
	return append([]core.NameEntry(nil), p.names...)
}

// Imports returns a copy of the import table.
func (p *Package) Imports() []core.ImportEntry {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()
	return append([]core.ImportEntry(nil), p.imports...)
}

// Exports returns a copy of the export table, including synthesized
// class exports.
func (p *Package) Exports() []core.ExportEntry {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()
	return append([]core.ExportEntry(nil), p.exports...)
}

// classNameLocked returns the class name of an export.
func (p *Package) classNameLocked(e core.ExportEntry) (string, error) {
	if e.ClassRef.IsNull() {
		return ClassClassName, nil
	}
	return resolver.EntryName(p.view(), e.ClassRef)
}

// ObjectName returns the name of the entry ref points at, or "" for a
// null reference.
func (p *Package) ObjectName(ref core.Ref) (string, error) {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()
	return resolver.EntryName(p.view(), ref)
}

// ClassName returns the class name of the entry ref points at.
func (p *Package) ClassName(ref core.Ref) (string, error) {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()

	switch ref.Kind() {
	case core.RefExport:
		e, ok := tableView{p}.Export(ref.Index())
		if !ok {
			return "", fmt.Errorf("%w: %s", core.ErrOutOfBounds, ref)
		}
		return p.classNameLocked(e)
	case core.RefImport:
		e, ok := tableView{p}.Import(ref.Index())
		if !ok {
			return "", fmt.Errorf("%w: %s", core.ErrOutOfBounds, ref)
		}
		return p.nameLocked(e.ClassName)
	default:
		return "", nil
	}
}

// QualifiedName returns the dotted path of ref. Exports are prefixed
// with this package's name; imports start with the file they name.
func (p *Package) QualifiedName(ref core.Ref) (string, error) {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()
	return p.qualifiedNameLocked(ref)
}

func (p *Package) qualifiedNameLocked(ref core.Ref) (string, error) {
	path, err := p.mgr.resolver.Path(p.view(), ref)
	if err != nil {
		return "", err
	}
	if ref.IsExport() {
		return p.name + "." + path, nil
	}
	return path, nil
}

// FindObjectReference finds the export named object whose class is
// class and, if group is not empty, whose enclosing package entry is
// named group. All comparisons ignore case; an empty class matches any
// class. It returns core.NullRef when nothing matches.
func (p *Package) FindObjectReference(class, objectName, group string) core.Ref {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()
	return p.findObjectReferenceLocked(class, objectName, group)
}

func (p *Package) findObjectReferenceLocked(class, objectName, group string) core.Ref {
	nameIdx, ok := p.nameIndex[textenc.Fold(objectName)]
	if !ok {
		return core.NullRef
	}

	for i, e := range p.exports {
		if e.NameRef != nameIdx {
			continue
		}
		if group != "" {
			if e.PackageRef.IsNull() {
				continue
			}
			g, err := resolver.EntryName(p.view(), e.PackageRef)
			if err != nil || !textenc.Equal(g, group) {
				continue
			}
		}
		if class != "" {
			c, err := p.classNameLocked(e)
			if err != nil || !textenc.Equal(c, class) {
				continue
			}
		}
		return core.ExportRef(i)
	}
	return core.NullRef
}

// classRefLocked finds a class by name among the exports, then among
// the imports.
func (p *Package) classRefLocked(class string) core.Ref {
	if ref := p.findObjectReferenceLocked(ClassClassName, class, ""); !ref.IsNull() {
		return ref
	}
	for i, e := range p.imports {
		cls, _ := p.nameAtLocked(e.ClassName)
		obj, _ := p.nameAtLocked(e.ObjectName)
		if textenc.Equal(cls, ClassClassName) && textenc.Equal(obj, class) {
			return core.ImportRef(i)
		}
	}
	return core.NullRef
}

// ensureNameLocked returns the index of name, appending it if missing.
func (p *Package) ensureNameLocked(name string) int32 {
	if i, ok := p.nameIndex[textenc.Fold(name)]; ok {
		return i
	}
	p.names = append(p.names, core.NameEntry{Name: name})
	i := int32(len(p.names) - 1)
	p.nameIndex[textenc.Fold(name)] = i
	return i
}

// RegisterNativeClass registers factory under name in this package's
// registry. With synthesize set, a class export named name is
// fabricated when the file does not define one, so that
// FindObjectReference("Class", name, "") finds it.
func (p *Package) RegisterNativeClass(name string, factory object.Factory, synthesize bool) {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()
	p.registerNativeClassLocked(name, factory, synthesize)
}

func (p *Package) registerNativeClassLocked(name string, factory object.Factory, synthesize bool) {
	p.natives.Register(name, factory)
	if !synthesize {
		return
	}
	if !p.findObjectReferenceLocked(ClassClassName, name, "").IsNull() {
		return
	}

	p.exports = append(p.exports, core.ExportEntry{
		NameRef: p.ensureNameLocked(name),
		Flags:   core.FlagPublic | core.FlagStandalone | core.FlagNative,
	})
	p.objects = append(p.objects, nil)
	p.loadErrs = append(p.loadErrs, nil)
	log.Debugf("%s: synthesized class export %s", p.name, name)
}

// NativeClasses returns the names registered in this package.
func (p *Package) NativeClasses() []string {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()
	return p.natives.Names()
}

// Registrar registers native classes on a package while the manager is
// setting it up. It is handed to the manager's natives hook.
type Registrar struct {
	p *Package
}

// Package returns the name of the package being set up.
func (r *Registrar) Package() string { return r.p.name }

// RegisterNativeClass is Package.RegisterNativeClass for a package that
// is not yet published.
func (r *Registrar) RegisterNativeClass(name string, factory object.Factory, synthesize bool) {
	r.p.registerNativeClassLocked(name, factory, synthesize)
}
