package reader

import (
	"errors"
	"fmt"
	"io"

	"github.com/tsawler/upkg/core"
	"github.com/tsawler/upkg/internal/textenc"
	"github.com/tsawler/upkg/object"
)

// GetUObject returns the object ref points at, instantiating and loading
// it on first use. A null reference yields a nil object. Repeated calls
// with the same reference return the same instance.
func (p *Package) GetUObject(ref core.Ref) (object.Object, error) {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()
	return p.getUObjectLocked(ref)
}

func (p *Package) getUObjectLocked(ref core.Ref) (object.Object, error) {
	switch ref.Kind() {
	case core.RefExport:
		return p.exportObjectLocked(ref.Index())
	case core.RefImport:
		return p.importObjectLocked(ref.Index())
	default:
		return nil, nil
	}
}

// LoadExportObject instantiates and loads export index. An export that is
// already loaded is returned as is.
func (p *Package) LoadExportObject(index int) (object.Object, error) {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()
	return p.exportObjectLocked(index)
}

// IsLoaded reports whether the object ref points at has been
// instantiated. Imports are never cached on the importing package.
func (p *Package) IsLoaded(ref core.Ref) bool {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()
	if !ref.IsExport() || ref.Index() >= len(p.objects) {
		return false
	}
	return p.objects[ref.Index()] != nil && p.loadErrs[ref.Index()] == nil
}

// LoadAll instantiates every export, stopping at the first failure.
func (p *Package) LoadAll() error {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()
	for i := range p.exports {
		if _, err := p.exportObjectLocked(i); err != nil {
			return err
		}
	}
	return nil
}

func (p *Package) exportObjectLocked(i int) (object.Object, error) {
	if i < 0 || i >= len(p.exports) {
		return nil, fmt.Errorf("%w: export %d of %d in %s", core.ErrOutOfBounds, i, len(p.exports), p.name)
	}
	if err := p.loadErrs[i]; err != nil {
		return nil, err
	}
	if obj := p.objects[i]; obj != nil {
		return obj, nil
	}

	release := p.mgr.setDelayLoadActive()
	obj, err := p.loadExportObjectLocked(i)
	if rerr := release(err); err == nil && rerr != nil {
		err = rerr
		if p.loadErrs[i] == nil {
			p.loadErrs[i] = err
		}
	}
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// loadExportObjectLocked does the work for an empty slot: find the
// factory along the class chain, publish the new object in its slot, then
// deserialise its payload.
func (p *Package) loadExportObjectLocked(i int) (object.Object, error) {
	e := p.exports[i]
	name, err := p.nameLocked(e.NameRef)
	if err != nil {
		p.loadErrs[i] = err
		return nil, err
	}

	var (
		factory object.Factory
		class   string
	)
	if e.ClassRef.IsNull() {
		class = ClassClassName
		f, ok := p.natives.Lookup(ClassClassName)
		if !ok {
			err = fmt.Errorf("%w: %s.%s has no native %s", core.ErrMissingBaseClass, p.name, name, ClassClassName)
		}
		factory = f
	} else {
		factory, class, err = p.walkClassChainLocked(e.ClassRef)
	}
	if err != nil {
		err = fmt.Errorf("failed to load %s.%s: %w", p.name, name, err)
		p.loadErrs[i] = err
		return nil, err
	}

	obj := factory(name, class, e.Flags)
	if obj == nil {
		err = fmt.Errorf("%w: factory for %s returned nil", core.ErrUnknownClass, class)
		p.loadErrs[i] = err
		return nil, err
	}
	p.objects[i] = obj

	s, err := p.openObjectStreamLocked(i, "")
	if err == nil {
		err = obj.Load(s)
	}
	if err != nil {
		err = fmt.Errorf("failed to load %s %s.%s: %w", class, p.name, name, err)
		p.loadErrs[i] = err
		return nil, err
	}

	if pl, ok := obj.(object.PostLoader); ok {
		p.mgr.queuePostLoad(p, i, pl)
	}
	log.Debugf("loaded %s %s.%s", class, p.name, name)
	return obj, nil
}

// exportLabelLocked names export i as Package.Object for messages.
func (p *Package) exportLabelLocked(i int) string {
	name, _ := p.nameAtLocked(p.exports[i].NameRef)
	return p.name + "." + name
}

// classLink is one hop of a class chain: a reference as seen from pkg.
type classLink struct {
	pkg *Package
	ref core.Ref
}

// walkClassChainLocked follows ref and its base classes until some
// package along the way has a native factory for the class at hand. The
// returned class name is always the first one seen, so scripted
// subclasses keep their own name on a native implementation.
func (p *Package) walkClassChainLocked(ref core.Ref) (object.Factory, string, error) {
	var (
		link    = classLink{pkg: p, ref: ref}
		first   string
		visited = make(map[classLink]bool)
		limit   = p.mgr.resolver.MaxDepth()
	)

	for depth := 0; ; depth++ {
		if visited[link] {
			return nil, "", fmt.Errorf("%w: class chain of %s revisits %s in %s", core.ErrReferenceCycle, first, link.ref, link.pkg.name)
		}
		if depth >= limit {
			return nil, "", fmt.Errorf("%w: class chain of %s in %s deeper than %d", core.ErrReferenceCycle, ref, p.name, limit)
		}
		visited[link] = true

		name, err := link.pkg.classLinkNameLocked(link.ref)
		if err != nil {
			return nil, "", err
		}
		if first == "" {
			first = name
		}
		if f, ok := link.pkg.natives.Lookup(name); ok {
			return f, first, nil
		}

		owner, idx, err := link.pkg.classExportLocked(link.ref)
		if err != nil {
			return nil, "", err
		}
		// An imported class may be native only in the package defining it.
		if owner != link.pkg {
			if f, ok := owner.natives.Lookup(name); ok {
				return f, first, nil
			}
		}
		base := owner.exports[idx].BaseRef
		if base.IsNull() {
			return nil, "", fmt.Errorf("%w: %s (ends at %s.%s)", core.ErrMissingBaseClass, first, owner.name, name)
		}
		link = classLink{pkg: owner, ref: base}
	}
}

func (p *Package) classLinkNameLocked(ref core.Ref) (string, error) {
	switch ref.Kind() {
	case core.RefExport:
		e, ok := tableView{p}.Export(ref.Index())
		if !ok {
			return "", fmt.Errorf("%w: class %s in %s", core.ErrOutOfBounds, ref, p.name)
		}
		return p.nameLocked(e.NameRef)
	case core.RefImport:
		e, ok := tableView{p}.Import(ref.Index())
		if !ok {
			return "", fmt.Errorf("%w: class %s in %s", core.ErrOutOfBounds, ref, p.name)
		}
		return p.nameLocked(e.ObjectName)
	default:
		return "", fmt.Errorf("%w: null class reference in %s", core.ErrMissingBaseClass, p.name)
	}
}

// classExportLocked locates the export that defines the class ref points
// at, opening the package an import names if needed. The class itself is
// not instantiated.
func (p *Package) classExportLocked(ref core.Ref) (*Package, int, error) {
	if ref.IsExport() {
		return p, ref.Index(), nil
	}

	target, err := p.mgr.resolver.ResolveImport(p.view(), ref.Index())
	if err != nil {
		return nil, 0, err
	}
	tp, err := p.mgr.getPackageLocked(target.Package)
	if err != nil {
		return nil, 0, err
	}
	found := tp.findObjectReferenceLocked(target.Class, target.Object, target.Group())
	if found.IsNull() {
		return nil, 0, fmt.Errorf("%w: %s", core.ErrUnknownClass, target)
	}
	return tp, found.Index(), nil
}

// importObjectLocked resolves import i in the package it names. Imports
// of a whole package resolve to that package's root object.
func (p *Package) importObjectLocked(i int) (object.Object, error) {
	target, err := p.mgr.resolver.ResolveImport(p.view(), i)
	if err != nil {
		return nil, err
	}
	tp, err := p.mgr.getPackageLocked(target.Package)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", target, err)
	}
	if target.TopLevel {
		return tp.rootLocked()
	}

	ref := tp.findObjectReferenceLocked(target.Class, target.Object, target.Group())
	if ref.IsNull() {
		return nil, fmt.Errorf("%w: %s %s", core.ErrUnknownObject, target.Class, target)
	}
	return tp.getUObjectLocked(ref)
}

// Root returns the object standing for the package as a whole.
func (p *Package) Root() (object.Object, error) {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()
	return p.rootLocked()
}

func (p *Package) rootLocked() (object.Object, error) {
	if p.root != nil {
		return p.root, nil
	}
	f, ok := p.natives.Lookup(PackageClassName)
	if !ok {
		return nil, fmt.Errorf("%w: %s for package %s", core.ErrUnknownClass, PackageClassName, p.name)
	}
	p.root = f(p.name, PackageClassName, core.FlagPublic|core.FlagStandalone)
	return p.root, nil
}

// NewObject creates an object of class that is not backed by the file.
// The class is looked up among this package's classes and imports, then
// in its native registry. The package owns the result.
func (p *Package) NewObject(name, class string, flags core.ObjectFlags) (object.Object, error) {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()

	var (
		factory object.Factory
		first   = class
		err     error
	)
	if ref := p.classRefLocked(class); !ref.IsNull() {
		factory, first, err = p.walkClassChainLocked(ref)
		if err != nil {
			return nil, err
		}
	} else if f, ok := p.natives.Lookup(class); ok {
		factory = f
	} else {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownClass, class)
	}

	obj := factory(name, first, flags)
	if obj == nil {
		return nil, fmt.Errorf("%w: factory for %s returned nil", core.ErrUnknownClass, class)
	}
	p.spawned = append(p.spawned, obj)
	return obj, nil
}

// Spawned returns the objects created with NewObject, oldest first.
func (p *Package) Spawned() []object.Object {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()
	return append([]object.Object(nil), p.spawned...)
}

// OpenObjectStream opens the payload of export index. If expectedClass
// is not empty the export's class must have that name.
func (p *Package) OpenObjectStream(index int, expectedClass string) (*core.ObjectStream, error) {
	p.mgr.mu.Lock()
	defer p.mgr.mu.Unlock()
	return p.openObjectStreamLocked(index, expectedClass)
}

func (p *Package) openObjectStreamLocked(index int, expectedClass string) (*core.ObjectStream, error) {
	e, ok := tableView{p}.Export(index)
	if !ok {
		return nil, fmt.Errorf("%w: export %d of %d in %s", core.ErrOutOfBounds, index, len(p.exports), p.name)
	}
	if expectedClass != "" {
		class, err := p.classNameLocked(e)
		if err != nil {
			return nil, err
		}
		if !textenc.Equal(class, expectedClass) {
			return nil, fmt.Errorf("%w: export %d of %s is %s, not %s", core.ErrTypeMismatch, index, p.name, class, expectedClass)
		}
	}

	link := core.StreamLinker{
		Name: p.nameAtLocked,
		Object: func(ref core.Ref) (any, error) {
			obj, err := p.getUObjectLocked(ref)
			if err != nil || obj == nil {
				return nil, err
			}
			return obj, nil
		},
	}

	if e.Size == 0 {
		return core.NewObjectStream(nil, int64(e.Offset), p.header.Version, link), nil
	}

	f, err := p.mgr.getStreamLocked(p)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, e.Size)
	n, err := f.ReadAt(buf, int64(e.Offset))
	if err != nil && !(errors.Is(err, io.EOF) && n == len(buf)) {
		return nil, fmt.Errorf("%w: export %d of %s at %d+%d: %v", core.ErrOutOfBounds, index, p.name, e.Offset, e.Size, err)
	}
	return core.NewObjectStream(buf, int64(e.Offset), p.header.Version, link), nil
}
