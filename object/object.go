// Package object defines the live objects a package materialises and the
// registry of native factories that construct them.
//
// A factory is registered under the name of a native class. When a
// package instantiates an export it walks the export's class chain until
// it meets a registered name and calls that factory with the export's
// object name, the first class name seen on the walk and the export
// flags. The factory returns an empty object; the package then hands the
// object its payload through Load.
package object

import (
	"sort"

	"github.com/tsawler/upkg/core"
	"github.com/tsawler/upkg/internal/textenc"
)

// Object is a materialised package object.
type Object interface {
	Name() string
	Class() string
	Flags() core.ObjectFlags

	// Load deserialises the object's payload. The stream is bounded to
	// this object; Load should end with s.EnsureEnd().
	Load(s *core.ObjectStream) error
}

// PostLoader is implemented by objects that need a second pass once
// every object reachable from the outermost load has been created.
type PostLoader interface {
	PostLoad() error
}

// Factory constructs an empty native object. class is the first class
// name met while walking the class chain, which may be a scripted
// subclass of the class the factory was registered for.
type Factory func(name, class string, flags core.ObjectFlags) Object

// Base carries the identity shared by every object. Embed it to satisfy
// the Name, Class and Flags methods of Object.
type Base struct {
	name  string
	class string
	flags core.ObjectFlags
}

// NewBase returns a Base for the given identity.
func NewBase(name, class string, flags core.ObjectFlags) Base {
	return Base{name: name, class: class, flags: flags}
}

func (b *Base) Name() string            { return b.name }
func (b *Base) Class() string           { return b.class }
func (b *Base) Flags() core.ObjectFlags { return b.flags }

type registration struct {
	name    string
	factory Factory
}

// Registry maps native class names to factories. Lookups ignore case.
// The zero value is not usable; call NewRegistry.
type Registry struct {
	entries map[string]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Register associates name with f, replacing any earlier factory for the
// same name.
func (r *Registry) Register(name string, f Factory) {
	r.entries[textenc.Fold(name)] = registration{name: name, factory: f}
}

// Lookup returns the factory registered for name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	e, ok := r.entries[textenc.Fold(name)]
	if !ok {
		return nil, false
	}
	return e.factory, true
}

// Has reports whether a factory is registered for name.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[textenc.Fold(name)]
	return ok
}

// Names returns the registered names, as given to Register, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered factories.
func (r *Registry) Len() int {
	return len(r.entries)
}
