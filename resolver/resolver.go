package resolver

import (
	"fmt"
	"strings"

	"github.com/tsawler/upkg/core"
)

// Tables gives the resolver read access to one package's tables.
type Tables interface {
	NameAt(index int32) (string, bool)
	Import(index int) (core.ImportEntry, bool)
	Export(index int) (core.ExportEntry, bool)
}

// Target identifies an object by name across files.
type Target struct {
	Package string   // file-level package
	Groups  []string // enclosing groups, outermost first
	Class   string
	Object  string

	// TopLevel is set when the import names a package itself rather than
	// an object inside one.
	TopLevel bool
}

// Group returns the innermost group, the one directly enclosing the
// object, or "" if the object sits at the top of its package.
func (t Target) Group() string {
	if len(t.Groups) == 0 {
		return ""
	}
	return t.Groups[len(t.Groups)-1]
}

// String returns the dotted path Package.Group....Object.
func (t Target) String() string {
	if t.TopLevel {
		return t.Package
	}
	parts := make([]string, 0, len(t.Groups)+2)
	parts = append(parts, t.Package)
	parts = append(parts, t.Groups...)
	parts = append(parts, t.Object)
	return strings.Join(parts, ".")
}

// DefaultMaxDepth bounds chains when no other limit is configured.
const DefaultMaxDepth = 64

// Resolver follows package references.
type Resolver struct {
	maxDepth int
}

// Option configures the resolver
type Option func(*Resolver)

// WithMaxDepth sets the maximum chain length (default: 64)
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		r.maxDepth = depth
	}
}

// New creates a resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxDepth returns the configured chain limit.
func (r *Resolver) MaxDepth() int {
	return r.maxDepth
}

func name(t Tables, index int32) (string, error) {
	n, ok := t.NameAt(index)
	if !ok {
		return "", fmt.Errorf("%w: name index %d", core.ErrOutOfBounds, index)
	}
	return n, nil
}

// EntryName returns the object name of the entry ref points at.
func EntryName(t Tables, ref core.Ref) (string, error) {
	switch ref.Kind() {
	case core.RefExport:
		e, ok := t.Export(ref.Index())
		if !ok {
			return "", fmt.Errorf("%w: %s", core.ErrOutOfBounds, ref)
		}
		return name(t, e.NameRef)
	case core.RefImport:
		e, ok := t.Import(ref.Index())
		if !ok {
			return "", fmt.Errorf("%w: %s", core.ErrOutOfBounds, ref)
		}
		return name(t, e.ObjectName)
	default:
		return "", nil
	}
}

// ResolveImport identifies the object named by import entry index.
func (r *Resolver) ResolveImport(t Tables, index int) (Target, error) {
	imp, ok := t.Import(index)
	if !ok {
		return Target{}, fmt.Errorf("%w: import %d", core.ErrOutOfBounds, index)
	}

	var target Target
	var err error
	if target.Class, err = name(t, imp.ClassName); err != nil {
		return Target{}, fmt.Errorf("import %d class: %w", index, err)
	}
	if target.Object, err = name(t, imp.ObjectName); err != nil {
		return Target{}, fmt.Errorf("import %d object: %w", index, err)
	}

	if imp.PackageRef.IsNull() {
		target.Package = target.Object
		target.TopLevel = true
		return target, nil
	}

	// Walk outward from the object; groups are collected innermost first.
	visited := map[core.Ref]bool{core.ImportRef(index): true}
	ref := imp.PackageRef
	for depth := 0; ; depth++ {
		if depth >= r.maxDepth {
			return Target{}, fmt.Errorf("%w: import %d chain deeper than %d", core.ErrReferenceCycle, index, r.maxDepth)
		}
		if visited[ref] {
			return Target{}, fmt.Errorf("%w: import %d revisits %s", core.ErrReferenceCycle, index, ref)
		}
		visited[ref] = true

		n, err := EntryName(t, ref)
		if err != nil {
			return Target{}, fmt.Errorf("import %d package chain: %w", index, err)
		}

		if ref.IsExport() {
			target.Package = n
			break
		}
		e, _ := t.Import(ref.Index())
		if e.PackageRef.IsNull() {
			target.Package = n
			break
		}
		target.Groups = append(target.Groups, n)
		ref = e.PackageRef
	}

	for i, j := 0, len(target.Groups)-1; i < j; i, j = i+1, j-1 {
		target.Groups[i], target.Groups[j] = target.Groups[j], target.Groups[i]
	}
	return target, nil
}

// Path returns the dotted path of names from the outermost package entry
// down to ref, without the name of the file that contains the tables.
// For an import the first element is the file it lives in.
func (r *Resolver) Path(t Tables, ref core.Ref) (string, error) {
	var parts []string
	visited := make(map[core.Ref]bool)

	for depth := 0; !ref.IsNull(); depth++ {
		if depth >= r.maxDepth {
			return "", fmt.Errorf("%w: %s chain deeper than %d", core.ErrReferenceCycle, ref, r.maxDepth)
		}
		if visited[ref] {
			return "", fmt.Errorf("%w: revisits %s", core.ErrReferenceCycle, ref)
		}
		visited[ref] = true

		n, err := EntryName(t, ref)
		if err != nil {
			return "", err
		}
		parts = append(parts, n)

		if ref.IsExport() {
			e, _ := t.Export(ref.Index())
			ref = e.PackageRef
		} else {
			e, _ := t.Import(ref.Index())
			ref = e.PackageRef
		}
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "."), nil
}
