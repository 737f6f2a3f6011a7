// Package resolver walks the package and group chains of import and
// export entries.
//
// An import names an object in another file. Its package reference may
// point at a further import that stands for a group (a namespace inside
// the file), which in turn points at another group or at the import that
// names the file itself. Following these links yields the file name, the
// groups and the object name that identify the target.
//
// # Basic Usage
//
//	r := resolver.New()
//	target, err := r.ResolveImport(tables, 3)
//	// target.Package == "Engine", target.Group() == "Effects"
//
// # Cycle Detection
//
// Chains come from file data and can be corrupt. The resolver reports a
// reference that revisits an entry, or a chain deeper than the configured
// limit, instead of looping:
//
//	r := resolver.New(resolver.WithMaxDepth(16))
package resolver
