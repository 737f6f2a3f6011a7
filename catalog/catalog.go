// Package catalog summarises the tables of a package: every name,
// import and export with its resolved class and fully qualified path.
// A Catalog encodes to canonical CBOR and renders as HTML or text.
package catalog

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/tsawler/upkg/core"
	"github.com/tsawler/upkg/resolver"
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("catalog: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Source is what a catalog is built from; *reader.Package satisfies it.
type Source interface {
	resolver.Tables
	Name() string
	Header() core.Header
	Names() []core.NameEntry
	Imports() []core.ImportEntry
	Exports() []core.ExportEntry
}

// Catalog is the summary of one package.
type Catalog struct {
	Package     string   `cbor:"package"`
	Version     uint16   `cbor:"version"`
	Licensee    uint16   `cbor:"licensee"`
	Flags       string   `cbor:"flags"`
	GUID        string   `cbor:"guid"`
	Generations int      `cbor:"generations,omitempty"`
	Names       []Name   `cbor:"names"`
	Imports     []Import `cbor:"imports"`
	Exports     []Export `cbor:"exports"`
}

type Name struct {
	Index int    `cbor:"index"`
	Name  string `cbor:"name"`
	Flags uint32 `cbor:"flags,omitempty"`
}

type Import struct {
	Index        int    `cbor:"index"`
	Ref          int32  `cbor:"ref"`
	ClassPackage string `cbor:"class_package"`
	Class        string `cbor:"class"`
	Path         string `cbor:"path"`
}

type Export struct {
	Index  int    `cbor:"index"`
	Ref    int32  `cbor:"ref"`
	Class  string `cbor:"class"`
	Super  string `cbor:"super,omitempty"`
	Path   string `cbor:"path"`
	Flags  string `cbor:"flags"`
	Size   int32  `cbor:"size"`
	Offset int32  `cbor:"offset,omitempty"`
}

// Build summarises src, resolving paths with r. A nil r uses the
// default resolver.
func Build(src Source, r *resolver.Resolver) (*Catalog, error) {
	if r == nil {
		r = resolver.New()
	}

	h := src.Header()
	c := &Catalog{
		Package:     src.Name(),
		Version:     h.Version,
		Licensee:    h.Licensee,
		Flags:       h.Flags.String(),
		GUID:        h.GUID.String(),
		Generations: len(h.Generations),
	}

	for i, n := range src.Names() {
		c.Names = append(c.Names, Name{Index: i, Name: n.Name, Flags: n.Flags})
	}

	for i, e := range src.Imports() {
		ref := core.ImportRef(i)
		path, err := r.Path(src, ref)
		if err != nil {
			return nil, fmt.Errorf("import %d: %w", i, err)
		}
		pkg, _ := src.NameAt(e.ClassPackage)
		class, _ := src.NameAt(e.ClassName)
		c.Imports = append(c.Imports, Import{
			Index:        i,
			Ref:          ref.Raw(),
			ClassPackage: pkg,
			Class:        class,
			Path:         path,
		})
	}

	for i, e := range src.Exports() {
		ref := core.ExportRef(i)
		path, err := r.Path(src, ref)
		if err != nil {
			return nil, fmt.Errorf("export %d: %w", i, err)
		}
		class := "Class"
		if !e.ClassRef.IsNull() {
			if class, err = resolver.EntryName(src, e.ClassRef); err != nil {
				return nil, fmt.Errorf("export %d class: %w", i, err)
			}
		}
		super, err := resolver.EntryName(src, e.BaseRef)
		if err != nil {
			return nil, fmt.Errorf("export %d super: %w", i, err)
		}
		c.Exports = append(c.Exports, Export{
			Index:  i,
			Ref:    ref.Raw(),
			Class:  class,
			Super:  super,
			Path:   src.Name() + "." + path,
			Flags:  e.Flags.String(),
			Size:   e.Size,
			Offset: e.Offset,
		})
	}
	return c, nil
}

// CBOR encodes the catalog in canonical form; equal catalogs encode to
// equal bytes.
func (c *Catalog) CBOR() ([]byte, error) {
	return encMode.Marshal(c)
}

// Decode parses a catalog produced by CBOR.
func Decode(data []byte) (*Catalog, error) {
	var c Catalog
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: unmarshal: %w", err)
	}
	return &c, nil
}

// Find returns the export with exactly the given path.
func (c *Catalog) Find(path string) (Export, bool) {
	for _, e := range c.Exports {
		if e.Path == path {
			return e, true
		}
	}
	return Export{}, false
}
