package core

import "fmt"

// RefKind selects which table a Ref points into.
type RefKind uint8

const (
	RefNull RefKind = iota
	RefExport
	RefImport
)

// String returns the kind name.
func (k RefKind) String() string {
	switch k {
	case RefNull:
		return "Null"
	case RefExport:
		return "Export"
	case RefImport:
		return "Import"
	default:
		return "Unknown"
	}
}

// Ref is a decoded object reference. On disk a reference is a signed
// integer: 0 is null, r > 0 is export r-1 and r < 0 is import -r-1.
// RefFromRaw performs that decoding once; everything else works on Ref.
type Ref struct {
	kind  RefKind
	index int32
}

// NullRef is the reference to no object.
var NullRef = Ref{}

// RefFromRaw decodes an on-disk reference.
func RefFromRaw(raw int32) Ref {
	switch {
	case raw > 0:
		return Ref{kind: RefExport, index: raw - 1}
	case raw < 0:
		// -raw overflows for MinInt32; -(raw+1) does not.
		return Ref{kind: RefImport, index: -(raw + 1)}
	default:
		return NullRef
	}
}

// ExportRef returns a reference to export table entry i (0-based).
func ExportRef(i int) Ref {
	return Ref{kind: RefExport, index: int32(i)}
}

// ImportRef returns a reference to import table entry i (0-based).
func ImportRef(i int) Ref {
	return Ref{kind: RefImport, index: int32(i)}
}

// Kind returns the table the reference points into.
func (r Ref) Kind() RefKind { return r.kind }

// Index returns the 0-based table index. It is 0 for a null reference.
func (r Ref) Index() int { return int(r.index) }

func (r Ref) IsNull() bool   { return r.kind == RefNull }
func (r Ref) IsExport() bool { return r.kind == RefExport }
func (r Ref) IsImport() bool { return r.kind == RefImport }

// Raw re-encodes the reference in its on-disk form.
func (r Ref) Raw() int32 {
	switch r.kind {
	case RefExport:
		return r.index + 1
	case RefImport:
		return -r.index - 1
	default:
		return 0
	}
}

// String returns a short form such as "export[3]".
func (r Ref) String() string {
	switch r.kind {
	case RefExport:
		return fmt.Sprintf("export[%d]", r.index)
	case RefImport:
		return fmt.Sprintf("import[%d]", r.index)
	default:
		return "null"
	}
}
