// Package natives implements the built-in classes every package can
// instantiate and registers them on packages as they are opened:
//
//	m, err := reader.New(dir, reader.WithNatives(natives.Register))
//
// Objects of scripted classes without a native implementation of their
// own fall back to [Object], which keeps the raw payload.
package natives

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/tsawler/upkg/core"
	"github.com/tsawler/upkg/internal/textenc"
	"github.com/tsawler/upkg/object"
	"github.com/tsawler/upkg/reader"
)

var log = commonlog.GetLogger("upkg.natives")

// ErrProperties is returned when a payload carries tagged properties,
// which are not decoded.
var ErrProperties = errors.New("tagged properties are not supported")

// noneName terminates a property list.
const noneName = "None"

type native struct {
	name       string
	factory    object.Factory
	synthesize bool
}

var builtins = []native{
	{"Object", NewObject, true},
	{reader.ClassClassName, NewClass, true},
	{reader.PackageClassName, NewPackage, false},
	{"Palette", NewPalette, false},
	{"TextBuffer", NewTextBuffer, false},
}

// Register registers the built-in classes on r. Object and Class are
// synthesized in packages that do not define them.
func Register(r *reader.Registrar) error {
	for _, n := range builtins {
		r.RegisterNativeClass(n.name, n.factory, n.synthesize)
	}
	log.Debugf("%s: registered %d native classes", r.Package(), len(builtins))
	return nil
}

// Names returns the names of the built-in classes.
func Names() []string {
	names := make([]string, len(builtins))
	for i, n := range builtins {
		names[i] = n.name
	}
	return names
}

// readNoProperties reads a property list that must be empty.
func readNoProperties(s *core.ObjectStream) error {
	name, err := s.ReadName()
	if err != nil {
		return err
	}
	if !textenc.Equal(name, noneName) {
		return fmt.Errorf("%w: found %q", ErrProperties, name)
	}
	return nil
}

// Object is the fallback implementation: it keeps the payload as is.
type Object struct {
	object.Base
	Data []byte
}

// NewObject is the factory for Object.
func NewObject(name, class string, flags core.ObjectFlags) object.Object {
	return &Object{Base: object.NewBase(name, class, flags)}
}

func (o *Object) Load(s *core.ObjectStream) error {
	o.Data = make([]byte, s.Remaining())
	return s.ReadBytes(o.Data)
}

// Class is a class object. Its payload (script and defaults) is kept
// undecoded.
type Class struct {
	Object
}

func NewClass(name, class string, flags core.ObjectFlags) object.Object {
	return &Class{Object: Object{Base: object.NewBase(name, class, flags)}}
}

// Package stands for a package or a group within one.
type Package struct {
	object.Base
}

func NewPackage(name, class string, flags core.ObjectFlags) object.Object {
	return &Package{Base: object.NewBase(name, class, flags)}
}

// Load accepts an empty payload or an empty property list.
func (p *Package) Load(s *core.ObjectStream) error {
	if s.Remaining() == 0 {
		return nil
	}
	if err := readNoProperties(s); err != nil {
		return err
	}
	return s.EnsureEnd()
}
