package natives

import (
	"github.com/tsawler/upkg/core"
	"github.com/tsawler/upkg/object"
)

// TextBuffer holds script source or other text.
type TextBuffer struct {
	object.Base
	Pos  int32
	Top  int32
	Text string
}

func NewTextBuffer(name, class string, flags core.ObjectFlags) object.Object {
	return &TextBuffer{Base: object.NewBase(name, class, flags)}
}

func (t *TextBuffer) Load(s *core.ObjectStream) error {
	if err := readNoProperties(s); err != nil {
		return err
	}

	var err error
	if t.Pos, err = s.ReadInt32(); err != nil {
		return err
	}
	if t.Top, err = s.ReadInt32(); err != nil {
		return err
	}
	if t.Text, err = s.ReadString(); err != nil {
		return err
	}
	return s.EnsureEnd()
}
