package natives

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"golang.org/x/image/bmp"

	"github.com/tsawler/upkg/core"
	"github.com/tsawler/upkg/object"
)

const (
	swatchColumns = 16
	swatchCell    = 8

	// maxBMPColors is the largest palette an 8-bit BMP can carry.
	maxBMPColors = 256
)

// Palette is an indexed colour table.
type Palette struct {
	object.Base
	Colors []color.RGBA
}

func NewPalette(name, class string, flags core.ObjectFlags) object.Object {
	return &Palette{Base: object.NewBase(name, class, flags)}
}

// Load reads an empty property list, a colour count and that many RGBA
// quadruples.
func (p *Palette) Load(s *core.ObjectStream) error {
	if err := readNoProperties(s); err != nil {
		return err
	}
	n, err := s.ReadIndex()
	if err != nil {
		return err
	}
	if n < 0 || int(n) > s.Remaining()/4 {
		return fmt.Errorf("%w: %d colours in %d bytes", core.ErrOutOfBounds, n, s.Remaining())
	}

	p.Colors = make([]color.RGBA, n)
	var rgba [4]byte
	for i := range p.Colors {
		if err := s.ReadBytes(rgba[:]); err != nil {
			return err
		}
		p.Colors[i] = color.RGBA{R: rgba[0], G: rgba[1], B: rgba[2], A: rgba[3]}
	}
	return s.EnsureEnd()
}

// Palette returns the colours as an image palette.
func (p *Palette) Palette() color.Palette {
	pal := make(color.Palette, len(p.Colors))
	for i, c := range p.Colors {
		pal[i] = c
	}
	return pal
}

// Swatch draws every colour as a square cell, sixteen per row.
func (p *Palette) Swatch() *image.Paletted {
	rows := (len(p.Colors) + swatchColumns - 1) / swatchColumns
	img := image.NewPaletted(image.Rect(0, 0, swatchColumns*swatchCell, rows*swatchCell), p.Palette())
	for y := 0; y < rows*swatchCell; y++ {
		for x := 0; x < swatchColumns*swatchCell; x++ {
			i := (y/swatchCell)*swatchColumns + x/swatchCell
			if i < len(p.Colors) {
				img.SetColorIndex(x, y, uint8(i))
			}
		}
	}
	return img
}

// WriteBMP writes the swatch as an 8-bit BMP.
func (p *Palette) WriteBMP(w io.Writer) error {
	if len(p.Colors) == 0 || len(p.Colors) > maxBMPColors {
		return fmt.Errorf("palette %s: cannot write %d colours as BMP", p.Name(), len(p.Colors))
	}
	return bmp.Encode(w, p.Swatch())
}
