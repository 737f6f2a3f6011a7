// Package format identifies package files by extension and signature.
package format

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tsawler/upkg/core"
)

// Kind is the role of a package file within a game directory.
type Kind int

const (
	// Unknown indicates an unrecognized extension.
	Unknown Kind = iota
	// Map indicates a level (.unr).
	Map
	// Music indicates a music package (.umx).
	Music
	// Sound indicates a sound package (.uax).
	Sound
	// Code indicates a script and class package (.u).
	Code
	// Texture indicates a texture package (.utx).
	Texture
)

var kinds = []struct {
	kind   Kind
	name   string
	ext    string
	folder string
}{
	{Map, "Map", ".unr", "Maps"},
	{Music, "Music", ".umx", "Music"},
	{Sound, "Sound", ".uax", "Sounds"},
	{Code, "Code", ".u", "System"},
	{Texture, "Texture", ".utx", "Textures"},
}

// Kinds returns every known kind in folder-scan order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	for i, k := range kinds {
		out[i] = k.kind
	}
	return out
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	for _, e := range kinds {
		if e.kind == k {
			return e.name
		}
	}
	return "Unknown"
}

// Extension returns the file extension of the kind, with its dot.
func (k Kind) Extension() string {
	for _, e := range kinds {
		if e.kind == k {
			return e.ext
		}
	}
	return ""
}

// Folder returns the directory that conventionally holds the kind.
func (k Kind) Folder() string {
	for _, e := range kinds {
		if e.kind == k {
			return e.folder
		}
	}
	return ""
}

// Detect determines the kind from a file name's extension.
func Detect(filename string) Kind {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range kinds {
		if e.ext == ext {
			return e.kind
		}
	}
	return Unknown
}

// IsPackage reports whether data starts with the package signature.
func IsPackage(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data) == core.Signature
}

// Sniff checks the signature and version at the start of r and returns
// the version. It fails with core.ErrNotAPackage or
// core.ErrUnsupportedVersion.
func Sniff(r io.ReaderAt) (uint16, error) {
	var magic [6]byte
	n, err := r.ReadAt(magic[:], 0)
	if err != nil && !(errors.Is(err, io.EOF) && n == len(magic)) {
		if n < len(magic) {
			return 0, fmt.Errorf("%w: %d byte file", core.ErrNotAPackage, n)
		}
		return 0, err
	}
	if !IsPackage(magic[:]) {
		return 0, fmt.Errorf("%w: signature 0x%08X", core.ErrNotAPackage, binary.LittleEndian.Uint32(magic[:]))
	}
	v := binary.LittleEndian.Uint16(magic[4:])
	if v < core.MinVersion || v >= core.MaxVersion {
		return v, fmt.Errorf("%w: %d", core.ErrUnsupportedVersion, v)
	}
	return v, nil
}
