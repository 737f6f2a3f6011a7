package core

import (
	"fmt"
	"io"

	"github.com/tsawler/upkg/internal/textenc"
)

// Format versions that change how bytes are laid out.
const (
	// VersionSizedStrings is the first version whose strings carry a
	// compact-index length prefix instead of only a NUL terminator.
	VersionSizedStrings = 64

	// VersionGUID is the first version whose header stores a GUID and a
	// generation list instead of a heritage table descriptor.
	VersionGUID = 68
)

// maxStringLen bounds a single decoded string. Names and text buffers in
// real files are far below it; anything larger is corrupt framing.
const maxStringLen = 1 << 24

// byteSource is what the string and index decoders need from a reader.
type byteSource interface {
	io.Reader
	io.ByteReader
}

// decodeString reads one string in the layout selected by version.
func decodeString(r byteSource, version uint16) (string, error) {
	if version < VersionSizedStrings {
		return decodeCString(r)
	}

	n, err := DecodeIndex(r)
	if err != nil {
		return "", fmt.Errorf("reading string length: %w", err)
	}
	if n == 0 {
		return "", nil
	}

	if n < 0 {
		// A negative length counts UTF-16 code units.
		units := -int64(n)
		if units*2 > maxStringLen {
			return "", fmt.Errorf("%w: string length %d", ErrOutOfBounds, n)
		}
		buf := make([]byte, units*2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("%w: truncated string", ErrOutOfBounds)
		}
		return textenc.DecodeUTF16(buf)
	}

	if n > maxStringLen {
		return "", fmt.Errorf("%w: string length %d", ErrOutOfBounds, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: truncated string", ErrOutOfBounds)
	}
	return textenc.DecodeANSI(buf)
}

// decodeCString reads bytes up to and including a NUL terminator.
func decodeCString(r io.ByteReader) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", fmt.Errorf("%w: unterminated string", ErrOutOfBounds)
		}
		if b == 0 {
			break
		}
		if len(buf) >= maxStringLen {
			return "", fmt.Errorf("%w: string too long", ErrOutOfBounds)
		}
		buf = append(buf, b)
	}
	return textenc.DecodeANSI(buf)
}

// AppendString appends s in the layout selected by version. It is the
// inverse of the string decoder and is used to build package files.
func AppendString(dst []byte, s string, version uint16) ([]byte, error) {
	b, err := textenc.EncodeANSI(s)
	if err != nil {
		return nil, err
	}
	if version >= VersionSizedStrings {
		dst = AppendIndex(dst, int32(len(b)+1))
	}
	dst = append(dst, b...)
	return append(dst, 0), nil
}
