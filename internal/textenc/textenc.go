// Package textenc decodes the byte strings stored in package files and
// produces the case-insensitive keys used by name and class lookups.
package textenc

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// DecodeANSI converts a Windows-1252 byte string to UTF-8.
// A trailing NUL, if present, is dropped.
func DecodeANSI(b []byte) (string, error) {
	b = trimNUL(b)
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decoding windows-1252 string: %w", err)
	}
	return string(out), nil
}

// DecodeUTF16 converts a little-endian UTF-16 byte string to UTF-8.
// A trailing NUL character, if present, is dropped.
func DecodeUTF16(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", fmt.Errorf("utf-16 string has odd length %d", len(b))
	}
	if n := len(b); n >= 2 && b[n-1] == 0 && b[n-2] == 0 {
		b = b[:n-2]
	}
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decoding utf-16 string: %w", err)
	}
	return string(out), nil
}

// EncodeANSI converts a UTF-8 string to Windows-1252 bytes without a
// terminator. Characters outside the code page are an error.
func EncodeANSI(s string) ([]byte, error) {
	out, err := charmap.Windows1252.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encoding windows-1252 string %q: %w", s, err)
	}
	return out, nil
}

// Fold returns the case-folded form of s. Two names are the same symbol
// when their folded forms are equal.
func Fold(s string) string {
	// Casers keep state and are not safe for concurrent use.
	return cases.Fold().String(s)
}

// Equal reports whether a and b are the same name ignoring case.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}

func trimNUL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == 0 {
		return b[:n-1]
	}
	return b
}
