package core

import (
	"fmt"
	"io"
)

// Compact index layout. The first byte carries the sign, a continuation
// bit and six value bits; every following byte carries seven value bits
// and its own continuation bit. This is not LEB128.
const (
	indexSign      = 0x80
	indexFirstMore = 0x40
	indexFirstBits = 0x3f
	indexMore      = 0x80
	indexBits      = 0x7f

	// MaxIndexLen is the longest encoding: six bits in the first byte
	// and seven in each of four more reach a shift of 34 >= 32.
	MaxIndexLen = 5
)

// DecodeIndex reads one compact index.
func DecodeIndex(r io.ByteReader) (int32, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, indexErr(err)
	}

	negative := b&indexSign != 0
	v := uint32(b & indexFirstBits)

	if b&indexFirstMore != 0 {
		for shift := uint(6); shift < 32; shift += 7 {
			b, err = r.ReadByte()
			if err != nil {
				return 0, indexErr(err)
			}
			v |= uint32(b&indexBits) << shift
			if b&indexMore == 0 {
				break
			}
		}
	}

	if negative {
		return -int32(v), nil
	}
	return int32(v), nil
}

func indexErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: truncated compact index", ErrOutOfBounds)
	}
	return fmt.Errorf("reading compact index: %w", err)
}

// AppendIndex appends the compact encoding of v to dst.
func AppendIndex(dst []byte, v int32) []byte {
	var m uint32
	first := byte(0)
	if v < 0 {
		first = indexSign
		m = uint32(-int64(v))
	} else {
		m = uint32(v)
	}

	first |= byte(m & indexFirstBits)
	m >>= 6
	if m != 0 {
		first |= indexFirstMore
	}
	dst = append(dst, first)

	for m != 0 {
		b := byte(m & indexBits)
		m >>= 7
		if m != 0 {
			b |= indexMore
		}
		dst = append(dst, b)
	}
	return dst
}

// EncodeIndex returns the compact encoding of v.
func EncodeIndex(v int32) []byte {
	return AppendIndex(make([]byte, 0, MaxIndexLen), v)
}
