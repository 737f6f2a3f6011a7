package core

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"reflect"
)

// StreamLinker connects an ObjectStream to the package that owns the
// object being read. Name looks up a name table entry; Object resolves a
// reference, instantiating the target on first use.
type StreamLinker struct {
	Name   func(index int32) (string, bool)
	Object func(ref Ref) (any, error)
}

// ObjectStream is a bounds-checked cursor over the serialized payload of
// exactly one object. Positions are absolute file offsets; the cursor can
// never leave [Start, Start+Size].
type ObjectStream struct {
	data    []byte
	start   int64
	pos     int
	version uint16
	link    StreamLinker
}

// NewObjectStream wraps data, the payload found at file offset start.
func NewObjectStream(data []byte, start int64, version uint16, link StreamLinker) *ObjectStream {
	return &ObjectStream{
		data:    data,
		start:   start,
		version: version,
		link:    link,
	}
}

// Start returns the absolute offset of the first payload byte.
func (s *ObjectStream) Start() int64 { return s.start }

// Size returns the payload length.
func (s *ObjectStream) Size() int { return len(s.data) }

// Tell returns the absolute offset of the cursor.
func (s *ObjectStream) Tell() int64 { return s.start + int64(s.pos) }

// Remaining returns the number of unread payload bytes.
func (s *ObjectStream) Remaining() int { return len(s.data) - s.pos }

// Version returns the package format version, which selects string layout.
func (s *ObjectStream) Version() uint16 { return s.version }

// Read implements io.Reader over the remaining payload.
func (s *ObjectStream) Read(p []byte) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += n
	return n, nil
}

// ReadByte implements io.ByteReader.
func (s *ObjectStream) ReadByte() (byte, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

// ReadBytes fills dst from the payload. It fails without consuming
// anything if dst is longer than what remains.
func (s *ObjectStream) ReadBytes(dst []byte) error {
	if len(dst) > s.Remaining() {
		return fmt.Errorf("%w: read of %d bytes at %d with %d remaining", ErrOutOfBounds, len(dst), s.Tell(), s.Remaining())
	}
	s.pos += copy(dst, s.data[s.pos:])
	return nil
}

func (s *ObjectStream) next(n int) ([]byte, error) {
	if n > s.Remaining() {
		return nil, fmt.Errorf("%w: read of %d bytes at %d with %d remaining", ErrOutOfBounds, n, s.Tell(), s.Remaining())
	}
	b := s.data[s.pos : s.pos+n]
	s.pos += n
	return b, nil
}

func (s *ObjectStream) ReadUint8() (uint8, error) {
	b, err := s.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *ObjectStream) ReadInt8() (int8, error) {
	v, err := s.ReadUint8()
	return int8(v), err
}

func (s *ObjectStream) ReadUint16() (uint16, error) {
	b, err := s.next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (s *ObjectStream) ReadInt16() (int16, error) {
	v, err := s.ReadUint16()
	return int16(v), err
}

func (s *ObjectStream) ReadUint32() (uint32, error) {
	b, err := s.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (s *ObjectStream) ReadInt32() (int32, error) {
	v, err := s.ReadUint32()
	return int32(v), err
}

func (s *ObjectStream) ReadUint64() (uint64, error) {
	b, err := s.next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (s *ObjectStream) ReadInt64() (int64, error) {
	v, err := s.ReadUint64()
	return int64(v), err
}

func (s *ObjectStream) ReadFloat32() (float32, error) {
	v, err := s.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadIndex reads a compact index.
func (s *ObjectStream) ReadIndex() (int32, error) {
	return DecodeIndex(s)
}

// ReadRef reads a compact index and decodes it as a reference.
func (s *ObjectStream) ReadRef() (Ref, error) {
	v, err := s.ReadIndex()
	if err != nil {
		return NullRef, err
	}
	return RefFromRaw(v), nil
}

// ReadString reads a string in the layout of the package version.
func (s *ObjectStream) ReadString() (string, error) {
	return decodeString(s, s.version)
}

// ReadName reads a name table index and returns the name.
func (s *ObjectStream) ReadName() (string, error) {
	i, err := s.ReadIndex()
	if err != nil {
		return "", err
	}
	if s.link.Name == nil {
		return "", fmt.Errorf("%w: name %d with no name table", ErrOutOfBounds, i)
	}
	name, ok := s.link.Name(i)
	if !ok {
		return "", fmt.Errorf("%w: name index %d", ErrOutOfBounds, i)
	}
	return name, nil
}

// Seek moves the cursor to an absolute file offset. Offsets before the
// payload fail; offsets past its end clamp to the end.
func (s *ObjectStream) Seek(offset int64) error {
	if offset < s.start {
		return fmt.Errorf("%w: seek to %d before object start %d", ErrOutOfBounds, offset, s.start)
	}
	rel := offset - s.start
	if rel > int64(len(s.data)) {
		rel = int64(len(s.data))
	}
	s.pos = int(rel)
	return nil
}

// Skip moves the cursor n bytes relative to its current position.
func (s *ObjectStream) Skip(n int64) error {
	return s.Seek(s.Tell() + n)
}

// EnsureEnd fails if any payload bytes are left unread. Object loaders
// call it once they believe the payload is consumed.
func (s *ObjectStream) EnsureEnd() error {
	if r := s.Remaining(); r != 0 {
		return fmt.Errorf("%w: %d of %d bytes unread at %d", ErrTrailingData, r, len(s.data), s.Tell())
	}
	return nil
}

// ReadObject reads a reference from s, resolves it through the owning
// package and asserts the result to T. A null reference yields the zero T.
func ReadObject[T any](s *ObjectStream) (T, error) {
	var zero T

	ref, err := s.ReadRef()
	if err != nil {
		return zero, err
	}
	if ref.IsNull() {
		return zero, nil
	}
	if s.link.Object == nil {
		return zero, fmt.Errorf("%w: %s with no resolver", ErrUnknownObject, ref)
	}

	obj, err := s.link.Object(ref)
	if err != nil {
		return zero, err
	}
	v, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T, want %v", ErrTypeMismatch, ref, obj, reflect.TypeOf((*T)(nil)).Elem())
	}
	return v, nil
}
