package wire

import (
	"errors"
	"io"
	"math"
)

// MaxAllocation caps any single length-prefixed field, guarding against
// hostile prefixes that would otherwise allocate unbounded memory.
const MaxAllocation = 4 * 1024 * 1024

// ErrDataTooLarge is returned when a length prefix exceeds the field's
// declared maximum or the allocation guard.
var ErrDataTooLarge = errors.New("wire: length prefix exceeds limit")

// Reader is a binary decoder over a byte slice. Reads advance an internal
// cursor; a short buffer yields io.ErrUnexpectedEOF and leaves the cursor at
// the point of failure.
type Reader struct {
	buf []byte
	pos int
}

// NewReader creates a reader over buf. The reader does not copy buf; the
// caller must not mutate it while reading.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// EOF reports whether the buffer is exhausted.
func (r *Reader) EOF() bool {
	return r.pos >= len(r.buf)
}

// Position returns the current read offset.
func (r *Reader) Position() int {
	return r.pos
}

// ReadBool reads a single-byte boolean. Any non-zero value is true.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadUint8()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	if r.pos >= len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadUint16 reads a uint16 in big-endian byte order.
func (r *Reader) ReadUint16() (uint16, error) {
	if r.pos+2 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := uint16(r.buf[r.pos])<<8 | uint16(r.buf[r.pos+1])
	r.pos += 2
	return v, nil
}

// ReadUint32 reads a uint32 in big-endian byte order.
func (r *Reader) ReadUint32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := uint32(r.buf[r.pos])<<24 | uint32(r.buf[r.pos+1])<<16 |
		uint32(r.buf[r.pos+2])<<8 | uint32(r.buf[r.pos+3])
	r.pos += 4
	return v, nil
}

// ReadUint64 reads a uint64 in big-endian byte order.
func (r *Reader) ReadUint64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := uint64(r.buf[r.pos])<<56 | uint64(r.buf[r.pos+1])<<48 |
		uint64(r.buf[r.pos+2])<<40 | uint64(r.buf[r.pos+3])<<32 |
		uint64(r.buf[r.pos+4])<<24 | uint64(r.buf[r.pos+5])<<16 |
		uint64(r.buf[r.pos+6])<<8 | uint64(r.buf[r.pos+7])
	r.pos += 8
	return v, nil
}

// ReadInt32 reads an int32 in big-endian byte order.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadFloat32 reads a float32 in IEEE 754 format.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadFloat64 reads a float64 in IEEE 754 format.
func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadBytes reads exactly n raw bytes. The returned slice aliases the
// reader's buffer; callers that retain it must copy.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadPrefixedBytes reads a length-prefixed field written with the same
// declared maximum. The returned slice is a copy, safe to retain.
func (r *Reader) ReadPrefixedBytes(max uint32) ([]byte, error) {
	var n uint32
	switch prefixWidth(max) {
	case 1:
		v, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		n = uint32(v)
	case 2:
		v, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		n = uint32(v)
	default:
		v, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		n = v
	}
	if n > max || n > MaxAllocation {
		return nil, ErrDataTooLarge
	}
	if int(n) > r.Remaining() {
		return nil, io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return b, nil
}

// ReadString reads a string written with WriteString.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	if int(n) > r.Remaining() {
		return "", io.ErrUnexpectedEOF
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}
