package wire

import "math"

// MaxStringLen is the declared maximum for strings written with WriteString,
// giving them a 2-byte length prefix on the wire.
const MaxStringLen = 65535

// Writer is a binary encoder that appends values to an internal buffer.
// The zero value is ready to use; NewWriter pre-sizes the buffer for the
// common case.
type Writer struct {
	buf []byte
}

// NewWriter creates a writer with a default initial capacity.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 256)}
}

// NewWriterWithCap creates a writer with the given initial capacity.
func NewWriterWithCap(n int) *Writer {
	return &Writer{buf: make([]byte, 0, n)}
}

// Reset empties the writer, keeping the underlying buffer for reuse.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

// Bytes returns the encoded bytes. The slice is valid until the next write
// or Reset.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// WriteBool appends a boolean as a single byte (0x00 or 0x01).
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 0x01)
	} else {
		w.buf = append(w.buf, 0x00)
	}
}

// WriteUint8 appends a single byte.
func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

// WriteUint16 appends a uint16 in big-endian byte order.
func (w *Writer) WriteUint16(v uint16) {
	w.buf = append(w.buf, byte(v>>8), byte(v))
}

// WriteUint32 appends a uint32 in big-endian byte order.
func (w *Writer) WriteUint32(v uint32) {
	w.buf = append(w.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// WriteUint64 appends a uint64 in big-endian byte order.
func (w *Writer) WriteUint64(v uint64) {
	w.buf = append(w.buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// WriteInt32 appends an int32 in big-endian byte order.
func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

// WriteFloat32 appends a float32 in IEEE 754 format.
func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

// WriteFloat64 appends a float64 in IEEE 754 format.
func (w *Writer) WriteFloat64(v float64) {
	w.WriteUint64(math.Float64bits(v))
}

// WriteBytes appends raw bytes with no prefix.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// WritePrefixedBytes appends b with a length prefix whose width is selected
// from the declared maximum. Panics if len(b) exceeds max; size limits are
// the caller's contract, not a runtime condition.
func (w *Writer) WritePrefixedBytes(b []byte, max uint32) {
	n := uint32(len(b))
	if n > max {
		panic("wire: prefixed bytes exceed declared maximum")
	}
	switch prefixWidth(max) {
	case 1:
		w.buf = append(w.buf, byte(n))
	case 2:
		w.buf = append(w.buf, byte(n>>8), byte(n))
	default:
		w.buf = append(w.buf, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
	w.buf = append(w.buf, b...)
}

// WriteString appends a length-prefixed UTF-8 string (2-byte prefix,
// MaxStringLen maximum).
func (w *Writer) WriteString(s string) {
	n := uint32(len(s))
	if n > MaxStringLen {
		panic("wire: string exceeds maximum length")
	}
	w.buf = append(w.buf, byte(n>>8), byte(n))
	w.buf = append(w.buf, s...)
}

// prefixWidth returns the number of bytes the length prefix occupies for a
// field with the given declared maximum.
func prefixWidth(max uint32) int {
	switch {
	case max <= 0xFF:
		return 1
	case max <= 0xFFFF:
		return 2
	default:
		return 4
	}
}
