// Package wire implements the binary codec used by the replication protocol.
//
// The codec is deliberately simple: fixed-width big-endian integers, IEEE 754
// floats, and length-prefixed byte arrays. There is no reflection and no
// intermediate representation; values are appended to or read from a flat
// byte buffer.
//
// # Length prefixes
//
// Variable-length fields are written with a fixed-width length prefix whose
// width is selected from the field's declared maximum size:
//
//	max <= 255        → 1-byte prefix
//	max <= 65535      → 2-byte prefix
//	otherwise         → 4-byte prefix
//
// Both peers must agree on the declared maximum for a field, since it decides
// how many bytes the prefix occupies on the wire. WritePrefixedBytes and
// ReadPrefixedBytes implement this scheme; WriteString/ReadString are the
// string convenience with a fixed 65535-byte maximum.
//
// # Error handling
//
// Writing cannot fail: the Writer grows its buffer as needed. Reading returns
// io.ErrUnexpectedEOF when the buffer is too short and ErrDataTooLarge when a
// length prefix exceeds its declared maximum or the allocation guard. A
// failed read leaves the Reader positioned at the point of failure; callers
// that need transactional decoding should treat any error as invalidating
// the remainder of the buffer.
package wire
