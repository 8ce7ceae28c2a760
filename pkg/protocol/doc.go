// Package protocol defines the replication events exchanged between an
// authority and its observers, and their binary encoding.
//
// Five event kinds form a closed set: Connect bootstraps an observer with the
// session signature and the full live object table, Create announces one new
// object, Destroy retires one, Update carries replaced sync payloads for the
// dirty set, and Messages carries queued application messages. Events are
// encoded back to back into a flat buffer; a receiver decodes until the buffer
// is exhausted or a decode error invalidates the remainder.
//
// # Wire format
//
// Every event begins with a one-byte tag. All integers are big-endian.
//
//	Connect:  tag, uint32 signature, uint32 count,
//	          then per object: uint32 id, uint16-prefixed init payload
//	Create:   tag, uint32 id, uint16-prefixed init payload
//	Destroy:  tag, uint32 id
//	Update:   tag, uint32 count,
//	          then per entry: uint32 id, uint32 length, payload bytes
//	Messages: tag, uint32 count,
//	          then per entry: uint32 id, uint32 length, entry bytes
//
// A Messages entry's bytes are themselves a concatenation of uint16-prefixed
// message records, framed with AppendMessageEntry and walked with
// NextMessageEntry.
//
// # Limits
//
// Init payloads and individual messages are capped at 64 KiB, sync payloads at
// 4 MiB. Decoding enforces the same caps, so a hostile length prefix fails
// with an error instead of an oversized allocation.
package protocol
