package protocol

// Message queues are stored and transmitted as a flat concatenation of
// uint16-length-prefixed records. The same framing is used on both sides:
// the authority appends outbound messages with AppendMessageEntry, the
// observer walks its inbound queue with NextMessageEntry.

// AppendMessageEntry appends one uint16-prefixed message record to queue and
// returns the extended slice. Panics if msg exceeds MaxMessageSize.
func AppendMessageEntry(queue []byte, msg []byte) []byte {
	if len(msg) > MaxMessageSize {
		panic("protocol: message exceeds MaxMessageSize")
	}
	queue = append(queue, byte(len(msg)>>8), byte(len(msg)))
	return append(queue, msg...)
}

// NextMessageEntry reads the record starting at cursor and returns it with
// the cursor advanced past it. Returns ok == false at the end of the queue or
// on a truncated record; the returned slice aliases queue.
func NextMessageEntry(queue []byte, cursor int) (msg []byte, next int, ok bool) {
	if cursor < 0 || cursor+2 > len(queue) {
		return nil, cursor, false
	}
	n := int(queue[cursor])<<8 | int(queue[cursor+1])
	if cursor+2+n > len(queue) {
		return nil, cursor, false
	}
	return queue[cursor+2 : cursor+2+n], cursor + 2 + n, true
}
