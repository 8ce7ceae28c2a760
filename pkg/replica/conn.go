package replica

import "github.com/replica-dev/replica/pkg/wire"

// Conn accumulates the outbound replication events for a single observer.
// Conns are created by Authority.OpenConn and hold a non-owning reference to
// their authority.
//
// The buffer is drained by the transport: read SendData, write it out, and
// call ClearSendData only once the write has succeeded. The buffer is never
// cleared automatically, so a failed send can be retried with nothing lost.
type Conn struct {
	auth       *Authority
	buf        *wire.Writer
	firstFlush bool
}

// SendData returns the accumulated outbound bytes. The slice is invalidated
// by the next authority tick or ClearSendData call.
func (c *Conn) SendData() []byte {
	return c.buf.Bytes()
}

// SendLen returns the number of accumulated outbound bytes.
func (c *Conn) SendLen() int {
	return c.buf.Len()
}

// ClearSendData discards the accumulated bytes after a successful send.
func (c *Conn) ClearSendData() {
	c.buf.Reset()
}
