// Package replica keeps a set of objects synchronized from one authority to
// any number of observers over an opaque byte stream.
//
// The authority owns the canonical object table. Each tick it finalizes newly
// created objects, detects changed sync payloads by hash comparison, and
// appends Create, Update and Messages events to every connection's outbound
// buffer. Destroys bypass the tick and are appended immediately. An observer
// feeds received buffers to Receive, which mirrors the authority's table under
// locally minted ids, translating between the two id spaces.
//
// Identifiers are never shared between peers: a NetID is meaningful only in
// the process that minted it, and arrives at the other side as a RemoteID to
// be used purely as a lookup key. The session signature, chosen at authority
// construction, lets an observer detect a restarted authority and tear down
// the previous generation of objects before adopting the new one.
//
// # Transport boundary
//
// The package neither opens sockets nor retries sends. A connection exposes
// its accumulated bytes via SendData; the transport writes them and calls
// ClearSendData only after the write succeeds, so a failed send loses
// nothing. On the other side, a single Receive call consumes one buffer.
//
// # Concurrency
//
// All operations are synchronous and none of the types lock internally. An
// Authority together with its Conns is to be driven by one goroutine, and
// each Observer by one goroutine; sharing one across goroutines requires
// external mutual exclusion supplied by the caller.
package replica
