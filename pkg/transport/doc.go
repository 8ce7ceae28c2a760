// Package transport binds the replication core to WebSocket connections.
//
// Server owns an Authority and a single goroutine that ticks it at a fixed
// interval and flushes each connection's buffered events as one binary
// WebSocket message. All authority access goes through that goroutine: use
// Do to run world mutations on it. Server implements http.Handler and can
// be mounted on any router.
//
// Client owns an Observer and feeds it every received buffer. It redials
// with exponential backoff when the connection drops; the replication
// protocol's session signature then decides between resuming in place and
// a full teardown, so reconnects need no transport-level state.
//
// # Goroutines and locking
//
// The replication core is not internally synchronized. Server confines the
// Authority to the tick goroutine. Client guards the Observer with a mutex
// shared by the read loop and Do; OnSync callbacks run under that mutex.
package transport
