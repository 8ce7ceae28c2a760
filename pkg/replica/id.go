package replica

// NetID is a 32-bit object handle, meaningful only within the process that
// minted it.
type NetID uint32

// NetIDNone is the reserved "no object" value.
const NetIDNone NetID = 0

// RemoteID is a NetID as minted by the remote peer. It is a distinct type so
// that remote ids cannot be mistaken for local ones; an observer resolves a
// RemoteID to its local NetID through its id maps, never by comparison.
type RemoteID uint32

// RemoteIDNone is the reserved "no object" value.
const RemoteIDNone RemoteID = 0
