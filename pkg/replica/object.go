package replica

import "github.com/replica-dev/replica/pkg/protocol"

// FNV-1a parameters for 32-bit sync payload hashing.
const (
	fnvOffsetBasis = 2166136261
	fnvPrime       = 16777619
)

// Object is one replicated entity. On the authority it is created with
// Authority.Create and owned by that authority; on an observer it is a mirror
// produced by decoding events and owned by that observer. Payload semantics
// are entirely the application's; the package treats them as opaque bytes.
//
// An object flagged PendingDestroy has been retired by the authority (or by a
// session restart) but is never freed behind the application's back; the
// application releases it explicitly via Observer.Destroy.
type Object struct {
	id          NetID
	isAuthority bool

	initData []byte
	syncData []byte

	outbound   []byte
	inbound    []byte
	inboundCur int

	pendingInit    bool
	pendingDestroy bool

	hash     uint32
	prevHash uint32
}

// ID returns the object's id in its owner's id space.
func (o *Object) ID() NetID {
	return o.id
}

// IsAuthority reports whether this is the authoritative instance rather than
// an observer-side mirror.
func (o *Object) IsAuthority() bool {
	return o.isAuthority
}

// InitData returns the creation payload. Callers must treat it as read-only.
func (o *Object) InitData() []byte {
	return o.initData
}

// SyncData returns the latest sync payload. Callers must treat it as
// read-only.
func (o *Object) SyncData() []byte {
	return o.syncData
}

// PendingDestroy reports whether the object has been retired and awaits
// release by the application.
func (o *Object) PendingDestroy() bool {
	return o.pendingDestroy
}

// SetInitData sets the creation payload and makes the object eligible for
// transmission on the next tick. Allowed exactly once; panics on a second
// call, after the object is retired, or if data exceeds
// protocol.MaxInitDataSize.
func (o *Object) SetInitData(data []byte) {
	if o.pendingDestroy {
		panic("replica: mutate of retired object")
	}
	if !o.pendingInit {
		panic("replica: init data already set")
	}
	if len(data) > protocol.MaxInitDataSize {
		panic("replica: init data exceeds MaxInitDataSize")
	}
	o.initData = append([]byte(nil), data...)
	o.pendingInit = false
}

// SetSyncData replaces the sync payload wholesale. Authority-only; panics on
// a mirror, after the object is retired, or if data exceeds
// protocol.MaxSyncDataSize.
func (o *Object) SetSyncData(data []byte) {
	if o.pendingDestroy {
		panic("replica: mutate of retired object")
	}
	if !o.isAuthority {
		panic("replica: sync data set on observer mirror")
	}
	if len(data) > protocol.MaxSyncDataSize {
		panic("replica: sync data exceeds MaxSyncDataSize")
	}
	o.syncData = append(o.syncData[:0], data...)
}

// SendMessage appends one message to the outbound queue. The queue is drained
// onto the wire by the next authority tick. Panics after the object is
// retired, if msg exceeds protocol.MaxMessageSize, or if the queue for the
// current tick would exceed protocol.MaxSyncDataSize.
func (o *Object) SendMessage(msg []byte) {
	if o.pendingDestroy {
		panic("replica: mutate of retired object")
	}
	if len(o.outbound)+2+len(msg) > protocol.MaxSyncDataSize {
		panic("replica: outbound message queue full")
	}
	o.outbound = protocol.AppendMessageEntry(o.outbound, msg)
}

// ReceiveMessage pops the oldest inbound message in FIFO order. It returns
// ok == false once the queue is exhausted, at which point the queue resets to
// empty. The returned slice stays valid after further receives; its backing
// store is abandoned on reset, not reused.
func (o *Object) ReceiveMessage() ([]byte, bool) {
	msg, next, ok := protocol.NextMessageEntry(o.inbound, o.inboundCur)
	if !ok {
		o.inbound = nil
		o.inboundCur = 0
		return nil, false
	}
	o.inboundCur = next
	return msg, true
}

// recomputeHash rehashes the sync payload. Comparison against prevHash is the
// sole dirty-detection mechanism; a hash collision suppresses an update.
func (o *Object) recomputeHash() {
	h := uint32(fnvOffsetBasis)
	for _, b := range o.syncData {
		h ^= uint32(b)
		h *= fnvPrime
	}
	o.hash = h
}
