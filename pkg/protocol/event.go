package protocol

import (
	"errors"

	"github.com/replica-dev/replica/pkg/wire"
)

// EventType identifies the kind of replication event.
type EventType uint8

const (
	EventConnect  EventType = 0x01 // Session bootstrap with full object table
	EventCreate   EventType = 0x02 // One new object
	EventDestroy  EventType = 0x03 // One retired object
	EventUpdate   EventType = 0x04 // Replaced sync payloads for the dirty set
	EventMessages EventType = 0x05 // Queued application messages
)

// String returns the string representation of the event type.
func (et EventType) String() string {
	switch et {
	case EventConnect:
		return "Connect"
	case EventCreate:
		return "Create"
	case EventDestroy:
		return "Destroy"
	case EventUpdate:
		return "Update"
	case EventMessages:
		return "Messages"
	default:
		return "Unknown"
	}
}

// Event errors.
var (
	ErrUnknownEvent    = errors.New("protocol: unknown event tag")
	ErrCountTooLarge   = errors.New("protocol: record count exceeds limit")
	ErrPayloadTooLarge = errors.New("protocol: payload exceeds limit")
)

// Event is one replication event. The five concrete types form a closed set;
// receivers switch on Type rather than relying on further dispatch.
type Event interface {
	// Type returns the event's wire tag.
	Type() EventType

	// EncodeTo appends the event, tag included, to w.
	EncodeTo(w *wire.Writer)
}

// ConnectObject is one object listed in a Connect event.
type ConnectObject struct {
	ID       uint32
	InitData []byte
}

// Connect bootstraps an observer: the authority's session signature plus its
// full table of live objects. Resent Connect events with the same signature
// are resolved in place; a changed signature triggers bulk teardown on the
// observer.
type Connect struct {
	Signature uint32
	Objects   []ConnectObject
}

// Create announces a single object that has left the pending-create stage.
type Create struct {
	ID       uint32
	InitData []byte
}

// Destroy retires a single object. Receivers that no longer know the id
// treat it as a no-op.
type Destroy struct {
	ID uint32
}

// UpdateEntry is one object's replaced sync payload within an Update event.
type UpdateEntry struct {
	ID       uint32
	SyncData []byte
}

// Update carries the wholesale-replaced sync payloads of every object whose
// state changed since the previous flush.
type Update struct {
	Entries []UpdateEntry
}

// MessagesEntry is one object's queued messages within a Messages event. Data
// is a concatenation of uint16-prefixed message records.
type MessagesEntry struct {
	ID   uint32
	Data []byte
}

// Messages carries the drained outbound message queues of every object that
// had messages pending at flush time.
type Messages struct {
	Entries []MessagesEntry
}

func (*Connect) Type() EventType  { return EventConnect }
func (*Create) Type() EventType   { return EventCreate }
func (*Destroy) Type() EventType  { return EventDestroy }
func (*Update) Type() EventType   { return EventUpdate }
func (*Messages) Type() EventType { return EventMessages }
