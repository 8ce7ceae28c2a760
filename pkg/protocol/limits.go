package protocol

import "github.com/replica-dev/replica/pkg/wire"

// Payload limits enforced on both encode and decode.
const (
	// MaxInitDataSize is the maximum size of an object's init payload.
	// Init payloads travel with a 2-byte length prefix on the wire.
	MaxInitDataSize = 65535

	// MaxMessageSize is the maximum size of a single queued message.
	// Messages are framed with a 2-byte length prefix inside their entry.
	MaxMessageSize = 65535

	// MaxSyncDataSize is the maximum size of an object's sync payload,
	// aligned with the codec's allocation guard.
	MaxSyncDataSize = wire.MaxAllocation

	// MaxRecordCount caps the per-event record count accepted on decode.
	MaxRecordCount = 1 << 20
)
