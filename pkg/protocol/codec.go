package protocol

import (
	"io"

	"github.com/replica-dev/replica/pkg/wire"
)

// Minimum encoded sizes per record kind, used to reject absurd counts before
// allocating.
const (
	minConnectObjectSize = 6
	minUpdateEntrySize   = 8
	minMessagesEntrySize = 8
)

// EncodeEvent encodes a single event, tag included, to a fresh buffer.
func EncodeEvent(ev Event) []byte {
	w := wire.NewWriter()
	ev.EncodeTo(w)
	return w.Bytes()
}

// EncodeTo appends the Connect event to w.
func (c *Connect) EncodeTo(w *wire.Writer) {
	w.WriteUint8(uint8(EventConnect))
	w.WriteUint32(c.Signature)
	w.WriteUint32(uint32(len(c.Objects)))
	for i := range c.Objects {
		w.WriteUint32(c.Objects[i].ID)
		w.WritePrefixedBytes(c.Objects[i].InitData, MaxInitDataSize)
	}
}

// EncodeTo appends the Create event to w.
func (c *Create) EncodeTo(w *wire.Writer) {
	w.WriteUint8(uint8(EventCreate))
	w.WriteUint32(c.ID)
	w.WritePrefixedBytes(c.InitData, MaxInitDataSize)
}

// EncodeTo appends the Destroy event to w.
func (d *Destroy) EncodeTo(w *wire.Writer) {
	w.WriteUint8(uint8(EventDestroy))
	w.WriteUint32(d.ID)
}

// EncodeTo appends the Update event to w.
func (u *Update) EncodeTo(w *wire.Writer) {
	w.WriteUint8(uint8(EventUpdate))
	w.WriteUint32(uint32(len(u.Entries)))
	for i := range u.Entries {
		w.WriteUint32(u.Entries[i].ID)
		w.WriteUint32(uint32(len(u.Entries[i].SyncData)))
		w.WriteBytes(u.Entries[i].SyncData)
	}
}

// EncodeTo appends the Messages event to w.
func (m *Messages) EncodeTo(w *wire.Writer) {
	w.WriteUint8(uint8(EventMessages))
	w.WriteUint32(uint32(len(m.Entries)))
	for i := range m.Entries {
		w.WriteUint32(m.Entries[i].ID)
		w.WriteUint32(uint32(len(m.Entries[i].Data)))
		w.WriteBytes(m.Entries[i].Data)
	}
}

// DecodeEvent decodes the next event from r. On error the reader is left
// mid-event and the remainder of its buffer must be considered invalid.
func DecodeEvent(r *wire.Reader) (Event, error) {
	tag, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}

	switch EventType(tag) {
	case EventConnect:
		return decodeConnect(r)
	case EventCreate:
		return decodeCreate(r)
	case EventDestroy:
		return decodeDestroy(r)
	case EventUpdate:
		return decodeUpdate(r)
	case EventMessages:
		return decodeMessages(r)
	default:
		return nil, ErrUnknownEvent
	}
}

func decodeConnect(r *wire.Reader) (*Connect, error) {
	sig, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}

	count, err := readRecordCount(r, minConnectObjectSize)
	if err != nil {
		return nil, err
	}

	ev := &Connect{Signature: sig}
	if count > 0 {
		ev.Objects = make([]ConnectObject, count)
		for i := 0; i < count; i++ {
			if ev.Objects[i].ID, err = r.ReadUint32(); err != nil {
				return nil, err
			}
			if ev.Objects[i].InitData, err = r.ReadPrefixedBytes(MaxInitDataSize); err != nil {
				return nil, err
			}
		}
	}
	return ev, nil
}

func decodeCreate(r *wire.Reader) (*Create, error) {
	id, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	data, err := r.ReadPrefixedBytes(MaxInitDataSize)
	if err != nil {
		return nil, err
	}
	return &Create{ID: id, InitData: data}, nil
}

func decodeDestroy(r *wire.Reader) (*Destroy, error) {
	id, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	return &Destroy{ID: id}, nil
}

func decodeUpdate(r *wire.Reader) (*Update, error) {
	count, err := readRecordCount(r, minUpdateEntrySize)
	if err != nil {
		return nil, err
	}

	ev := &Update{}
	if count > 0 {
		ev.Entries = make([]UpdateEntry, count)
		for i := 0; i < count; i++ {
			if ev.Entries[i].ID, err = r.ReadUint32(); err != nil {
				return nil, err
			}
			if ev.Entries[i].SyncData, err = readSizedBytes(r, MaxSyncDataSize); err != nil {
				return nil, err
			}
		}
	}
	return ev, nil
}

func decodeMessages(r *wire.Reader) (*Messages, error) {
	count, err := readRecordCount(r, minMessagesEntrySize)
	if err != nil {
		return nil, err
	}

	ev := &Messages{}
	if count > 0 {
		ev.Entries = make([]MessagesEntry, count)
		for i := 0; i < count; i++ {
			if ev.Entries[i].ID, err = r.ReadUint32(); err != nil {
				return nil, err
			}
			if ev.Entries[i].Data, err = readSizedBytes(r, MaxSyncDataSize); err != nil {
				return nil, err
			}
		}
	}
	return ev, nil
}

// readRecordCount reads a uint32 record count and validates it against
// MaxRecordCount and the bytes actually remaining.
func readRecordCount(r *wire.Reader, minRecordSize int) (int, error) {
	count, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	if count > MaxRecordCount {
		return 0, ErrCountTooLarge
	}
	if int(count)*minRecordSize > r.Remaining() {
		return 0, io.ErrUnexpectedEOF
	}
	return int(count), nil
}

// readSizedBytes reads a uint32 length followed by that many raw bytes.
// The returned slice is a copy, safe to retain.
func readSizedBytes(r *wire.Reader, max uint32) ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n > max {
		return nil, ErrPayloadTooLarge
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}
