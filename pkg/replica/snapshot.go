package replica

import (
	"errors"
	"fmt"

	"github.com/replica-dev/replica/pkg/protocol"
	"github.com/replica-dev/replica/pkg/wire"
)

// ErrInvalidSnapshot is returned by Restore for well-formed bytes that do not
// describe an authority snapshot.
var ErrInvalidSnapshot = errors.New("replica: invalid snapshot")

// Snapshot exports the authority's state as one opaque buffer: a Connect
// event carrying the signature and every transmittable object, followed by an
// Update event carrying their sync payloads. The bytes are exactly what a
// freshly connecting observer would receive, plus current state.
func (a *Authority) Snapshot() []byte {
	w := wire.NewWriter()

	con := protocol.Connect{
		Signature: a.signature,
		Objects:   a.connectObjects(),
	}
	con.EncodeTo(w)

	if len(con.Objects) > 0 {
		up := protocol.Update{Entries: make([]protocol.UpdateEntry, len(con.Objects))}
		for i := range con.Objects {
			up.Entries[i] = protocol.UpdateEntry{
				ID:       con.Objects[i].ID,
				SyncData: a.syncDataOf(NetID(con.Objects[i].ID)),
			}
		}
		up.EncodeTo(w)
	}

	return w.Bytes()
}

func (a *Authority) syncDataOf(id NetID) []byte {
	if o := a.objects[id]; o != nil {
		return o.syncData
	}
	for _, o := range a.pendingCreate {
		if o.id == id {
			return o.syncData
		}
	}
	return nil
}

// Restore rebuilds the authority from a Snapshot buffer, adopting its session
// signature so observers of the previous run resolve in place instead of
// tearing down. Valid only on a fresh authority; panics if objects or
// connections already exist. On error the authority must be discarded.
func (a *Authority) Restore(data []byte) error {
	if len(a.objects) != 0 || len(a.pendingCreate) != 0 || len(a.conns) != 0 {
		panic("replica: restore on non-empty authority")
	}

	r := wire.NewReader(data)
	ev, err := protocol.DecodeEvent(r)
	if err != nil {
		return fmt.Errorf("replica: decode snapshot: %w", err)
	}
	con, ok := ev.(*protocol.Connect)
	if !ok || con.Signature == 0 {
		return ErrInvalidSnapshot
	}

	a.signature = con.Signature
	var maxID uint32
	for i := range con.Objects {
		id := NetID(con.Objects[i].ID)
		if id == NetIDNone || a.objects[id] != nil {
			return ErrInvalidSnapshot
		}
		a.objects[id] = &Object{
			id:          id,
			isAuthority: true,
			initData:    con.Objects[i].InitData,
		}
		if uint32(id) > maxID {
			maxID = uint32(id)
		}
	}
	a.nextID = maxID

	if r.EOF() {
		return nil
	}

	ev, err = protocol.DecodeEvent(r)
	if err != nil {
		return fmt.Errorf("replica: decode snapshot: %w", err)
	}
	up, ok := ev.(*protocol.Update)
	if !ok {
		return ErrInvalidSnapshot
	}
	for i := range up.Entries {
		if o := a.objects[NetID(up.Entries[i].ID)]; o != nil {
			o.syncData = up.Entries[i].SyncData
		}
	}

	if !r.EOF() {
		return ErrInvalidSnapshot
	}
	return nil
}
