package replica

import (
	"crypto/rand"
	"encoding/binary"
	"sort"

	"github.com/replica-dev/replica/pkg/protocol"
	"github.com/replica-dev/replica/pkg/wire"
)

// Authority owns the canonical object table and fans replication events out
// to every open Conn. Create, Destroy and payload writes take effect on the
// wire at the next Tick, except Destroy which is appended to every Conn
// immediately.
type Authority struct {
	signature     uint32
	nextID        uint32
	objects       map[NetID]*Object
	pendingCreate []*Object
	conns         []*Conn
}

// NewAuthority creates an authority with a random non-zero session signature.
func NewAuthority() *Authority {
	return newAuthority(randomSignature())
}

func newAuthority(signature uint32) *Authority {
	return &Authority{
		signature: signature,
		objects:   make(map[NetID]*Object),
	}
}

func randomSignature() uint32 {
	var b [4]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			panic("replica: read session signature: " + err.Error())
		}
		if sig := binary.BigEndian.Uint32(b[:]); sig != 0 {
			return sig
		}
	}
}

// Signature returns the session signature identifying this run of the
// authority.
func (a *Authority) Signature() uint32 {
	return a.signature
}

// NumObjects returns the number of finalized objects.
func (a *Authority) NumObjects() int {
	return len(a.objects)
}

// NumConns returns the number of open connections.
func (a *Authority) NumConns() int {
	return len(a.conns)
}

// GetObject returns the finalized object with the given id, or nil.
func (a *Authority) GetObject(id NetID) *Object {
	return a.objects[id]
}

// Objects returns the finalized objects in ascending id order.
func (a *Authority) Objects() []*Object {
	out := make([]*Object, 0, len(a.objects))
	for _, o := range a.objects {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Create allocates a new object under the next NetID. The object stays
// pending, invisible to connections and to the dirty set, until SetInitData
// is called; the tick after that transmits its Create event.
func (a *Authority) Create() *Object {
	a.nextID++
	o := &Object{
		id:          NetID(a.nextID),
		isAuthority: true,
		pendingInit: true,
	}
	a.pendingCreate = append(a.pendingCreate, o)
	return o
}

// Destroy retires an object. If it was never transmitted it is dropped with
// no network effect; otherwise a Destroy event is appended to every Conn
// immediately, bypassing the tick. Panics if o is nil or not owned by this
// authority.
func (a *Authority) Destroy(o *Object) {
	if o == nil {
		panic("replica: destroy of nil object")
	}

	for i, p := range a.pendingCreate {
		if p == o {
			a.pendingCreate = append(a.pendingCreate[:i], a.pendingCreate[i+1:]...)
			o.pendingDestroy = true
			return
		}
	}

	if a.objects[o.id] != o {
		panic("replica: destroy of unknown object")
	}
	delete(a.objects, o.id)
	o.pendingDestroy = true

	ev := protocol.Destroy{ID: uint32(o.id)}
	for _, c := range a.conns {
		ev.EncodeTo(c.buf)
	}
}

// OpenConn registers a new connection and writes its bootstrap Connect event,
// listing the session signature and every live object with its init payload.
func (a *Authority) OpenConn() *Conn {
	c := &Conn{
		auth:       a,
		buf:        wire.NewWriter(),
		firstFlush: true,
	}

	ev := protocol.Connect{
		Signature: a.signature,
		Objects:   a.connectObjects(),
	}
	ev.EncodeTo(c.buf)

	a.conns = append(a.conns, c)
	return c
}

// connectObjects lists every transmittable object: the finalized table plus
// pending creates whose init payload has arrived but which have not ticked
// into the table yet.
func (a *Authority) connectObjects() []protocol.ConnectObject {
	n := len(a.objects) + len(a.pendingCreate)
	if n == 0 {
		return nil
	}
	objs := make([]protocol.ConnectObject, 0, n)
	for _, o := range a.objects {
		objs = append(objs, protocol.ConnectObject{ID: uint32(o.id), InitData: o.initData})
	}
	for _, o := range a.pendingCreate {
		if !o.pendingInit {
			objs = append(objs, protocol.ConnectObject{ID: uint32(o.id), InitData: o.initData})
		}
	}
	return objs
}

// CloseConn removes a connection. Panics if c is nil or not open on this
// authority.
func (a *Authority) CloseConn(c *Conn) {
	if c == nil {
		panic("replica: close of nil conn")
	}
	for i, open := range a.conns {
		if open == c {
			a.conns = append(a.conns[:i], a.conns[i+1:]...)
			c.auth = nil
			return
		}
	}
	panic("replica: close of unknown conn")
}

// Tick runs one flush cycle: finalize pending creates, rehash every object,
// append per-connection Update and Messages events for the dirty set and the
// queued messages, then commit hashes and clear the outbound queues.
//
// Create events appended in this tick always precede the tick's Update and
// Messages events in every connection's buffer.
func (a *Authority) Tick() {
	if len(a.pendingCreate) > 0 {
		remaining := a.pendingCreate[:0]
		for _, o := range a.pendingCreate {
			if o.pendingInit {
				remaining = append(remaining, o)
				continue
			}
			a.objects[o.id] = o
			ev := protocol.Create{ID: uint32(o.id), InitData: o.initData}
			for _, c := range a.conns {
				ev.EncodeTo(c.buf)
			}
		}
		a.pendingCreate = remaining
	}

	for _, o := range a.objects {
		o.recomputeHash()
	}

	for _, c := range a.conns {
		var up protocol.Update
		for _, o := range a.objects {
			if c.firstFlush || o.hash != o.prevHash {
				up.Entries = append(up.Entries, protocol.UpdateEntry{
					ID:       uint32(o.id),
					SyncData: o.syncData,
				})
			}
		}
		if len(up.Entries) > 0 {
			up.EncodeTo(c.buf)
		}

		var ms protocol.Messages
		for _, o := range a.objects {
			if len(o.outbound) > 0 {
				ms.Entries = append(ms.Entries, protocol.MessagesEntry{
					ID:   uint32(o.id),
					Data: o.outbound,
				})
			}
		}
		if len(ms.Entries) > 0 {
			ms.EncodeTo(c.buf)
		}

		c.firstFlush = false
	}

	for _, o := range a.objects {
		o.prevHash = o.hash
		o.outbound = o.outbound[:0]
	}
}
