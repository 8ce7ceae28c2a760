package replica

import (
	"fmt"

	"github.com/replica-dev/replica/pkg/protocol"
	"github.com/replica-dev/replica/pkg/wire"
)

// Observer mirrors an authority's object table under locally minted NetIDs.
// Received events resolve remote ids through the observer's id maps; newly
// arrived objects queue up until the application claims them with PumpCreate.
type Observer struct {
	signature   uint32
	nextLocalID uint32

	objects       map[NetID]*Object
	remoteToLocal map[RemoteID]NetID
	localToRemote map[NetID]RemoteID

	created []*Object

	// gateCreated blocks PumpCreate after a session restart until the
	// application has released every object of the previous generation.
	gateCreated bool
}

// NewObserver creates an empty observer awaiting its first Connect event.
func NewObserver() *Observer {
	return &Observer{
		objects:       make(map[NetID]*Object),
		remoteToLocal: make(map[RemoteID]NetID),
		localToRemote: make(map[NetID]RemoteID),
	}
}

// Signature returns the last session signature seen, or 0 before first
// contact.
func (o *Observer) Signature() uint32 {
	return o.signature
}

// NumObjects returns the number of known objects, retired ones included.
func (o *Observer) NumObjects() int {
	return len(o.objects)
}

// GetObject returns the object with the given local id, or nil.
func (o *Observer) GetObject(id NetID) *Object {
	return o.objects[id]
}

// LocalIDOf resolves a remote id to its local NetID, or NetIDNone.
func (o *Observer) LocalIDOf(rid RemoteID) NetID {
	return o.remoteToLocal[rid]
}

// RemoteIDOf resolves a local id to the authority's id for the same object,
// or RemoteIDNone.
func (o *Observer) RemoteIDOf(lid NetID) RemoteID {
	return o.localToRemote[lid]
}

// Receive decodes one buffer of replication events and applies them in order.
// A decode failure stops processing and invalidates the remainder of the
// buffer; events applied before the failure remain in effect and the observer
// stays usable. Events naming unknown remote ids are skipped.
func (o *Observer) Receive(buf []byte) error {
	r := wire.NewReader(buf)
	for !r.EOF() {
		ev, err := protocol.DecodeEvent(r)
		if err != nil {
			return fmt.Errorf("replica: decode event: %w", err)
		}
		o.apply(ev)
	}
	return nil
}

func (o *Observer) apply(ev protocol.Event) {
	switch ev := ev.(type) {
	case *protocol.Connect:
		o.applyConnect(ev)
	case *protocol.Create:
		o.resolveOrCreate(RemoteID(ev.ID), ev.InitData)
	case *protocol.Destroy:
		o.applyDestroy(RemoteID(ev.ID))
	case *protocol.Update:
		for i := range ev.Entries {
			if obj := o.byRemote(RemoteID(ev.Entries[i].ID)); obj != nil {
				obj.syncData = ev.Entries[i].SyncData
			}
		}
	case *protocol.Messages:
		for i := range ev.Entries {
			if obj := o.byRemote(RemoteID(ev.Entries[i].ID)); obj != nil {
				obj.inbound = append(obj.inbound, ev.Entries[i].Data...)
			}
		}
	}
}

func (o *Observer) applyConnect(ev *protocol.Connect) {
	if o.signature != 0 && ev.Signature != o.signature {
		// The authority restarted. Retire the entire previous generation,
		// clear the id maps, and gate PumpCreate until the application has
		// released every retired object. The incoming table is created
		// fresh, never resolved against old state.
		for _, obj := range o.objects {
			obj.pendingDestroy = true
		}
		for _, obj := range o.created {
			// Never handed to the application, so nobody could release it.
			delete(o.objects, obj.id)
		}
		o.created = nil
		o.remoteToLocal = make(map[RemoteID]NetID)
		o.localToRemote = make(map[NetID]RemoteID)
		o.gateCreated = true
		o.signature = ev.Signature

		for i := range ev.Objects {
			o.createMirror(RemoteID(ev.Objects[i].ID), ev.Objects[i].InitData)
		}
		return
	}

	// First contact, or a redundant bootstrap within the same session:
	// resolve each listed object, then retire anything local the authority
	// no longer lists.
	o.signature = ev.Signature

	seen := make(map[RemoteID]bool, len(ev.Objects))
	for i := range ev.Objects {
		rid := RemoteID(ev.Objects[i].ID)
		seen[rid] = true
		o.resolveOrCreate(rid, ev.Objects[i].InitData)
	}

	for lid, rid := range o.localToRemote {
		if !seen[rid] {
			o.retire(lid, rid)
		}
	}
}

// resolveOrCreate looks the remote id up and creates a fresh mirror when it
// is unknown. Known ids are left as they are; init payloads never change
// after creation.
func (o *Observer) resolveOrCreate(rid RemoteID, initData []byte) {
	if _, ok := o.remoteToLocal[rid]; ok {
		return
	}
	o.createMirror(rid, initData)
}

func (o *Observer) createMirror(rid RemoteID, initData []byte) {
	o.nextLocalID++
	lid := NetID(o.nextLocalID)

	obj := &Object{id: lid, initData: initData}
	o.objects[lid] = obj
	o.remoteToLocal[rid] = lid
	o.localToRemote[lid] = rid
	o.created = append(o.created, obj)
}

func (o *Observer) applyDestroy(rid RemoteID) {
	lid, ok := o.remoteToLocal[rid]
	if !ok {
		// Unknown or already retired: benign, the authority destroyed it
		// while our own teardown was in flight.
		return
	}
	o.retire(lid, rid)
}

// retire flags the object and removes both id-map entries. An object the
// application already holds stays in the table until released with Destroy;
// one still waiting in the created queue was never handed out and is dropped
// outright, since no Destroy call could ever come for it.
func (o *Observer) retire(lid NetID, rid RemoteID) {
	delete(o.remoteToLocal, rid)
	delete(o.localToRemote, lid)

	obj := o.objects[lid]
	if obj == nil {
		return
	}
	obj.pendingDestroy = true

	for i, queued := range o.created {
		if queued == obj {
			o.created = append(o.created[:i], o.created[i+1:]...)
			delete(o.objects, lid)
			return
		}
	}
}

func (o *Observer) byRemote(rid RemoteID) *Object {
	lid, ok := o.remoteToLocal[rid]
	if !ok {
		return nil
	}
	return o.objects[lid]
}

// PumpCreate pops one newly arrived object, or nil when none are ready.
// After a session restart it returns nil until every object of the previous
// generation has been released, so the application never sees two
// generations at once.
func (o *Observer) PumpCreate() *Object {
	if o.gateCreated {
		for _, obj := range o.objects {
			if obj.pendingDestroy {
				return nil
			}
		}
		o.gateCreated = false
	}

	if len(o.created) == 0 {
		return nil
	}
	obj := o.created[0]
	o.created = o.created[1:]
	return obj
}

// Destroy releases an object from the local table. Objects the authority
// retired (PendingDestroy set) are simply removed; destroying a live object
// proactively also tears down its id-map entries, after which events for its
// remote id are skipped. Panics if obj is nil or not owned by this observer.
func (o *Observer) Destroy(obj *Object) {
	if obj == nil {
		panic("replica: destroy of nil object")
	}
	if o.objects[obj.id] != obj {
		panic("replica: destroy of unknown object")
	}

	delete(o.objects, obj.id)
	if !obj.pendingDestroy {
		if rid, ok := o.localToRemote[obj.id]; ok {
			delete(o.localToRemote, obj.id)
			delete(o.remoteToLocal, rid)
		}
		obj.pendingDestroy = true
	}
}
