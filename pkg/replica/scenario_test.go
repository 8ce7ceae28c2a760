package replica

import (
	"bytes"
	"testing"
)

// deliver hands a connection's accumulated bytes to the observer, then
// clears the buffer as a transport would after a successful send.
func deliver(t *testing.T, c *Conn, o *Observer) {
	t.Helper()
	if err := o.Receive(c.SendData()); err != nil {
		t.Fatalf("Receive() error: %v", err)
	}
	c.ClearSendData()
}

func pumpOne(t *testing.T, o *Observer) *Object {
	t.Helper()
	obj := o.PumpCreate()
	if obj == nil {
		t.Fatal("PumpCreate() = nil, want object")
	}
	return obj
}

// Authority creates and initializes an object, ticks, then a connection
// opens: the bootstrap must already carry the object.
func TestBootstrapAfterTick(t *testing.T) {
	a := NewAuthority()
	x := a.Create()
	x.SetInitData([]byte("a"))
	a.Tick()

	c := a.OpenConn()
	obs := NewObserver()
	deliver(t, c, obs)

	obj := pumpOne(t, obs)
	if !bytes.Equal(obj.InitData(), []byte("a")) {
		t.Errorf("InitData() = %q, want \"a\"", obj.InitData())
	}
	if obs.Signature() != a.Signature() {
		t.Errorf("observer signature = %#x, want %#x", obs.Signature(), a.Signature())
	}
}

// The connection opens between init and tick: the bootstrap carries the
// object, and the duplicate Create emitted by the following tick resolves
// to the same mirror instead of spawning a second one.
func TestBootstrapBeforeTick(t *testing.T) {
	a := NewAuthority()
	x := a.Create()
	x.SetInitData([]byte("a"))

	c := a.OpenConn()
	obs := NewObserver()
	deliver(t, c, obs)
	if obs.NumObjects() != 1 {
		t.Fatalf("NumObjects() = %d after bootstrap, want 1", obs.NumObjects())
	}

	a.Tick() // emits a Create for x that the observer already knows
	deliver(t, c, obs)
	if obs.NumObjects() != 1 {
		t.Errorf("NumObjects() = %d after duplicate Create, want 1", obs.NumObjects())
	}

	pumpOne(t, obs)
	if obs.PumpCreate() != nil {
		t.Error("duplicate Create queued a second object")
	}
}

// Re-sending identical sync bytes must not produce a second Update.
func TestIdenticalRewriteSendsNothing(t *testing.T) {
	a := NewAuthority()
	c := a.OpenConn()
	obs := NewObserver()

	x := a.Create()
	x.SetInitData(nil)
	x.SetSyncData([]byte("v1"))
	a.Tick()
	deliver(t, c, obs)

	mirror := pumpOne(t, obs)
	if !bytes.Equal(mirror.SyncData(), []byte("v1")) {
		t.Fatalf("SyncData() = %q, want \"v1\"", mirror.SyncData())
	}

	x.SetSyncData([]byte("v1"))
	a.Tick()
	if c.SendLen() != 0 {
		t.Errorf("identical rewrite queued %d bytes, want 0", c.SendLen())
	}
}

// An authority restart retires the observer's whole table and gates new
// objects until the application has released every old one.
func TestRestartTeardownAndGate(t *testing.T) {
	a1 := newAuthority(1111)
	oa := a1.Create()
	oa.SetInitData([]byte("A"))
	ob := a1.Create()
	ob.SetInitData([]byte("B"))
	a1.Tick()

	c1 := a1.OpenConn()
	obs := NewObserver()
	deliver(t, c1, obs)
	mirrorA := pumpOne(t, obs)
	mirrorB := pumpOne(t, obs)

	// The authority restarts under a new signature with a different table.
	a2 := newAuthority(2222)
	oc := a2.Create()
	oc.SetInitData([]byte("C"))
	a2.Tick()
	c2 := a2.OpenConn()
	deliver(t, c2, obs)

	if !mirrorA.PendingDestroy() || !mirrorB.PendingDestroy() {
		t.Fatal("old generation not retired after signature change")
	}
	if obs.Signature() != 2222 {
		t.Errorf("observer signature = %d, want 2222", obs.Signature())
	}

	if obs.PumpCreate() != nil {
		t.Fatal("PumpCreate() returned an object while old generation is live")
	}
	obs.Destroy(mirrorA)
	if obs.PumpCreate() != nil {
		t.Fatal("PumpCreate() opened the gate with one old object remaining")
	}
	obs.Destroy(mirrorB)

	mirrorC := pumpOne(t, obs)
	if !bytes.Equal(mirrorC.InitData(), []byte("C")) {
		t.Errorf("new generation InitData() = %q, want \"C\"", mirrorC.InitData())
	}
	checkBijection(t, obs)
}

// Messages enqueued across several ticks drain on the observer in exactly
// the order they were sent.
func TestMessageOrderingAcrossTicks(t *testing.T) {
	a := NewAuthority()
	c := a.OpenConn()
	obs := NewObserver()

	x := a.Create()
	x.SetInitData(nil)
	x.SendMessage([]byte("m1"))
	x.SendMessage([]byte("m2"))
	a.Tick()

	x.SendMessage([]byte("m3"))
	a.Tick()
	deliver(t, c, obs)

	mirror := pumpOne(t, obs)
	for _, want := range []string{"m1", "m2", "m3"} {
		msg, ok := mirror.ReceiveMessage()
		if !ok || string(msg) != want {
			t.Fatalf("ReceiveMessage() = %q, %v, want %q, true", msg, ok, want)
		}
	}
	if _, ok := mirror.ReceiveMessage(); ok {
		t.Error("ReceiveMessage() = true on drained queue")
	}
}

// Every payload must arrive byte-identical to what the authority set.
func TestPayloadRoundTrip(t *testing.T) {
	a := NewAuthority()
	c := a.OpenConn()
	obs := NewObserver()

	init := []byte{0x00, 0xFF, 0x10, 0x20}
	sync := bytes.Repeat([]byte{0xAB, 0xCD}, 300)

	x := a.Create()
	x.SetInitData(init)
	x.SetSyncData(sync)
	a.Tick()
	deliver(t, c, obs)

	mirror := pumpOne(t, obs)
	if !bytes.Equal(mirror.InitData(), init) {
		t.Errorf("InitData() differs: % x vs % x", mirror.InitData(), init)
	}
	if !bytes.Equal(mirror.SyncData(), sync) {
		t.Errorf("SyncData() differs after round trip")
	}
	if obs.RemoteIDOf(mirror.ID()) != RemoteID(x.ID()) {
		t.Errorf("RemoteIDOf(%d) = %d, want %d", mirror.ID(), obs.RemoteIDOf(mirror.ID()), x.ID())
	}
}

// A destroyed object disappears from the observer once the event arrives,
// and a destroy for a never-known id changes nothing.
func TestDestroyPropagation(t *testing.T) {
	a := NewAuthority()
	c := a.OpenConn()
	obs := NewObserver()

	x := a.Create()
	x.SetInitData(nil)
	a.Tick()
	deliver(t, c, obs)
	mirror := pumpOne(t, obs)

	a.Destroy(x)
	deliver(t, c, obs)
	if !mirror.PendingDestroy() {
		t.Error("mirror not retired after authority Destroy")
	}

	obs.Destroy(mirror)
	if obs.NumObjects() != 0 {
		t.Errorf("NumObjects() = %d after release, want 0", obs.NumObjects())
	}
}

// Two observers on separate connections converge to the same state.
func TestTwoObserversConverge(t *testing.T) {
	a := NewAuthority()
	c1 := a.OpenConn()
	obs1 := NewObserver()

	x := a.Create()
	x.SetInitData([]byte("shared"))
	x.SetSyncData([]byte("s0"))
	a.Tick()
	deliver(t, c1, obs1)

	// The second observer joins late and bootstraps from the Connect event.
	c2 := a.OpenConn()
	obs2 := NewObserver()

	x.SetSyncData([]byte("s1"))
	a.Tick()
	deliver(t, c1, obs1)
	deliver(t, c2, obs2)

	m1 := pumpOne(t, obs1)
	m2 := pumpOne(t, obs2)
	if !bytes.Equal(m1.SyncData(), []byte("s1")) || !bytes.Equal(m2.SyncData(), []byte("s1")) {
		t.Errorf("observers diverged: %q vs %q", m1.SyncData(), m2.SyncData())
	}
	if !bytes.Equal(m1.InitData(), m2.InitData()) {
		t.Error("init payloads diverged between observers")
	}
}
