package protocol

import (
	"errors"
	"io"
	"testing"

	"github.com/replica-dev/replica/pkg/wire"
)

func TestDecodeEventEmptyBuffer(t *testing.T) {
	if _, err := DecodeEvent(wire.NewReader(nil)); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("DecodeEvent(empty) error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestDecodeEventUnknownTag(t *testing.T) {
	if _, err := DecodeEvent(wire.NewReader([]byte{0x7F})); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("DecodeEvent(unknown tag) error = %v, want ErrUnknownEvent", err)
	}
}

func TestDecodeEventTruncated(t *testing.T) {
	full := EncodeEvent(&Connect{
		Signature: 1,
		Objects:   []ConnectObject{{ID: 2, InitData: []byte("abc")}},
	})

	// Every strict prefix of a valid event must fail cleanly.
	for n := 0; n < len(full); n++ {
		if _, err := DecodeEvent(wire.NewReader(full[:n])); err == nil {
			t.Errorf("DecodeEvent(%d of %d bytes) succeeded, want error", n, len(full))
		}
	}
}

func TestDecodeEventRejectsAbsurdCount(t *testing.T) {
	w := wire.NewWriter()
	w.WriteUint8(uint8(EventUpdate))
	w.WriteUint32(MaxRecordCount + 1)

	if _, err := DecodeEvent(wire.NewReader(w.Bytes())); !errors.Is(err, ErrCountTooLarge) {
		t.Errorf("error = %v, want ErrCountTooLarge", err)
	}
}

func TestDecodeEventRejectsCountBeyondBuffer(t *testing.T) {
	// Count claims 1000 entries but the buffer holds none.
	w := wire.NewWriter()
	w.WriteUint8(uint8(EventUpdate))
	w.WriteUint32(1000)

	if _, err := DecodeEvent(wire.NewReader(w.Bytes())); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestDecodeEventRejectsOversizePayload(t *testing.T) {
	w := wire.NewWriter()
	w.WriteUint8(uint8(EventUpdate))
	w.WriteUint32(1)
	w.WriteUint32(9)
	w.WriteUint32(MaxSyncDataSize + 1)
	w.WriteBytes(make([]byte, 16))

	if _, err := DecodeEvent(wire.NewReader(w.Bytes())); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("error = %v, want ErrPayloadTooLarge", err)
	}
}

func TestDecodeEventStopsAtFailure(t *testing.T) {
	w := wire.NewWriter()
	(&Create{ID: 1, InitData: []byte("ok")}).EncodeTo(w)
	buf := append(w.Bytes(), 0xEE) // valid event followed by garbage

	r := wire.NewReader(buf)
	ev, err := DecodeEvent(r)
	if err != nil {
		t.Fatalf("first DecodeEvent() error: %v", err)
	}
	if ev.Type() != EventCreate {
		t.Errorf("first event Type() = %v, want Create", ev.Type())
	}

	if _, err := DecodeEvent(r); err == nil {
		t.Error("second DecodeEvent() succeeded on garbage tail")
	}
}

func TestDecodedPayloadsDoNotAliasInput(t *testing.T) {
	buf := EncodeEvent(&Create{ID: 1, InitData: []byte{1, 2, 3}})

	ev, err := DecodeEvent(wire.NewReader(buf))
	if err != nil {
		t.Fatalf("DecodeEvent() error: %v", err)
	}

	for i := range buf {
		buf[i] = 0xFF
	}
	if got := ev.(*Create).InitData; got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("InitData = % x after input mutation, want 01 02 03", got)
	}
}
