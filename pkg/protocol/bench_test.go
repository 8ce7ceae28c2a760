package protocol

import (
	"testing"

	"github.com/replica-dev/replica/pkg/wire"
)

func benchUpdate(entries, payloadLen int) *Update {
	ev := &Update{Entries: make([]UpdateEntry, entries)}
	for i := range ev.Entries {
		ev.Entries[i] = UpdateEntry{ID: uint32(i + 1), SyncData: make([]byte, payloadLen)}
	}
	return ev
}

func BenchmarkEncodeUpdate_10x64(b *testing.B) {
	ev := benchUpdate(10, 64)
	w := wire.NewWriter()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Reset()
		ev.EncodeTo(w)
	}
}

func BenchmarkEncodeUpdate_100x256(b *testing.B) {
	ev := benchUpdate(100, 256)
	w := wire.NewWriter()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Reset()
		ev.EncodeTo(w)
	}
}

func BenchmarkDecodeUpdate_10x64(b *testing.B) {
	data := EncodeEvent(benchUpdate(10, 64))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeEvent(wire.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeUpdate_100x256(b *testing.B) {
	data := EncodeEvent(benchUpdate(100, 256))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeEvent(wire.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeConnect_50Objects(b *testing.B) {
	ev := &Connect{Signature: 1, Objects: make([]ConnectObject, 50)}
	for i := range ev.Objects {
		ev.Objects[i] = ConnectObject{ID: uint32(i + 1), InitData: make([]byte, 32)}
	}
	data := EncodeEvent(ev)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeEvent(wire.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}
