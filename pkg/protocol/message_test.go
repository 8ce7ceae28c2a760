package protocol

import (
	"bytes"
	"testing"
)

func TestMessageEntryWalk(t *testing.T) {
	var queue []byte
	msgs := [][]byte{[]byte("first"), {}, []byte("third")}
	for _, m := range msgs {
		queue = AppendMessageEntry(queue, m)
	}

	cursor := 0
	for i, want := range msgs {
		msg, next, ok := NextMessageEntry(queue, cursor)
		if !ok {
			t.Fatalf("entry %d: NextMessageEntry() = false, want true", i)
		}
		if !bytes.Equal(msg, want) {
			t.Errorf("entry %d = %q, want %q", i, msg, want)
		}
		cursor = next
	}

	if _, _, ok := NextMessageEntry(queue, cursor); ok {
		t.Error("NextMessageEntry() = true past final entry")
	}
	if cursor != len(queue) {
		t.Errorf("final cursor = %d, want %d", cursor, len(queue))
	}
}

func TestNextMessageEntryTruncated(t *testing.T) {
	queue := AppendMessageEntry(nil, []byte("whole"))

	tests := []struct {
		name  string
		queue []byte
	}{
		{"half a prefix", queue[:1]},
		{"prefix without body", queue[:2]},
		{"partial body", queue[:4]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, ok := NextMessageEntry(tt.queue, 0); ok {
				t.Error("NextMessageEntry() = true on truncated queue")
			}
		})
	}
}

func TestNextMessageEntryNegativeCursor(t *testing.T) {
	queue := AppendMessageEntry(nil, []byte("x"))
	if _, _, ok := NextMessageEntry(queue, -1); ok {
		t.Error("NextMessageEntry(-1) = true, want false")
	}
}

func TestAppendMessageEntryPanicsWhenOversize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("AppendMessageEntry did not panic on oversize message")
		}
	}()

	AppendMessageEntry(nil, make([]byte, MaxMessageSize+1))
}

func TestAppendMessageEntryMaxSize(t *testing.T) {
	queue := AppendMessageEntry(nil, make([]byte, MaxMessageSize))

	msg, _, ok := NextMessageEntry(queue, 0)
	if !ok || len(msg) != MaxMessageSize {
		t.Errorf("round-trip of max-size message = %d bytes, %v, want %d, true", len(msg), ok, MaxMessageSize)
	}
}
