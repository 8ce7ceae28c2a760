package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordBeforeInitIsNoOp(t *testing.T) {
	// Must not panic with no collectors installed.
	SetObjects(1)
	SetConnections(1)
	RecordFlush(10)
	RecordReceive(10)
	RecordDecodeFailure()
	RecordTick(time.Millisecond)
	RecordSnapshotOp("save", nil)
}

func TestRecordAfterInit(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(WithRegistry(reg), WithNamespace("test"))
	if global == nil {
		t.Fatal("Init did not install collectors")
	}

	SetObjects(42)
	SetConnections(3)
	RecordFlush(100)
	RecordFlush(50)
	RecordReceive(75)
	RecordDecodeFailure()
	RecordTick(time.Millisecond)
	RecordSnapshotOp("save", nil)
	RecordSnapshotOp("load", errors.New("missing"))

	if got := testutil.ToFloat64(global.objectsLive); got != 42 {
		t.Errorf("objects_live = %v, want 42", got)
	}
	if got := testutil.ToFloat64(global.connectionsOpen); got != 3 {
		t.Errorf("connections_open = %v, want 3", got)
	}
	if got := testutil.ToFloat64(global.flushesTotal); got != 2 {
		t.Errorf("flushes_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(global.flushedBytes); got != 150 {
		t.Errorf("flushed_bytes_total = %v, want 150", got)
	}
	if got := testutil.ToFloat64(global.receivedBytes); got != 75 {
		t.Errorf("received_bytes_total = %v, want 75", got)
	}
	if got := testutil.ToFloat64(global.decodeFailures); got != 1 {
		t.Errorf("decode_failures_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(global.snapshotOps.WithLabelValues("save", "ok")); got != 1 {
		t.Errorf("snapshot_ops_total{save,ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(global.snapshotOps.WithLabelValues("load", "error")); got != 1 {
		t.Errorf("snapshot_ops_total{load,error} = %v, want 1", got)
	}

	// Second Init must not re-register against a new registry.
	Init(WithRegistry(prometheus.NewRegistry()))
	SetObjects(7)
	if got := testutil.ToFloat64(global.objectsLive); got != 7 {
		t.Errorf("objects_live after second Init = %v, want 7", got)
	}
}
