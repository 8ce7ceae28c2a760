package snapshot

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, newTestSQLiteStore(t))
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(""); err == nil {
		t.Error("NewSQLiteStore with empty path succeeded")
	}
	if _, err := NewSQLiteStore("   "); err == nil {
		t.Error("NewSQLiteStore with blank path succeeded")
	}
}

func TestSQLiteStoreLoadReturnsNewest(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := byte(1); i <= 3; i++ {
		if err := store.SaveTick(ctx, "world", uint64(i)*10, []byte{i}); err != nil {
			t.Fatalf("SaveTick failed: %v", err)
		}
	}

	got, err := store.Load(ctx, "world")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !bytes.Equal(got, []byte{3}) {
		t.Errorf("Load = %v, want [3]", got)
	}
}

func TestSQLiteStoreHistory(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	before := time.Now().Add(-time.Second)

	ticks := []uint64{10, 20, 30}
	for i, tick := range ticks {
		if err := store.SaveTick(ctx, "world", tick, []byte{byte(i)}); err != nil {
			t.Fatalf("SaveTick failed: %v", err)
		}
	}
	if err := store.SaveTick(ctx, "other", 99, []byte{0xFF}); err != nil {
		t.Fatalf("SaveTick failed: %v", err)
	}

	records, err := store.History(ctx, "world", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("History returned %d records, want 3", len(records))
	}

	// Newest first.
	wantTicks := []uint64{30, 20, 10}
	for i, rec := range records {
		if rec.Name != "world" {
			t.Errorf("records[%d].Name = %q, want world", i, rec.Name)
		}
		if rec.Tick != wantTicks[i] {
			t.Errorf("records[%d].Tick = %d, want %d", i, rec.Tick, wantTicks[i])
		}
		if rec.TakenAt.Before(before) {
			t.Errorf("records[%d].TakenAt = %v, want after %v", i, rec.TakenAt, before)
		}
	}

	limited, err := store.History(ctx, "world", 2)
	if err != nil {
		t.Fatalf("History with limit failed: %v", err)
	}
	if len(limited) != 2 || limited[0].Tick != 30 || limited[1].Tick != 20 {
		t.Errorf("History limit 2 = %+v, want ticks [30 20]", limited)
	}

	if _, err := store.History(ctx, "world", 0); err == nil {
		t.Error("History with zero limit succeeded")
	}
}

func TestSQLiteStoreDeleteRemovesHistory(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	for tick := uint64(1); tick <= 3; tick++ {
		if err := store.SaveTick(ctx, "world", tick, []byte{byte(tick)}); err != nil {
			t.Fatalf("SaveTick failed: %v", err)
		}
	}
	if err := store.Delete(ctx, "world"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	records, err := store.History(ctx, "world", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("History after Delete returned %d records, want 0", len(records))
	}
}

func TestSQLiteStorePrune(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	for tick := uint64(1); tick <= 5; tick++ {
		if err := store.SaveTick(ctx, "world", tick, []byte{byte(tick)}); err != nil {
			t.Fatalf("SaveTick failed: %v", err)
		}
	}
	if err := store.SaveTick(ctx, "other", 7, []byte{7}); err != nil {
		t.Fatalf("SaveTick failed: %v", err)
	}

	if err := store.Prune(ctx, "world", 2); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	records, err := store.History(ctx, "world", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(records) != 2 || records[0].Tick != 5 || records[1].Tick != 4 {
		t.Errorf("History after Prune = %+v, want ticks [5 4]", records)
	}

	// Other names are untouched.
	other, err := store.History(ctx, "other", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(other) != 1 {
		t.Errorf("Prune touched other name: %+v", other)
	}

	if err := store.Prune(ctx, "world", -1); err == nil {
		t.Error("Prune with negative keep succeeded")
	}
}

func TestSQLiteStoreClosed(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := store.Save(ctx, "world", []byte{1}); err == nil {
		t.Error("Save on closed store succeeded")
	}
	if _, err := store.Load(ctx, "world"); err == nil {
		t.Error("Load on closed store succeeded")
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
