package snapshot

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiskStore(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	defer store.Close()

	exerciseStore(t, store)
}

func TestDiskStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "snaps")
	if _, err := NewDiskStore(dir); err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if !info.IsDir() {
		t.Error("store path is not a directory")
	}
}

func TestDiskStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	want := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	first, err := NewDiskStore(dir)
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	if err := first.Save(ctx, "world", want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	first.Close()

	second, err := NewDiskStore(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, err := second.Load(ctx, "world")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Load after reopen = %v, want %v", got, want)
	}
}

func TestDiskStoreListIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewDiskStore(dir)
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	if err := store.Save(ctx, "world", []byte{1}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".abc123.tmp"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	names, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 1 || names[0] != "world" {
		t.Errorf("List = %v, want [world]", names)
	}
}

func TestDiskStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewDiskStore(dir)
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := store.Save(ctx, "world", []byte{byte(i)}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want 1", len(entries))
	}
}

func TestDiskStoreCanceledContext(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Save(ctx, "world", []byte{1}); err == nil {
		t.Error("Save with canceled context succeeded")
	}
	if _, err := store.Load(ctx, "world"); err == nil {
		t.Error("Load with canceled context succeeded")
	}
}
