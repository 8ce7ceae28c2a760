package snapshot

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const snapExt = ".snap"

// DiskStore stores snapshots on the local filesystem, one file per name.
// Writes go to a temp file first and are renamed into place, so a crash
// mid-save never corrupts the previous snapshot.
type DiskStore struct {
	dir string
}

// NewDiskStore creates a new DiskStore rooted at dir.
// The directory is created if it doesn't exist.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &DiskStore{dir: dir}, nil
}

// path returns the snapshot file path for a name.
func (s *DiskStore) path(name string) string {
	return filepath.Join(s.dir, name+snapExt)
}

// Save writes a snapshot atomically.
func (s *DiskStore) Save(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateName(name); err != nil {
		return err
	}

	tmp := filepath.Join(s.dir, tempFileName())
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path(name)); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Load retrieves a snapshot if it exists.
func (s *DiskStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Delete removes a snapshot file.
func (s *DiskStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateName(name); err != nil {
		return err
	}

	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns the names of all snapshot files in the directory, sorted.
// Files without the snapshot extension are ignored.
func (s *DiskStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), snapExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), snapExt))
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op; DiskStore holds no open resources between calls.
func (s *DiskStore) Close() error {
	return nil
}

// tempFileName generates a cryptographically random temp file name.
func tempFileName() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "." + hex.EncodeToString(b) + ".tmp"
}
