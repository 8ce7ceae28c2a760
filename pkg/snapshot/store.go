package snapshot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Store defines the interface for snapshot persistence backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists a snapshot under the given name.
	// If a snapshot with that name already exists, it is replaced.
	Save(ctx context.Context, name string, data []byte) error

	// Load retrieves a snapshot by name.
	// Returns (nil, nil) if no snapshot with that name exists.
	// Returns (nil, err) on backend errors.
	Load(ctx context.Context, name string) ([]byte, error)

	// Delete removes a snapshot.
	// Should not return an error if the snapshot doesn't exist.
	Delete(ctx context.Context, name string) error

	// List returns the names of all stored snapshots, sorted.
	List(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// ErrStoreClosed is returned when operations are attempted on a closed store.
type ErrStoreClosed struct{}

func (e ErrStoreClosed) Error() string {
	return "snapshot store is closed"
}

// validateName rejects names that cannot serve as a file name or object key.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("snapshot: name is required")
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return fmt.Errorf("snapshot: invalid name %q", name)
	}
	return nil
}

// MemoryStore is an in-memory snapshot store implementation.
// It's the default store and suitable for tests and single-server
// deployments. For multi-server deployments, use RedisStore or S3Store.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
	closed    bool
}

// NewMemoryStore creates a new in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string][]byte),
	}
}

// Save stores a snapshot under name.
func (m *MemoryStore) Save(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	// Copy so later caller mutations don't reach the store.
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	m.snapshots[name] = dataCopy
	return nil
}

// Load retrieves a snapshot if it exists.
func (m *MemoryStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed{}
	}

	data, ok := m.snapshots[name]
	if !ok {
		return nil, nil
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	return dataCopy, nil
}

// Delete removes a snapshot from the store.
func (m *MemoryStore) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	delete(m.snapshots, name)
	return nil
}

// List returns all snapshot names, sorted.
func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed{}
	}

	names := make([]string, 0, len(m.snapshots))
	for name := range m.snapshots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close shuts down the store and releases its contents.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	m.snapshots = nil
	return nil
}

// Count returns the number of snapshots in the store.
// This is for monitoring/testing purposes.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshots)
}
