// Package credential stores the active mailbox credential so the session
// can re-authenticate when its token is rejected.
package credential

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("credential not found")

// Backend names accepted by Open.
const (
	BackendMemory  = "memory"
	BackendKeyring = "keyring"
)

// Store holds secret values by key.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(key string) error
}

// Open returns the store for the named backend. dir is where the keyring
// file backend keeps its data when no system keyring is available.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendKeyring:
		return OpenKeyring(dir)
	default:
		return nil, fmt.Errorf("unknown credential backend %q", backend)
	}
}

// Memory is a process-local Store. Values are lost on exit.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[key]
	if !ok {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	return v, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}
