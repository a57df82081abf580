// Package kvstore provides the durable local key-value storage the session
// state and audit trail persist into. Values are opaque strings; callers own
// serialization.
package kvstore

import "sync"

type Store interface {
	SetItem(key string, value string) error
	GetItem(key string) (string, bool, error)
	RemoveItem(key string) error
	Close() error
}

// Memory is an in-process Store used by tests and as a fallback when no
// durable path is configured.
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemory() *Memory {
	return &Memory{items: map[string]string{}}
}

func (m *Memory) SetItem(key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = value
	return nil
}

func (m *Memory) GetItem(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.items[key]
	return value, ok, nil
}

func (m *Memory) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
