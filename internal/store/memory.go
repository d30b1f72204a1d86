// ABOUTME: In-memory CookieStore implementation
// ABOUTME: Used by tests and by sessions that should not outlive the process

package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory CookieStore.
type MemoryStore struct {
	mu      sync.RWMutex
	cookies map[string]*Cookie
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cookies: make(map[string]*Cookie)}
}

// GetCookie returns a copy of the named cookie.
func (m *MemoryStore) GetCookie(_ context.Context, name string) (*Cookie, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.cookies[name]
	if !ok {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

// SetCookie stores a copy of the cookie.
func (m *MemoryStore) SetCookie(_ context.Context, cookie *Cookie) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *cookie
	m.cookies[c.Name] = &c
	return nil
}

// DeleteCookie removes the named cookie.
func (m *MemoryStore) DeleteCookie(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cookies[name]; !ok {
		return ErrNotFound
	}
	delete(m.cookies, name)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
