package statestore

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store and CookieStore for tests and
// throwaway sessions.
type MemoryStore struct {
	mu      sync.RWMutex
	values  map[string]string
	cookies map[string][]StoredCookie
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:  make(map[string]string),
		cookies: make(map[string][]StoredCookie),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *MemoryStore) SaveCookies(_ context.Context, host string, cookies []*http.Cookie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cookies[host] = MergeCookies(m.cookies[host], cookies)
	return nil
}

func (m *MemoryStore) LoadCookies(_ context.Context, host string) ([]*http.Cookie, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	var out []*http.Cookie
	for _, c := range m.cookies[host] {
		if c.Expired(now) {
			continue
		}
		out = append(out, c.HTTP())
	}
	return out, nil
}

func (m *MemoryStore) ClearCookies(_ context.Context, host string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cookies, host)
	return nil
}
