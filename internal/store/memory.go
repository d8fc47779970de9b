package store

import (
	"context"
	"sync"
)

// MemoryKV is an in-process KV. With a quota set, writes that would push the
// total size of keys and values past it fail with ErrQuotaExceeded, the way a
// full browser storage area does.
type MemoryKV struct {
	mu       sync.Mutex
	data     map[string]string
	quota    int
	disabled bool
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

// NewMemoryKVWithQuota limits the store to quota bytes.
func NewMemoryKVWithQuota(quota int) *MemoryKV {
	m := NewMemoryKV()
	m.quota = quota
	return m
}

// Disable makes every subsequent call fail with ErrUnavailable.
func (m *MemoryKV) Disable() {
	m.mu.Lock()
	m.disabled = true
	m.mu.Unlock()
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return "", false, ErrUnavailable
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocked(key, value)
}

func (m *MemoryKV) SetIfAbsent(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return false, ErrUnavailable
	}
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	if err := m.setLocked(key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (m *MemoryKV) setLocked(key, value string) error {
	if m.disabled {
		return ErrUnavailable
	}
	if m.quota > 0 {
		size := len(key) + len(value)
		for k, v := range m.data {
			if k != key {
				size += len(k) + len(v)
			}
		}
		if size > m.quota {
			return ErrQuotaExceeded
		}
	}
	m.data[key] = value
	return nil
}

// Raw returns a copy of the stored content, for inspection in tests and the CLI.
func (m *MemoryKV) Raw() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}
