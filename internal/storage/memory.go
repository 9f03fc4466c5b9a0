package storage

import (
	"context"
	"sync"
)

// Memory keeps payloads in process memory. Used by tests and the memory
// storage driver.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), payload...), nil
}

func (m *Memory) Save(ctx context.Context, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), payload...)
	return nil
}

// Put seeds a raw payload, bypassing any encoding.
func (m *Memory) Put(key string, payload string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = []byte(payload)
}

// Raw returns the stored payload as a string and whether it exists.
func (m *Memory) Raw(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.data[key]
	return string(payload), ok
}

func (m *Memory) Ping(context.Context) error {
	return nil
}
