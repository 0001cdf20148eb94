package store

import (
	"context"
	"sync"
)

type Memory struct {
	mu    sync.RWMutex
	stock map[string]int64
	quota map[string]int
}

func NewMemory() *Memory {
	return &Memory{stock: map[string]int64{}, quota: map[string]int{}}
}

func (m *Memory) PutStock(_ context.Context, itemID string, value int64) error {
	m.mu.Lock()
	m.stock[itemID] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetStock(_ context.Context, itemID string) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.stock[itemID]
	return v, ok, nil
}

func (m *Memory) DeleteStock(_ context.Context, itemID string) error {
	m.mu.Lock()
	delete(m.stock, itemID)
	m.mu.Unlock()
	return nil
}

func (m *Memory) PutQuota(_ context.Context, actorID, itemID, day string, count int) error {
	m.mu.Lock()
	m.quota[quotaKey(actorID, itemID, day)] = count
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetQuota(_ context.Context, actorID, itemID, day string) (int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.quota[quotaKey(actorID, itemID, day)]
	return v, ok, nil
}

func (m *Memory) Close() error { return nil }
