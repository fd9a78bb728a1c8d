package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps transfers in a map. It is used when no database is
// configured and in tests.
type MemoryStore struct {
	mu        sync.Mutex
	transfers map[string]Transfer
}

var _ TransferStore = (*MemoryStore)(nil)

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{transfers: make(map[string]Transfer)}
}

func (m *MemoryStore) StartTransfer(_ context.Context, t Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transfers[t.ID]; ok {
		return fmt.Errorf("store: start transfer %s: duplicate id", t.ID)
	}
	m.transfers[t.ID] = t
	return nil
}

func (m *MemoryStore) CompleteTransfer(_ context.Context, id string, endedAt time.Time, outcome, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transfers[id]
	if !ok {
		return fmt.Errorf("store: complete transfer %s: %w", id, ErrNotFound)
	}
	dur := endedAt.Sub(t.StartedAt).Seconds()
	t.EndedAt = &endedAt
	t.DurationSec = &dur
	t.Outcome = outcome
	t.Message = message
	m.transfers[id] = t
	return nil
}

func (m *MemoryStore) SetTranscriptPath(_ context.Context, id string, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transfers[id]
	if !ok {
		return fmt.Errorf("store: set transcript path %s: %w", id, ErrNotFound)
	}
	t.TranscriptPath = path
	m.transfers[id] = t
	return nil
}

func (m *MemoryStore) GetTransfer(_ context.Context, id string) (Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transfers[id]
	if !ok {
		return Transfer{}, fmt.Errorf("store: get transfer %s: %w", id, ErrNotFound)
	}
	return t, nil
}

func (m *MemoryStore) Close() error { return nil }
