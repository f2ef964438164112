package ledger

import (
	"context"
	"sync"
)

// Memory is an append-only in-process Sink.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *Memory) List(_ context.Context, sessionID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Entry{}
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].SessionID == sessionID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
