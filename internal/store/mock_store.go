// ABOUTME: Mock Ledger implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Ledger implementation for testing.
type MockStore struct {
	mu    sync.RWMutex
	turns []*Turn
	err   error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (m *MockStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SaveTurn stores a copy of turn.
func (m *MockStore) SaveTurn(ctx context.Context, turn *Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	// Make a copy to avoid external modification
	t := *turn
	m.turns = append(m.turns, &t)
	return nil
}

// GetTurn retrieves a turn by ID.
func (m *MockStore) GetTurn(ctx context.Context, id string) (*Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}
	for _, t := range m.turns {
		if t.ID == id {
			result := *t
			return &result, nil
		}
	}
	return nil, ErrNotFound
}

// ListTurns returns the user's most recent turns in insertion order.
func (m *MockStore) ListTurns(ctx context.Context, user string, limit int) ([]*Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}

	var matched []*Turn
	for _, t := range m.turns {
		if t.User == user {
			result := *t
			matched = append(matched, &result)
		}
	}

	limit = clampLimit(limit)
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

// Ping reports the configured failure, if any.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

var _ Ledger = (*MockStore)(nil)
