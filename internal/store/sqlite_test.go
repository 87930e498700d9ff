// ABOUTME: Tests for SQLite ledger implementation
// ABOUTME: Covers schema creation, turn persistence, ordering and limiting

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	s, err := NewSQLiteStore(dbPath, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file was not created in nested directory")
	assert.NoError(t, s.Ping(context.Background()))
}

func TestSaveAndGetTurn(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 9, 30, 0, 123, time.UTC)
	turn := &Turn{
		User:      "U1",
		SessionID: "sess-1",
		BackendID: "backend-1",
		Channel:   "C1",
		Direction: DirectionInbound,
		Text:      "what's my balance",
		CreatedAt: created,
	}
	require.NoError(t, s.SaveTurn(ctx, turn))
	require.NotEmpty(t, turn.ID)

	got, err := s.GetTurn(ctx, turn.ID)
	require.NoError(t, err)
	assert.Equal(t, turn.User, got.User)
	assert.Equal(t, turn.SessionID, got.SessionID)
	assert.Equal(t, turn.BackendID, got.BackendID)
	assert.Equal(t, turn.Channel, got.Channel)
	assert.Equal(t, DirectionInbound, got.Direction)
	assert.Equal(t, turn.Text, got.Text)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestGetTurn_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTurn(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveTurn_RejectsUnknownDirection(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveTurn(context.Background(), &Turn{User: "U1", SessionID: "s", Direction: "sideways", Text: "x"})
	assert.Error(t, err)
}

func TestListTurns_OrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveTurn(ctx, &Turn{
			User:      "U1",
			SessionID: "sess-1",
			Direction: DirectionInbound,
			Text:      fmt.Sprintf("turn %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, s.SaveTurn(ctx, &Turn{User: "U2", SessionID: "sess-2", Direction: DirectionOutbound, Text: "other", CreatedAt: base}))

	all, err := s.ListTurns(ctx, "U1", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "turn 0", all[0].Text)
	assert.Equal(t, "turn 4", all[4].Text)

	recent, err := s.ListTurns(ctx, "U1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "turn 3", recent[0].Text)
	assert.Equal(t, "turn 4", recent[1].Text)

	none, err := s.ListTurns(ctx, "U9", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListTurns_SameTimestampKeepsInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveTurn(ctx, &Turn{User: "U1", SessionID: "s", Direction: DirectionInbound, Text: "question", CreatedAt: at}))
	require.NoError(t, s.SaveTurn(ctx, &Turn{User: "U1", SessionID: "s", Direction: DirectionOutbound, Text: "answer", CreatedAt: at}))

	turns, err := s.ListTurns(ctx, "U1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "question", turns[0].Text)
	assert.Equal(t, "answer", turns[1].Text)
}
