// ABOUTME: Ledger interface and Turn record for the transcript store
// ABOUTME: Defines directions and the not-found sentinel shared by implementations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested turn does not exist
var ErrNotFound = errors.New("not found")

// Direction says which way a turn travelled.
type Direction string

const (
	DirectionInbound  Direction = "inbound"  // user to assistant
	DirectionOutbound Direction = "outbound" // assistant to user
)

// Turn is one recorded utterance.
type Turn struct {
	ID        string
	User      string
	SessionID string // local session identity
	BackendID string // assistant session id when the turn was exchanged
	Channel   string
	Direction Direction
	Text      string
	CreatedAt time.Time
}

// DefaultListLimit is used when ListTurns is called with a non-positive limit.
const DefaultListLimit = 50

// MaxListLimit caps ListTurns.
const MaxListLimit = 500

// Ledger is the transcript store.
type Ledger interface {
	SaveTurn(ctx context.Context, turn *Turn) error
	GetTurn(ctx context.Context, id string) (*Turn, error)

	// ListTurns returns the user's most recent turns, oldest first.
	ListTurns(ctx context.Context, user string, limit int) ([]*Turn, error)

	Ping(ctx context.Context) error
	Close() error
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
