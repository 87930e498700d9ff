// ABOUTME: SQLite implementation of the Ledger interface using modernc.org/sqlite
// ABOUTME: Provides turn persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout keeps a fixed-width fraction so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements the Ledger interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS turns (
			turn_id     TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			session_id  TEXT NOT NULL,
			backend_id  TEXT NOT NULL DEFAULT '',
			channel     TEXT NOT NULL DEFAULT '',
			direction   TEXT NOT NULL,
			text        TEXT NOT NULL,
			created_at  TEXT NOT NULL,

			CHECK (direction IN ('inbound', 'outbound'))
		);

		CREATE INDEX IF NOT EXISTS idx_turns_user_created
			ON turns(user_id, created_at);

		CREATE INDEX IF NOT EXISTS idx_turns_session
			ON turns(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveTurn appends a turn. Missing ids and timestamps are filled in.
func (s *SQLiteStore) SaveTurn(ctx context.Context, turn *Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO turns (turn_id, user_id, session_id, backend_id, channel, direction, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		turn.ID,
		turn.User,
		turn.SessionID,
		turn.BackendID,
		turn.Channel,
		string(turn.Direction),
		turn.Text,
		turn.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting turn: %w", err)
	}

	s.logger.Debug("saved turn",
		"turn_id", turn.ID,
		"user", turn.User,
		"session_id", turn.SessionID,
		"direction", turn.Direction,
	)
	return nil
}

// GetTurn retrieves a single turn by ID
func (s *SQLiteStore) GetTurn(ctx context.Context, id string) (*Turn, error) {
	query := `
		SELECT turn_id, user_id, session_id, backend_id, channel, direction, text, created_at
		FROM turns
		WHERE turn_id = ?
	`
	turn, err := scanTurn(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying turn: %w", err)
	}
	return turn, nil
}

// ListTurns returns the user's most recent turns in chronological order.
func (s *SQLiteStore) ListTurns(ctx context.Context, user string, limit int) ([]*Turn, error) {
	query := `
		SELECT turn_id, user_id, session_id, backend_id, channel, direction, text, created_at
		FROM (
			SELECT *, rowid AS seq FROM turns
			WHERE user_id = ?
			ORDER BY created_at DESC, seq DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, user, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []*Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}
	return turns, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTurn(row scanner) (*Turn, error) {
	var (
		turn      Turn
		direction string
		createdAt string
	)
	if err := row.Scan(
		&turn.ID,
		&turn.User,
		&turn.SessionID,
		&turn.BackendID,
		&turn.Channel,
		&direction,
		&turn.Text,
		&createdAt,
	); err != nil {
		return nil, err
	}

	turn.Direction = Direction(direction)
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	turn.CreatedAt = ts
	return &turn, nil
}

var _ Ledger = (*SQLiteStore)(nil)
