// ABOUTME: Contract tests for the ledger schema to detect breaking schema changes.
// ABOUTME: Validates that expected tables, columns and indexes exist in SQLite database.

package contract

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/assistant-relay/internal/store"
)

// expectedSchema defines the contract for the ledger schema.
// Operators query the turns table directly, so renames are breaking.
var expectedSchema = map[string][]string{
	"turns": {
		"turn_id", "user_id", "session_id", "backend_id",
		"channel", "direction", "text", "created_at",
	},
}

// setupTestDB creates a temporary SQLite database with the production schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "contract_test.db")

	// Use the store package to create the database with proper schema
	sqliteStore, err := store.NewSQLiteStore(dbPath, nil)
	require.NoError(t, err, "failed to create SQLite store")

	// The store owns its connection, so open a second one for inspection
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err, "failed to open database")

	t.Cleanup(func() {
		db.Close()
		sqliteStore.Close()
	})

	return db
}

// getTableColumns queries SQLite to get column names for a table.
func getTableColumns(ctx context.Context, db *sql.DB, tableName string) (map[string]bool, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", tableName)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying table info: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scanning column info: %w", err)
		}
		columns[name] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating columns: %w", err)
	}

	return columns, nil
}

func queryNames(t *testing.T, db *sql.DB, kind string) map[string]bool {
	t.Helper()
	rows, err := db.QueryContext(context.Background(),
		"SELECT name FROM sqlite_master WHERE type = ? AND name NOT LIKE 'sqlite_%'", kind)
	require.NoError(t, err, "failed to query %s names", kind)
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names[name] = true
	}
	require.NoError(t, rows.Err())
	return names
}

// TestSchemaSurface verifies that all expected tables and columns exist.
func TestSchemaSurface(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for table, expectedCols := range expectedSchema {
		t.Run(table, func(t *testing.T) {
			actualCols, err := getTableColumns(ctx, db, table)
			if !assert.NoError(t, err, "failed to get columns for table %s", table) {
				return
			}
			if !assert.NotEmpty(t, actualCols, "table %s should exist and have columns", table) {
				return
			}

			for _, col := range expectedCols {
				assert.True(t, actualCols[col], "column %s.%s should exist", table, col)
			}

			for col := range actualCols {
				if !slices.Contains(expectedCols, col) {
					t.Logf("INFO: extra column %s.%s not in contract (consider adding)", table, col)
				}
			}
		})
	}
}

func TestTablesExist(t *testing.T) {
	tables := queryNames(t, setupTestDB(t), "table")
	for table := range expectedSchema {
		assert.True(t, tables[table], "table %s should exist", table)
	}
}

// TestSchemaHasIndexes verifies the indexes the admin API relies on.
func TestSchemaHasIndexes(t *testing.T) {
	indexes := queryNames(t, setupTestDB(t), "index")
	for _, idx := range []string{"idx_turns_user_created", "idx_turns_session"} {
		assert.True(t, indexes[idx], "index %s should exist", idx)
	}
}

func TestDirectionConstraint(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO turns (turn_id, user_id, session_id, direction, text, created_at)
		 VALUES ('t1', 'U1', 's1', 'sideways', 'x', '2024-01-01T00:00:00Z')`)
	assert.Error(t, err, "direction outside inbound/outbound must be rejected")
}
