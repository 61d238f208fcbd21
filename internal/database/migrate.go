package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed migrations/001_initial.up.sql
var initialMigrationSQL string

const stateTable = "kv_entries"

// stateColumns must all be present for the key-value repository to work.
var stateColumns = []string{"key", "value", "updated_at"}

// EnsureSchema creates the state table when it is missing and then checks
// that the columns the repository reads and writes exist. The migration is
// idempotent, so concurrent replicas may both run it.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	found, err := db.stateColumnCount(ctx)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", stateTable, err)
	}

	if found == 0 {
		slog.Info("state table missing; applying initial migration", "component", "database", "table", stateTable)
		if _, err := db.Pool.Exec(ctx, initialMigrationSQL); err != nil {
			return fmt.Errorf("apply initial migration: %w", err)
		}
		if found, err = db.stateColumnCount(ctx); err != nil {
			return fmt.Errorf("re-inspect %s after migration: %w", stateTable, err)
		}
	}

	if found != len(stateColumns) {
		return fmt.Errorf("table %s has %d of %d expected columns", stateTable, found, len(stateColumns))
	}

	slog.Info("database schema ensured", "component", "database", "table", stateTable)
	return nil
}

func (db *DB) stateColumnCount(ctx context.Context) (int, error) {
	var count int
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM information_schema.columns
		WHERE table_schema = current_schema()
		  AND table_name = $1
		  AND column_name = ANY($2)
	`, stateTable, stateColumns).Scan(&count)
	return count, err
}
