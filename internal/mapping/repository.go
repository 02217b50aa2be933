package mapping

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository persists the mapping.
type Repository interface {
	// List returns all entries in mapping order.
	List(ctx context.Context) ([]Entry, error)

	// ReplaceAll swaps the stored mapping for entries in one transaction.
	ReplaceAll(ctx context.Context, entries []Entry) error
}

// SQLiteRepository implements Repository on the mappings table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns all entries in mapping order.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, resource_id, resource_type, sync_telemetry, display_name
		FROM mappings
		ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("querying mappings: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			kind string
			sync int
		)
		if err := rows.Scan(&e.Name, &e.ResourceID, &kind, &sync, &e.DisplayName); err != nil {
			return nil, fmt.Errorf("scanning mapping row: %w", err)
		}
		e.Type = Kind(kind)
		e.SyncTelemetry = sync != 0
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mappings: %w", err)
	}
	return entries, nil
}

// ReplaceAll swaps the stored mapping for entries in one transaction.
// Entries are expected to have passed Prepare.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, entries []Entry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM mappings"); err != nil {
		return fmt.Errorf("clearing mappings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mappings (name, resource_id, resource_type, sync_telemetry, display_name, position, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for i, e := range entries {
		sync := 0
		if e.SyncTelemetry {
			sync = 1
		}
		if _, err := stmt.ExecContext(ctx, e.Name, e.ResourceID, string(e.Type), sync, e.DisplayName, i, now); err != nil {
			return fmt.Errorf("inserting mapping %s: %w", e.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing mappings: %w", err)
	}
	return nil
}
