package store

import (
	"context"
	"fmt"
	"time"
)

// AppliedMigration is one row of the migration bookkeeping table.
type AppliedMigration struct {
	Target     string
	Identifier string
	AppliedAt  time.Time
}

// EnsureMigrationTable creates the bookkeeping table if it is missing. It is
// the only table not created by a migration unit.
func (s *Store) EnsureMigrationTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migration (
			target TEXT NOT NULL,
			identifier TEXT NOT NULL,
			applied_at INTEGER NOT NULL,
			PRIMARY KEY (target, identifier)
		)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}
	return nil
}

// AppliedMigrations returns the units applied for target, oldest first.
func (s *Store) AppliedMigrations(ctx context.Context, target string) ([]AppliedMigration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT target, identifier, applied_at FROM migration
		WHERE target = ?
		ORDER BY applied_at, rowid`, target)
	if err != nil {
		if isSQLiteError(err, "no such table") {
			return nil, nil
		}
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	var out []AppliedMigration
	for rows.Next() {
		var m AppliedMigration
		var appliedAt int64
		if err := rows.Scan(&m.Target, &m.Identifier, &appliedAt); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		m.AppliedAt = time.UnixMilli(appliedAt).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkMigrationApplied records that a unit of target completed. It commits
// with the unit's own changes.
func (t *Tx) MarkMigrationApplied(target, identifier string, at time.Time) error {
	_, err := t.tx.Exec(`
		INSERT INTO migration (target, identifier, applied_at) VALUES (?, ?, ?)`,
		target, identifier, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("mark migration %s/%s applied: %w", target, identifier, err)
	}
	return nil
}
