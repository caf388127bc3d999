package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Violation is one integrity problem found by CheckIntegrity.
type Violation struct {
	Table  string
	RowID  int64
	Parent string
	Detail string
}

func (v Violation) String() string {
	if v.Parent != "" {
		return fmt.Sprintf("%s row %d references missing %s row", v.Table, v.RowID, v.Parent)
	}
	return fmt.Sprintf("%s: %s", v.Table, v.Detail)
}

// CheckIntegrity reports foreign key violations and contacts that have no
// profile. An empty result means the store is consistent.
func (s *Store) CheckIntegrity(ctx context.Context) ([]Violation, error) {
	var out []Violation

	rows, err := s.db.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return nil, fmt.Errorf("foreign key check: %w", err)
	}
	for rows.Next() {
		var v Violation
		var rowID sql.NullInt64
		var fkid int64
		if err := rows.Scan(&v.Table, &rowID, &v.Parent, &fkid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan foreign key violation: %w", err)
		}
		v.RowID = rowID.Int64
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	orphans, err := s.db.QueryContext(ctx, `
		SELECT c.rowid, c.id FROM contact c
		LEFT JOIN profile p ON p.id = c.id
		WHERE p.id IS NULL
		ORDER BY c.id`)
	if err != nil {
		if isSQLiteError(err, "no such table") {
			return out, nil
		}
		return nil, fmt.Errorf("contact profile check: %w", err)
	}
	defer orphans.Close()
	for orphans.Next() {
		var rowID int64
		var id string
		if err := orphans.Scan(&rowID, &id); err != nil {
			return nil, fmt.Errorf("scan contact without profile: %w", err)
		}
		out = append(out, Violation{
			Table:  "contact",
			RowID:  rowID,
			Detail: "contact " + id + " has no profile",
		})
	}
	return out, orphans.Err()
}
