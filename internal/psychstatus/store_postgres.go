package psychstatus

import (
	"context"
	"database/sql"
	"fmt"

	id "carelink/pkg/domain"
)

// PostgresStore keeps the risk-status log in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO psych_status_entries (child_id, level, note, recorded_by, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query, e.ChildID, e.Level, e.Note, e.RecordedBy, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("append risk status: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByChild(ctx context.Context, childID id.ChildID) ([]Entry, error) {
	query := `
		SELECT child_id, level, note, recorded_by, recorded_at
		FROM psych_status_entries
		WHERE child_id = $1
		ORDER BY recorded_at
	`
	rows, err := s.db.QueryContext(ctx, query, childID)
	if err != nil {
		return nil, fmt.Errorf("list risk statuses: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ChildID, &e.Level, &e.Note, &e.RecordedBy, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan risk status: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate risk statuses: %w", err)
	}
	return out, nil
}
