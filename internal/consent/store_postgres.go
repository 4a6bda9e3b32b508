package consent

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	id "carelink/pkg/domain"
)

// PostgresStore keeps the consent ledger in PostgreSQL. Rows are never
// deleted; revocation stamps revoked_at on every matching purpose row.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, consent Record) error {
	query := `
		INSERT INTO consents (child_id, guardian_id, purpose, granted_at, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var expiresAt sql.NullTime
	if !consent.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: consent.ExpiresAt, Valid: true}
	}
	var revokedAt sql.NullTime
	if consent.RevokedAt != nil {
		revokedAt = sql.NullTime{Time: *consent.RevokedAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		consent.ChildID, consent.GuardianID, consent.Purpose,
		consent.GrantedAt, expiresAt, revokedAt,
	)
	if err != nil {
		return fmt.Errorf("save consent: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByChild(ctx context.Context, childID id.ChildID) ([]Record, error) {
	query := `
		SELECT child_id, guardian_id, purpose, granted_at, expires_at, revoked_at
		FROM consents
		WHERE child_id = $1
		ORDER BY granted_at
	`
	rows, err := s.db.QueryContext(ctx, query, childID)
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r         Record
			expiresAt sql.NullTime
			revokedAt sql.NullTime
		)
		if err := rows.Scan(&r.ChildID, &r.GuardianID, &r.Purpose, &r.GrantedAt, &expiresAt, &revokedAt); err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		if expiresAt.Valid {
			r.ExpiresAt = expiresAt.Time
		}
		if revokedAt.Valid {
			t := revokedAt.Time
			r.RevokedAt = &t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consents: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Revoke(ctx context.Context, childID id.ChildID, purpose Purpose, revokedAt time.Time) error {
	query := `
		UPDATE consents
		SET revoked_at = $3
		WHERE child_id = $1 AND purpose = $2 AND revoked_at IS NULL
	`
	if _, err := s.db.ExecContext(ctx, query, childID, purpose, revokedAt); err != nil {
		return fmt.Errorf("revoke consent: %w", err)
	}
	return nil
}
