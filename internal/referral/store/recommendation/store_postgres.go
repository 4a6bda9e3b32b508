package recommendation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"carelink/internal/referral/models"
	id "carelink/pkg/domain"
	"carelink/pkg/platform/sentinel"
)

// PostgresStore persists recommendation batches in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed recommendation store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recommendationColumns = `id, referral_id, institution_id, score, reason, rank, selected, created_at`

// SaveAll replaces the referral's batch in one transaction so a
// re-recommendation never leaves a mixed set behind.
func (s *PostgresStore) SaveAll(ctx context.Context, recs []*models.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	referralID := recs[0].ReferralID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save recommendations: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM recommendations WHERE referral_id = $1`, string(referralID)); err != nil {
		return fmt.Errorf("clear previous recommendations: %w", err)
	}
	insert := `
		INSERT INTO recommendations (` + recommendationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, rec := range recs {
		if _, err := tx.ExecContext(ctx, insert,
			string(rec.ID), string(rec.ReferralID), string(rec.InstitutionID),
			rec.Score, rec.Reason, rec.Rank, rec.Selected, rec.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert recommendation: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save recommendations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, rec *models.Recommendation) error {
	query := `
		INSERT INTO recommendations (` + recommendationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET selected = EXCLUDED.selected
	`
	_, err := s.db.ExecContext(ctx, query,
		string(rec.ID), string(rec.ReferralID), string(rec.InstitutionID),
		rec.Score, rec.Reason, rec.Rank, rec.Selected, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save recommendation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByReferral(ctx context.Context, referralID id.ReferralID) ([]*models.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE referral_id = $1 ORDER BY rank`
	rows, err := s.db.QueryContext(ctx, query, string(referralID))
	if err != nil {
		return nil, fmt.Errorf("find recommendations by referral: %w", err)
	}
	defer rows.Close()

	var out []*models.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recommendations: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, recID id.RecommendationID) (*models.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE id = $1`
	rec, err := scanRecommendation(s.db.QueryRowContext(ctx, query, string(recID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find recommendation by id: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) FindSelectedByReferral(ctx context.Context, referralID id.ReferralID) (*models.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE referral_id = $1 AND selected`
	rec, err := scanRecommendation(s.db.QueryRowContext(ctx, query, string(referralID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find selected recommendation: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) DeleteByReferral(ctx context.Context, referralID id.ReferralID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recommendations WHERE referral_id = $1`, string(referralID)); err != nil {
		return fmt.Errorf("delete recommendations by referral: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecommendation(row rowScanner) (*models.Recommendation, error) {
	var (
		rec                              models.Recommendation
		recID, referralID, institutionID string
	)
	if err := row.Scan(&recID, &referralID, &institutionID, &rec.Score, &rec.Reason, &rec.Rank, &rec.Selected, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.ID = id.RecommendationID(recID)
	rec.ReferralID = id.ReferralID(referralID)
	rec.InstitutionID = id.InstitutionID(institutionID)
	return &rec, nil
}
