package request

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"carelink/internal/referral/models"
	id "carelink/pkg/domain"
	"carelink/pkg/platform/sentinel"
)

// PostgresStore persists referrals in PostgreSQL. The intake form is stored
// as jsonb; the denormalized search columns are written from the aggregate's
// derived fields so they stay consistent with the document by construction.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed referral store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const referralColumns = `
	id, child_id, guardian_id, status, form, center_name, care_type, request_date,
	matched_institution_id, matched_counselor_id,
	integrated_report_s3_key, integrated_report_status, rejection_reason,
	version, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, r *models.Referral) error {
	formBytes, err := json.Marshal(r.Form)
	if err != nil {
		return fmt.Errorf("marshal referral form: %w", err)
	}
	query := `
		INSERT INTO referrals (` + referralColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = s.db.ExecContext(ctx, query,
		string(r.ID), string(r.ChildID), nullString(string(r.GuardianID)),
		string(r.Status), formBytes, r.CenterName, string(r.CareType), r.RequestDate,
		nullString(string(r.MatchedInstitutionID)), nullString(string(r.MatchedCounselorID)),
		nullString(r.IntegratedReportS3Key), nullString(string(r.IntegratedReportStatus)),
		nullString(r.RejectionReason),
		r.Version, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create referral: %w", err)
	}
	return nil
}

// Update writes the aggregate back with a compare-and-swap on version. A zero
// row count means the row is gone or someone else won the race; the caller
// distinguishes by re-reading.
func (s *PostgresStore) Update(ctx context.Context, r *models.Referral) error {
	formBytes, err := json.Marshal(r.Form)
	if err != nil {
		return fmt.Errorf("marshal referral form: %w", err)
	}
	query := `
		UPDATE referrals SET
			status = $2, form = $3, center_name = $4, care_type = $5, request_date = $6,
			matched_institution_id = $7, matched_counselor_id = $8,
			integrated_report_s3_key = $9, integrated_report_status = $10,
			rejection_reason = $11, version = version + 1, updated_at = $12
		WHERE id = $1 AND version = $13
	`
	result, err := s.db.ExecContext(ctx, query,
		string(r.ID), string(r.Status), formBytes, r.CenterName, string(r.CareType), r.RequestDate,
		nullString(string(r.MatchedInstitutionID)), nullString(string(r.MatchedCounselorID)),
		nullString(r.IntegratedReportS3Key), nullString(string(r.IntegratedReportStatus)),
		nullString(r.RejectionReason), r.UpdatedAt, r.Version,
	)
	if err != nil {
		return fmt.Errorf("update referral: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update referral rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM referrals WHERE id = $1)`, string(r.ID)).Scan(&exists); err != nil {
			return fmt.Errorf("update referral existence check: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	r.Version++
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, referralID id.ReferralID) (*models.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE id = $1`
	r, err := scanReferral(s.db.QueryRowContext(ctx, query, string(referralID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find referral by id: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) FindByChild(ctx context.Context, childID id.ChildID) ([]*models.Referral, error) {
	return s.queryMany(ctx, `SELECT `+referralColumns+` FROM referrals WHERE child_id = $1 ORDER BY created_at DESC`, string(childID))
}

func (s *PostgresStore) FindByGuardian(ctx context.Context, guardianID id.GuardianID) ([]*models.Referral, error) {
	return s.queryMany(ctx, `SELECT `+referralColumns+` FROM referrals WHERE guardian_id = $1 ORDER BY created_at DESC`, string(guardianID))
}

func (s *PostgresStore) FindByInstitution(ctx context.Context, institutionID id.InstitutionID) ([]*models.Referral, error) {
	return s.queryMany(ctx, `SELECT `+referralColumns+` FROM referrals WHERE matched_institution_id = $1 ORDER BY created_at DESC`, string(institutionID))
}

func (s *PostgresStore) FindByCounselor(ctx context.Context, counselorID id.CounselorID) ([]*models.Referral, error) {
	return s.queryMany(ctx, `SELECT `+referralColumns+` FROM referrals WHERE matched_counselor_id = $1 ORDER BY created_at DESC`, string(counselorID))
}

func (s *PostgresStore) List(ctx context.Context, f ListFilter) ([]*models.Referral, int, error) {
	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	var total int
	countQuery := `SELECT COUNT(*) FROM referrals WHERE ($1 = '' OR status = $1)`
	if err := s.db.QueryRowContext(ctx, countQuery, string(f.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count referrals: %w", err)
	}

	query := `
		SELECT ` + referralColumns + ` FROM referrals
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`
	referrals, err := s.queryMany(ctx, query, string(f.Status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return referrals, total, nil
}

func (s *PostgresStore) Delete(ctx context.Context, referralID id.ReferralID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM referrals WHERE id = $1`, string(referralID))
	if err != nil {
		return fmt.Errorf("delete referral: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete referral rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountByGuardianAndStatus(ctx context.Context, guardianID id.GuardianID, status models.Status) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM referrals WHERE guardian_id = $1 AND status = $2`
	if err := s.db.QueryRowContext(ctx, query, string(guardianID), string(status)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count referrals by guardian and status: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) FindRecentByGuardian(ctx context.Context, guardianID id.GuardianID, since time.Time) ([]*models.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE guardian_id = $1 AND created_at >= $2 ORDER BY created_at DESC`
	return s.queryMany(ctx, query, string(guardianID), since)
}

func (s *PostgresStore) queryMany(ctx context.Context, query string, args ...any) ([]*models.Referral, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query referrals: %w", err)
	}
	defer rows.Close()

	var out []*models.Referral
	for rows.Next() {
		r, err := scanReferral(rows)
		if err != nil {
			return nil, fmt.Errorf("scan referral: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referrals: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReferral(row rowScanner) (*models.Referral, error) {
	var (
		r                        models.Referral
		referralID, childID      string
		guardianID               sql.NullString
		status, careType         string
		formBytes                []byte
		matchedInstitution       sql.NullString
		matchedCounselor         sql.NullString
		integratedKey, intStatus sql.NullString
		rejectionReason          sql.NullString
	)
	if err := row.Scan(
		&referralID, &childID, &guardianID, &status, &formBytes,
		&r.CenterName, &careType, &r.RequestDate,
		&matchedInstitution, &matchedCounselor,
		&integratedKey, &intStatus, &rejectionReason,
		&r.Version, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(formBytes, &r.Form); err != nil {
		return nil, fmt.Errorf("unmarshal referral form: %w", err)
	}
	r.ID = id.ReferralID(referralID)
	r.ChildID = id.ChildID(childID)
	r.GuardianID = id.GuardianID(guardianID.String)
	r.Status = models.Status(status)
	r.CareType = models.CareType(careType)
	r.MatchedInstitutionID = id.InstitutionID(matchedInstitution.String)
	r.MatchedCounselorID = id.CounselorID(matchedCounselor.String)
	r.IntegratedReportS3Key = integratedKey.String
	r.IntegratedReportStatus = models.IntegratedReportStatus(intStatus.String)
	r.RejectionReason = rejectionReason.String
	return models.Restore(r), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueViolation matches PostgreSQL error code 23505 without binding the
// store to a specific driver error type.
func isUniqueViolation(err error) bool {
	type sqlState interface{ SQLState() string }
	var state sqlState
	if errors.As(err, &state) {
		return state.SQLState() == "23505"
	}
	return false
}
