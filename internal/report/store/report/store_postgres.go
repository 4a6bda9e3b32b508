package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"carelink/internal/report/models"
	id "carelink/pkg/domain"
	"carelink/pkg/platform/sentinel"
)

// PostgresStore persists session reports in PostgreSQL. The unique index on
// (referral_id, session_number) is the authoritative duplicate-session guard;
// the service-level lookup only provides the friendlier error message.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed session report store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const reportColumns = `
	id, referral_id, child_id, counselor_id, institution_id,
	session_number, report_date, center_name, counselor_signature,
	counsel_reason, counsel_content, center_feedback, home_feedback,
	attachment_urls, status, submitted_at, reviewed_at, guardian_feedback,
	version, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, r *models.SessionReport) error {
	attachments, err := json.Marshal(r.AttachmentURLs)
	if err != nil {
		return fmt.Errorf("marshal attachment urls: %w", err)
	}
	query := `
		INSERT INTO session_reports (` + reportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`
	_, err = s.db.ExecContext(ctx, query,
		string(r.ID), string(r.ReferralID), string(r.ChildID),
		nullString(string(r.CounselorID)), nullString(string(r.InstitutionID)),
		r.SessionNumber, r.ReportDate, r.CenterName, nullString(r.CounselorSignature),
		r.CounselReason, r.CounselContent, nullString(r.CenterFeedback), nullString(r.HomeFeedback),
		attachments, string(r.Status), r.SubmittedAt, r.ReviewedAt, nullString(r.GuardianFeedback),
		r.Version, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create session report: %w", err)
	}
	return nil
}

// Update writes the aggregate back with a compare-and-swap on version.
func (s *PostgresStore) Update(ctx context.Context, r *models.SessionReport) error {
	attachments, err := json.Marshal(r.AttachmentURLs)
	if err != nil {
		return fmt.Errorf("marshal attachment urls: %w", err)
	}
	query := `
		UPDATE session_reports SET
			status = $2, submitted_at = $3, reviewed_at = $4, guardian_feedback = $5,
			center_feedback = $6, home_feedback = $7, attachment_urls = $8,
			version = version + 1, updated_at = $9
		WHERE id = $1 AND version = $10
	`
	result, err := s.db.ExecContext(ctx, query,
		string(r.ID), string(r.Status), r.SubmittedAt, r.ReviewedAt, nullString(r.GuardianFeedback),
		nullString(r.CenterFeedback), nullString(r.HomeFeedback), attachments,
		r.UpdatedAt, r.Version,
	)
	if err != nil {
		return fmt.Errorf("update session report: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session report rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM session_reports WHERE id = $1)`, string(r.ID)).Scan(&exists); err != nil {
			return fmt.Errorf("update session report existence check: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	r.Version++
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, reportID id.ReportID) (*models.SessionReport, error) {
	query := `SELECT ` + reportColumns + ` FROM session_reports WHERE id = $1`
	r, err := scanReport(s.db.QueryRowContext(ctx, query, string(reportID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find session report by id: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) FindByReferralAndSession(ctx context.Context, referralID id.ReferralID, sessionNumber int) (*models.SessionReport, error) {
	query := `SELECT ` + reportColumns + ` FROM session_reports WHERE referral_id = $1 AND session_number = $2`
	r, err := scanReport(s.db.QueryRowContext(ctx, query, string(referralID), sessionNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find session report by referral and session: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) FindByReferral(ctx context.Context, referralID id.ReferralID) ([]*models.SessionReport, error) {
	return s.queryMany(ctx, `SELECT `+reportColumns+` FROM session_reports WHERE referral_id = $1 ORDER BY session_number`, string(referralID))
}

func (s *PostgresStore) FindByChild(ctx context.Context, childID id.ChildID) ([]*models.SessionReport, error) {
	return s.queryMany(ctx, `SELECT `+reportColumns+` FROM session_reports WHERE child_id = $1 ORDER BY created_at DESC`, string(childID))
}

func (s *PostgresStore) FindByCounselor(ctx context.Context, counselorID id.CounselorID) ([]*models.SessionReport, error) {
	return s.queryMany(ctx, `SELECT `+reportColumns+` FROM session_reports WHERE counselor_id = $1 ORDER BY created_at DESC`, string(counselorID))
}

func (s *PostgresStore) List(ctx context.Context, f ListFilter) ([]*models.SessionReport, int, error) {
	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_reports WHERE ($1 = '' OR status = $1)`, string(f.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count session reports: %w", err)
	}
	query := `
		SELECT ` + reportColumns + ` FROM session_reports
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`
	reports, err := s.queryMany(ctx, query, string(f.Status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

func (s *PostgresStore) Delete(ctx context.Context, reportID id.ReportID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM session_reports WHERE id = $1`, string(reportID))
	if err != nil {
		return fmt.Errorf("delete session report: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session report rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) NextSessionNumber(ctx context.Context, referralID id.ReferralID) (int, error) {
	var next int
	query := `SELECT COALESCE(MAX(session_number), 0) + 1 FROM session_reports WHERE referral_id = $1`
	if err := s.db.QueryRowContext(ctx, query, string(referralID)).Scan(&next); err != nil {
		return 0, fmt.Errorf("next session number: %w", err)
	}
	return next, nil
}

func (s *PostgresStore) CountByReferral(ctx context.Context, referralID id.ReferralID) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_reports WHERE referral_id = $1`, string(referralID)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count session reports by referral: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) queryMany(ctx context.Context, query string, args ...any) ([]*models.SessionReport, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query session reports: %w", err)
	}
	defer rows.Close()

	var out []*models.SessionReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session report: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session reports: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.SessionReport, error) {
	var (
		r                             models.SessionReport
		reportID, referralID, childID string
		counselorID, institutionID    sql.NullString
		signature, centerFB, homeFB   sql.NullString
		guardianFeedback              sql.NullString
		attachments                   []byte
		status                        string
		submittedAt, reviewedAt       sql.NullTime
	)
	if err := row.Scan(
		&reportID, &referralID, &childID, &counselorID, &institutionID,
		&r.SessionNumber, &r.ReportDate, &r.CenterName, &signature,
		&r.CounselReason, &r.CounselContent, &centerFB, &homeFB,
		&attachments, &status, &submittedAt, &reviewedAt, &guardianFeedback,
		&r.Version, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &r.AttachmentURLs); err != nil {
			return nil, fmt.Errorf("unmarshal attachment urls: %w", err)
		}
	}
	r.ID = id.ReportID(reportID)
	r.ReferralID = id.ReferralID(referralID)
	r.ChildID = id.ChildID(childID)
	r.CounselorID = id.CounselorID(counselorID.String)
	r.InstitutionID = id.InstitutionID(institutionID.String)
	r.CounselorSignature = signature.String
	r.CenterFeedback = centerFB.String
	r.HomeFeedback = homeFB.String
	r.GuardianFeedback = guardianFeedback.String
	r.Status = models.Status(status)
	if submittedAt.Valid {
		r.SubmittedAt = &submittedAt.Time
	}
	if reviewedAt.Valid {
		r.ReviewedAt = &reviewedAt.Time
	}
	return models.Restore(r), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	type sqlState interface{ SQLState() string }
	var state sqlState
	if errors.As(err, &state) {
		return state.SQLState() == "23505"
	}
	return false
}
