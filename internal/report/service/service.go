package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"carelink/internal/audit"
	"carelink/internal/report/metrics"
	"carelink/internal/report/models"
	"carelink/internal/report/ports"
	"carelink/internal/report/store/report"
	id "carelink/pkg/domain"
	dErrors "carelink/pkg/domain-errors"
	"carelink/pkg/platform/sentinel"
	"carelink/pkg/requestcontext"
)

// ReportStore is the persistence surface the report workflow consumes.
type ReportStore interface {
	Create(ctx context.Context, r *models.SessionReport) error
	Update(ctx context.Context, r *models.SessionReport) error
	FindByID(ctx context.Context, reportID id.ReportID) (*models.SessionReport, error)
	FindByReferralAndSession(ctx context.Context, referralID id.ReferralID, sessionNumber int) (*models.SessionReport, error)
	FindByReferral(ctx context.Context, referralID id.ReferralID) ([]*models.SessionReport, error)
	FindByChild(ctx context.Context, childID id.ChildID) ([]*models.SessionReport, error)
	FindByCounselor(ctx context.Context, counselorID id.CounselorID) ([]*models.SessionReport, error)
	List(ctx context.Context, f report.ListFilter) ([]*models.SessionReport, int, error)
	NextSessionNumber(ctx context.Context, referralID id.ReferralID) (int, error)
	CountByReferral(ctx context.Context, referralID id.ReferralID) (int, error)
}

// Service orchestrates the session-report approval workflow. The aggregate
// owns the state machine; this layer owns cross-aggregate rules (session
// uniqueness) and actor authorization.
type Service struct {
	reports    ReportStore
	authorizer ports.GuardianAuthorizer
	auditor    audit.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
}

type Deps struct {
	Reports    ReportStore
	Authorizer ports.GuardianAuthorizer
	Auditor    audit.Publisher
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

func New(deps Deps) *Service {
	if deps.Auditor == nil {
		deps.Auditor = audit.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		reports:    deps.Reports,
		authorizer: deps.Authorizer,
		auditor:    deps.Auditor,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		tracer:     otel.Tracer("carelink/report"),
	}
}

// CreateReport constructs a DRAFT report after checking that the session
// number is not already taken for the referral. A zero SessionNumber means
// "next in sequence". The check-then-create window is closed by the store's
// unique constraint; a constraint hit maps to the same error code.
func (s *Service) CreateReport(ctx context.Context, p models.NewParams) (*models.SessionReport, error) {
	ctx, span := s.tracer.Start(ctx, "report.Create")
	defer span.End()

	if p.SessionNumber == 0 {
		next, err := s.reports.NextSessionNumber(ctx, p.ReferralID)
		if err != nil {
			return nil, err
		}
		p.SessionNumber = next
	}

	if _, err := s.reports.FindByReferralAndSession(ctx, p.ReferralID, p.SessionNumber); err == nil {
		return nil, dErrors.Newf(dErrors.CodeDuplicateSession, "session %d already has a report for referral %s", p.SessionNumber, p.ReferralID)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	p.ID = id.NewReportID()
	r, err := models.New(p, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.reports.Create(ctx, r); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeDuplicateSession, "session %d already has a report for referral %s", p.SessionNumber, p.ReferralID)
		}
		return nil, err
	}

	s.metrics.IncrementCreated()
	s.auditor.Emit(ctx, audit.Event{
		Entity:   "report",
		EntityID: r.ID.String(),
		Action:   "report.created",
	})
	s.logger.Info("session report created",
		"report_id", r.ID,
		"referral_id", r.ReferralID,
		"session", r.SessionNumber,
		"request_id", requestcontext.RequestID(ctx),
	)
	return r, nil
}

// SubmitReport hands a draft to the guardian pipeline. Only the counselor the
// report names may submit it.
func (s *Service) SubmitReport(ctx context.Context, reportID id.ReportID, counselorID id.CounselorID) (*models.SessionReport, error) {
	ctx, span := s.tracer.Start(ctx, "report.Submit")
	defer span.End()

	r, err := s.load(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if r.CounselorID != "" && r.CounselorID != counselorID {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the counselor who wrote the report can submit it")
	}
	if err := r.Submit(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.update(ctx, r); err != nil {
		return nil, err
	}

	s.metrics.IncrementTransition(string(models.StatusSubmitted))
	s.auditor.Emit(ctx, audit.Event{
		Entity:   "report",
		EntityID: r.ID.String(),
		Action:   "report.submitted",
	})
	return r, nil
}

// ReviewReport records that the guardian has read the report. The guardian to
// child relationship is verified before the transition runs.
func (s *Service) ReviewReport(ctx context.Context, reportID id.ReportID, guardianID id.GuardianID) (*models.SessionReport, error) {
	ctx, span := s.tracer.Start(ctx, "report.Review")
	defer span.End()

	r, err := s.load(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeGuardian(ctx, guardianID, r.ChildID); err != nil {
		return nil, err
	}
	if err := r.MarkReviewed(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.update(ctx, r); err != nil {
		return nil, err
	}

	s.metrics.IncrementTransition(string(models.StatusReviewed))
	s.auditor.Emit(ctx, audit.Event{
		Entity:   "report",
		EntityID: r.ID.String(),
		Action:   "report.reviewed",
	})
	return r, nil
}

// ApproveReport finalizes the report with the guardian's feedback.
func (s *Service) ApproveReport(ctx context.Context, reportID id.ReportID, guardianID id.GuardianID, feedback string) (*models.SessionReport, error) {
	ctx, span := s.tracer.Start(ctx, "report.Approve")
	defer span.End()

	r, err := s.load(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeGuardian(ctx, guardianID, r.ChildID); err != nil {
		return nil, err
	}
	if err := r.Approve(feedback, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.update(ctx, r); err != nil {
		return nil, err
	}

	s.metrics.IncrementTransition(string(models.StatusApproved))
	s.auditor.Emit(ctx, audit.Event{
		Entity:   "report",
		EntityID: r.ID.String(),
		Action:   "report.approved",
	})
	s.logger.Info("session report approved",
		"report_id", r.ID,
		"referral_id", r.ReferralID,
		"guardian_id", guardianID,
	)
	return r, nil
}

// GetReport loads one report.
func (s *Service) GetReport(ctx context.Context, reportID id.ReportID) (*models.SessionReport, error) {
	return s.load(ctx, reportID)
}

func (s *Service) ReportsByReferral(ctx context.Context, referralID id.ReferralID) ([]*models.SessionReport, error) {
	return s.reports.FindByReferral(ctx, referralID)
}

func (s *Service) ReportsByChild(ctx context.Context, childID id.ChildID) ([]*models.SessionReport, error) {
	return s.reports.FindByChild(ctx, childID)
}

func (s *Service) ReportsByCounselor(ctx context.Context, counselorID id.CounselorID) ([]*models.SessionReport, error) {
	return s.reports.FindByCounselor(ctx, counselorID)
}

func (s *Service) ListReports(ctx context.Context, f report.ListFilter) ([]*models.SessionReport, int, error) {
	return s.reports.List(ctx, f)
}

func (s *Service) NextSessionNumber(ctx context.Context, referralID id.ReferralID) (int, error) {
	return s.reports.NextSessionNumber(ctx, referralID)
}

func (s *Service) CountByReferral(ctx context.Context, referralID id.ReferralID) (int, error) {
	return s.reports.CountByReferral(ctx, referralID)
}

func (s *Service) authorizeGuardian(ctx context.Context, guardianID id.GuardianID, childID id.ChildID) error {
	if s.authorizer == nil {
		return dErrors.New(dErrors.CodeInternal, "guardian authorizer is not configured")
	}
	if err := s.authorizer.Authorize(ctx, guardianID, childID); err != nil {
		s.metrics.IncrementAuthDenial()
		if dErrors.Is(err, dErrors.CodeUnauthorized) || dErrors.Is(err, dErrors.CodeForbidden) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, "guardian is not authorized for this child")
	}
	return nil
}

func (s *Service) load(ctx context.Context, reportID id.ReportID) (*models.SessionReport, error) {
	r, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "report %s not found", reportID)
		}
		return nil, err
	}
	return r, nil
}

func (s *Service) update(ctx context.Context, r *models.SessionReport) error {
	if err := s.reports.Update(ctx, r); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Newf(dErrors.CodeNotFound, "report %s not found", r.ID)
		case errors.Is(err, sentinel.ErrConflict):
			return dErrors.Newf(dErrors.CodeConcurrentModification, "report %s was modified concurrently, reload and retry", r.ID)
		}
		return err
	}
	return nil
}
