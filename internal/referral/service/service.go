package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"carelink/internal/audit"
	"carelink/internal/referral/metrics"
	"carelink/internal/referral/models"
	"carelink/internal/referral/ports"
	"carelink/internal/referral/store/request"
	id "carelink/pkg/domain"
	dErrors "carelink/pkg/domain-errors"
	"carelink/pkg/platform/sentinel"
	"carelink/pkg/requestcontext"
)

// ReferralStore is the persistence surface the referral workflow consumes.
// Satisfied by the in-memory and Postgres stores.
type ReferralStore interface {
	Create(ctx context.Context, r *models.Referral) error
	Update(ctx context.Context, r *models.Referral) error
	FindByID(ctx context.Context, referralID id.ReferralID) (*models.Referral, error)
	FindByChild(ctx context.Context, childID id.ChildID) ([]*models.Referral, error)
	FindByGuardian(ctx context.Context, guardianID id.GuardianID) ([]*models.Referral, error)
	FindByInstitution(ctx context.Context, institutionID id.InstitutionID) ([]*models.Referral, error)
	FindByCounselor(ctx context.Context, counselorID id.CounselorID) ([]*models.Referral, error)
	List(ctx context.Context, f request.ListFilter) ([]*models.Referral, int, error)
	CountByGuardianAndStatus(ctx context.Context, guardianID id.GuardianID, status models.Status) (int, error)
	FindRecentByGuardian(ctx context.Context, guardianID id.GuardianID, since time.Time) ([]*models.Referral, error)
}

// RecommendationStore persists AI recommendation batches.
type RecommendationStore interface {
	SaveAll(ctx context.Context, recs []*models.Recommendation) error
	Save(ctx context.Context, rec *models.Recommendation) error
	FindByReferral(ctx context.Context, referralID id.ReferralID) ([]*models.Recommendation, error)
	FindSelectedByReferral(ctx context.Context, referralID id.ReferralID) (*models.Recommendation, error)
}

// ConsentChecker verifies the processing consent required before a referral is
// accepted. Implemented by the consent ledger.
type ConsentChecker interface {
	Require(ctx context.Context, childID id.ChildID, purpose string, now time.Time) error
}

// ConsentPurposeReferral is the ledger purpose a referral creation requires.
const ConsentPurposeReferral = "counseling_referral"

// Service orchestrates the referral lifecycle. Domain rules live on the
// aggregate; this layer loads, calls the transition, persists, and handles the
// collaborators around creation.
type Service struct {
	referrals       ReferralStore
	recommendations RecommendationStore
	consents        ConsentChecker
	recommender     ports.Recommender
	reportGen       ports.ReportGenerator
	assessments     ports.AssessmentLookup
	auditor         audit.Publisher
	metrics         *metrics.Metrics
	logger          *slog.Logger
	tracer          trace.Tracer
}

// Deps carries the collaborators a Service needs. Consents, Recommender,
// ReportGen and Assessments may be nil; the matching step is then skipped.
type Deps struct {
	Referrals       ReferralStore
	Recommendations RecommendationStore
	Consents        ConsentChecker
	Recommender     ports.Recommender
	ReportGen       ports.ReportGenerator
	Assessments     ports.AssessmentLookup
	Auditor         audit.Publisher
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
}

func New(deps Deps) *Service {
	if deps.Auditor == nil {
		deps.Auditor = audit.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		referrals:       deps.Referrals,
		recommendations: deps.Recommendations,
		consents:        deps.Consents,
		recommender:     deps.Recommender,
		reportGen:       deps.ReportGen,
		assessments:     deps.Assessments,
		auditor:         deps.Auditor,
		metrics:         deps.Metrics,
		logger:          deps.Logger,
		tracer:          otel.Tracer("carelink/referral"),
	}
}

// CreateParams is the intake payload for a new referral.
type CreateParams struct {
	ChildID    id.ChildID
	GuardianID id.GuardianID
	Form       models.ReferralForm
}

// CreateReferral validates and persists a PENDING referral, then kicks off
// enrichment in the background. Enrichment failures are logged; they never
// fail the creation.
func (s *Service) CreateReferral(ctx context.Context, p CreateParams) (*models.Referral, error) {
	ctx, span := s.tracer.Start(ctx, "referral.Create")
	defer span.End()

	now := requestcontext.Now(ctx)
	if s.consents != nil {
		if err := s.consents.Require(ctx, p.ChildID, ConsentPurposeReferral, now); err != nil {
			return nil, err
		}
	}

	r, err := models.New(id.NewReferralID(), p.ChildID, p.GuardianID, p.Form, now)
	if err != nil {
		return nil, err
	}
	if err := s.referrals.Create(ctx, r); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "referral %s already exists", r.ID)
		}
		return nil, err
	}

	s.metrics.IncrementCreated(string(r.CareType))
	s.auditor.Emit(ctx, audit.Event{
		Entity:   "referral",
		EntityID: r.ID.String(),
		Action:   "referral.created",
		Detail:   "center " + r.CenterName,
	})
	s.logger.Info("referral created",
		"referral_id", r.ID,
		"child_id", r.ChildID,
		"care_type", r.CareType,
		"request_id", requestcontext.RequestID(ctx),
	)

	go s.enrich(context.WithoutCancel(ctx), *r)
	return r, nil
}

// enrich runs the post-creation collaborator calls: assessment backfill, the
// AI recommendation request, and the integrated-report kickoff. Each step is
// independent; a failure is logged and the rest still run.
func (s *Service) enrich(ctx context.Context, r models.Referral) {
	rc := ports.RecommendationContext{
		ReferralID:        r.ID,
		ChildID:           r.ChildID,
		CareType:          string(r.CareType),
		CenterName:        r.CenterName,
		PsychologicalInfo: r.Form.PsychologicalInfo,
		RequestMotivation: r.Form.RequestMotivation,
	}

	if s.assessments != nil && len(r.Form.TestResults) == 0 {
		assessment, err := s.assessments.LatestByChild(ctx, r.ChildID)
		switch {
		case err != nil:
			s.metrics.IncrementEnrichment("assessment", "error")
			s.logger.Warn("assessment backfill failed", "referral_id", r.ID, "error", err)
		case assessment != nil:
			s.metrics.IncrementEnrichment("assessment", "ok")
			rc.LatestAssessment = assessment
		}
	}

	if s.recommender != nil {
		started := time.Now()
		candidates, err := s.recommender.Recommend(ctx, rc)
		s.metrics.ObserveRecommendLatency(time.Since(started))
		if err != nil {
			s.metrics.IncrementEnrichment("recommender", "error")
			s.logger.Warn("recommendation request failed", "referral_id", r.ID, "error", err)
		} else if err := s.AttachRecommendations(ctx, r.ID, candidates); err != nil {
			s.metrics.IncrementEnrichment("recommender", "error")
			s.logger.Warn("attaching recommendations failed", "referral_id", r.ID, "error", err)
		} else {
			s.metrics.IncrementEnrichment("recommender", "ok")
		}
	}

	if s.reportGen != nil {
		if err := s.reportGen.Generate(ctx, r.ID, r.ChildID); err != nil {
			s.metrics.IncrementEnrichment("report_generator", "error")
			s.logger.Warn("integrated-report kickoff failed", "referral_id", r.ID, "error", err)
		} else {
			s.metrics.IncrementEnrichment("report_generator", "ok")
			s.setIntegratedReportStatus(ctx, r.ID, models.IntegratedReportProcessing)
		}
	}
}

// AttachRecommendations persists an AI result batch and marks the referral
// RECOMMENDED. The batch replaces any previous one for the referral.
func (s *Service) AttachRecommendations(ctx context.Context, referralID id.ReferralID, candidates []ports.RecommendationCandidate) error {
	ctx, span := s.tracer.Start(ctx, "referral.AttachRecommendations")
	defer span.End()

	if len(candidates) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "recommendation batch is empty")
	}
	r, err := s.load(ctx, referralID)
	if err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	recs := make([]*models.Recommendation, 0, len(candidates))
	for _, c := range candidates {
		rec, err := models.NewRecommendation(id.NewRecommendationID(), referralID, c.InstitutionID, c.Score, c.Reason, c.Rank, now)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}
	if err := s.recommendations.SaveAll(ctx, recs); err != nil {
		return err
	}

	if err := r.MarkRecommended(now); err != nil {
		return err
	}
	if err := s.update(ctx, r); err != nil {
		return err
	}

	s.metrics.IncrementTransition(string(models.StatusRecommended))
	s.auditor.Emit(ctx, audit.Event{
		Entity:   "referral",
		EntityID: r.ID.String(),
		Action:   "referral.recommended",
	})
	return nil
}

// MatchDirect is the legacy direct-match path: institution and counselor bound
// straight from PENDING, no recommendation step.
//
// Deprecated: new intake frontends use SelectRecommendedInstitution.
func (s *Service) MatchDirect(ctx context.Context, referralID id.ReferralID, institutionID id.InstitutionID, counselorID id.CounselorID) (*models.Referral, error) {
	return s.transition(ctx, referralID, models.StatusMatched, "referral.matched", func(r *models.Referral, now time.Time) error {
		return r.MatchWith(institutionID, counselorID, now)
	})
}

// StartCounseling moves a matched referral into active counseling.
func (s *Service) StartCounseling(ctx context.Context, referralID id.ReferralID) (*models.Referral, error) {
	return s.transition(ctx, referralID, models.StatusInProgress, "referral.started", func(r *models.Referral, now time.Time) error {
		return r.StartCounseling(now)
	})
}

// CompleteCounseling closes the referral.
func (s *Service) CompleteCounseling(ctx context.Context, referralID id.ReferralID) (*models.Referral, error) {
	return s.transition(ctx, referralID, models.StatusCompleted, "referral.completed", func(r *models.Referral, now time.Time) error {
		return r.CompleteCounseling(now)
	})
}

// RejectReferral closes the referral without counseling.
func (s *Service) RejectReferral(ctx context.Context, referralID id.ReferralID, reason string) (*models.Referral, error) {
	return s.transition(ctx, referralID, models.StatusRejected, "referral.rejected", func(r *models.Referral, now time.Time) error {
		return r.Reject(reason, now)
	})
}

// UpdateReferralForm replaces the intake document while still PENDING.
func (s *Service) UpdateReferralForm(ctx context.Context, referralID id.ReferralID, form models.ReferralForm) (*models.Referral, error) {
	ctx, span := s.tracer.Start(ctx, "referral.UpdateForm")
	defer span.End()

	r, err := s.load(ctx, referralID)
	if err != nil {
		return nil, err
	}
	if err := r.UpdateForm(form, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.update(ctx, r); err != nil {
		return nil, err
	}
	s.auditor.Emit(ctx, audit.Event{
		Entity:   "referral",
		EntityID: r.ID.String(),
		Action:   "referral.form_updated",
	})
	return r, nil
}

// CompleteIntegratedReport records the generated document location. Called by
// the generator's webhook.
func (s *Service) CompleteIntegratedReport(ctx context.Context, referralID id.ReferralID, s3Key string) error {
	r, err := s.load(ctx, referralID)
	if err != nil {
		return err
	}
	r.AttachIntegratedReport(s3Key, requestcontext.Now(ctx))
	return s.update(ctx, r)
}

// FailIntegratedReport records a failed generation attempt.
func (s *Service) FailIntegratedReport(ctx context.Context, referralID id.ReferralID) error {
	r, err := s.load(ctx, referralID)
	if err != nil {
		return err
	}
	r.SetIntegratedReportStatus(models.IntegratedReportFailed, requestcontext.Now(ctx))
	return s.update(ctx, r)
}

// GetReferral loads one referral.
func (s *Service) GetReferral(ctx context.Context, referralID id.ReferralID) (*models.Referral, error) {
	return s.load(ctx, referralID)
}

// GetRecommendations returns the AI batch for a referral, rank order.
func (s *Service) GetRecommendations(ctx context.Context, referralID id.ReferralID) ([]*models.Recommendation, error) {
	if _, err := s.load(ctx, referralID); err != nil {
		return nil, err
	}
	return s.recommendations.FindByReferral(ctx, referralID)
}

func (s *Service) ListReferrals(ctx context.Context, f request.ListFilter) ([]*models.Referral, int, error) {
	return s.referrals.List(ctx, f)
}

func (s *Service) ReferralsByChild(ctx context.Context, childID id.ChildID) ([]*models.Referral, error) {
	return s.referrals.FindByChild(ctx, childID)
}

func (s *Service) ReferralsByGuardian(ctx context.Context, guardianID id.GuardianID) ([]*models.Referral, error) {
	return s.referrals.FindByGuardian(ctx, guardianID)
}

func (s *Service) ReferralsByInstitution(ctx context.Context, institutionID id.InstitutionID) ([]*models.Referral, error) {
	return s.referrals.FindByInstitution(ctx, institutionID)
}

func (s *Service) ReferralsByCounselor(ctx context.Context, counselorID id.CounselorID) ([]*models.Referral, error) {
	return s.referrals.FindByCounselor(ctx, counselorID)
}

func (s *Service) CountByGuardianAndStatus(ctx context.Context, guardianID id.GuardianID, status models.Status) (int, error) {
	return s.referrals.CountByGuardianAndStatus(ctx, guardianID, status)
}

func (s *Service) RecentByGuardian(ctx context.Context, guardianID id.GuardianID, since time.Time) ([]*models.Referral, error) {
	return s.referrals.FindRecentByGuardian(ctx, guardianID, since)
}

// transition runs the load → mutate → persist cycle shared by the simple
// lifecycle operations.
func (s *Service) transition(ctx context.Context, referralID id.ReferralID, target models.Status, action string, mutate func(*models.Referral, time.Time) error) (*models.Referral, error) {
	ctx, span := s.tracer.Start(ctx, "referral."+action)
	defer span.End()

	r, err := s.load(ctx, referralID)
	if err != nil {
		return nil, err
	}
	if err := mutate(r, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.update(ctx, r); err != nil {
		return nil, err
	}
	s.metrics.IncrementTransition(string(target))
	s.auditor.Emit(ctx, audit.Event{
		Entity:   "referral",
		EntityID: r.ID.String(),
		Action:   action,
	})
	s.logger.Info("referral transition",
		"referral_id", r.ID,
		"status", r.Status,
		"request_id", requestcontext.RequestID(ctx),
	)
	return r, nil
}

func (s *Service) load(ctx context.Context, referralID id.ReferralID) (*models.Referral, error) {
	r, err := s.referrals.FindByID(ctx, referralID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "referral %s not found", referralID)
		}
		return nil, err
	}
	return r, nil
}

func (s *Service) update(ctx context.Context, r *models.Referral) error {
	if err := s.referrals.Update(ctx, r); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Newf(dErrors.CodeNotFound, "referral %s not found", r.ID)
		case errors.Is(err, sentinel.ErrConflict):
			return dErrors.Newf(dErrors.CodeConcurrentModification, "referral %s was modified concurrently, reload and retry", r.ID)
		}
		return err
	}
	return nil
}

// setIntegratedReportStatus is the best-effort variant used from enrichment.
func (s *Service) setIntegratedReportStatus(ctx context.Context, referralID id.ReferralID, status models.IntegratedReportStatus) {
	r, err := s.load(ctx, referralID)
	if err != nil {
		s.logger.Warn("integrated-report status update failed", "referral_id", referralID, "error", err)
		return
	}
	r.SetIntegratedReportStatus(status, requestcontext.Now(ctx))
	if err := s.update(ctx, r); err != nil {
		s.logger.Warn("integrated-report status update failed", "referral_id", referralID, "error", err)
	}
}
