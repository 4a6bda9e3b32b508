package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"carelink/internal/referral/models"
	"carelink/internal/referral/ports"
	"carelink/internal/referral/service"
	"carelink/internal/referral/store/request"
	id "carelink/pkg/domain"
	dErrors "carelink/pkg/domain-errors"
	"carelink/pkg/platform/httputil"
	"carelink/pkg/requestcontext"
)

// Service defines the interface for referral operations.
type Service interface {
	CreateReferral(ctx context.Context, p service.CreateParams) (*models.Referral, error)
	UpdateReferralForm(ctx context.Context, referralID id.ReferralID, form models.ReferralForm) (*models.Referral, error)
	AttachRecommendations(ctx context.Context, referralID id.ReferralID, candidates []ports.RecommendationCandidate) error
	SelectRecommendedInstitution(ctx context.Context, referralID id.ReferralID, institutionID id.InstitutionID) (*models.Referral, error)
	MatchDirect(ctx context.Context, referralID id.ReferralID, institutionID id.InstitutionID, counselorID id.CounselorID) (*models.Referral, error)
	StartCounseling(ctx context.Context, referralID id.ReferralID) (*models.Referral, error)
	CompleteCounseling(ctx context.Context, referralID id.ReferralID) (*models.Referral, error)
	RejectReferral(ctx context.Context, referralID id.ReferralID, reason string) (*models.Referral, error)
	ForceStatus(ctx context.Context, referralID id.ReferralID, newStatus models.Status, reason string) (*models.Referral, error)
	CompleteIntegratedReport(ctx context.Context, referralID id.ReferralID, s3Key string) error
	FailIntegratedReport(ctx context.Context, referralID id.ReferralID) error
	GetReferral(ctx context.Context, referralID id.ReferralID) (*models.Referral, error)
	GetRecommendations(ctx context.Context, referralID id.ReferralID) ([]*models.Recommendation, error)
	ListReferrals(ctx context.Context, f request.ListFilter) ([]*models.Referral, int, error)
	ReferralsByChild(ctx context.Context, childID id.ChildID) ([]*models.Referral, error)
	ReferralsByGuardian(ctx context.Context, guardianID id.GuardianID) ([]*models.Referral, error)
	ReferralsByInstitution(ctx context.Context, institutionID id.InstitutionID) ([]*models.Referral, error)
	ReferralsByCounselor(ctx context.Context, counselorID id.CounselorID) ([]*models.Referral, error)
}

// Handler wires referral endpoints to the referral service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts referral endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/referrals", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Route("/{referralID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Put("/form", h.HandleUpdateForm)
			r.Get("/recommendations", h.HandleGetRecommendations)
			r.Post("/recommendations", h.HandleAttachRecommendations)
			r.Post("/selection", h.HandleSelect)
			r.Post("/match", h.HandleMatch)
			r.Post("/start", h.HandleStart)
			r.Post("/complete", h.HandleComplete)
			r.Post("/reject", h.HandleReject)
			r.Post("/integrated-report", h.HandleIntegratedReportCallback)
		})
	})
}

// RegisterAdmin mounts the operator escape hatch. Mounted behind the admin
// token middleware, separately from the regular routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/referrals/{referralID}/status", h.HandleForceStatus)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[CreateReferralRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.ChildID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "childId is required"))
		return
	}

	created, err := h.service.CreateReferral(ctx, service.CreateParams{
		ChildID:    id.ChildID(req.ChildID),
		GuardianID: id.GuardianID(req.GuardianID),
		Form:       req.Form,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "referral creation rejected",
			"request_id", requestID,
			"child_id", req.ChildID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "referral created",
		"request_id", requestID,
		"referral_id", created.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromReferral(created))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	referral, err := h.service.GetReferral(r.Context(), id.ReferralID(chi.URLParam(r, "referralID")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReferral(referral))
}

// HandleList serves the paginated listing. One of the scope query parameters
// (childId, guardianId, institutionId, counselorId) narrows the result to that
// party instead.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		rs  []*models.Referral
		err error
	)
	switch {
	case q.Get("childId") != "":
		rs, err = h.service.ReferralsByChild(ctx, id.ChildID(q.Get("childId")))
	case q.Get("guardianId") != "":
		rs, err = h.service.ReferralsByGuardian(ctx, id.GuardianID(q.Get("guardianId")))
	case q.Get("institutionId") != "":
		rs, err = h.service.ReferralsByInstitution(ctx, id.InstitutionID(q.Get("institutionId")))
	case q.Get("counselorId") != "":
		rs, err = h.service.ReferralsByCounselor(ctx, id.CounselorID(q.Get("counselorId")))
	default:
		h.handlePagedList(w, r)
		return
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Items: FromReferrals(rs), Total: len(rs), Page: 1, Limit: len(rs)})
}

func (h *Handler) handlePagedList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := request.ListFilter{
		Status: models.Status(q.Get("status")),
		Page:   intQuery(q.Get("page"), 1),
		Limit:  intQuery(q.Get("limit"), 20),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "unknown status %q", filter.Status))
		return
	}
	rs, total, err := h.service.ListReferrals(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Items: FromReferrals(rs), Total: total, Page: filter.Page, Limit: filter.Limit})
}

func (h *Handler) HandleUpdateForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[UpdateFormRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	updated, err := h.service.UpdateReferralForm(ctx, id.ReferralID(chi.URLParam(r, "referralID")), req.Form)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReferral(updated))
}

func (h *Handler) HandleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := h.service.GetRecommendations(r.Context(), id.ReferralID(chi.URLParam(r, "referralID")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecommendations(recs))
}

// HandleAttachRecommendations receives the AI service's ranked batch.
func (h *Handler) HandleAttachRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[AttachRecommendationsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	referralID := id.ReferralID(chi.URLParam(r, "referralID"))
	if err := h.service.AttachRecommendations(ctx, referralID, req.Candidates()); err != nil {
		h.logger.WarnContext(ctx, "recommendation attach rejected",
			"request_id", requestID,
			"referral_id", referralID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[SelectInstitutionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	updated, err := h.service.SelectRecommendedInstitution(ctx, id.ReferralID(chi.URLParam(r, "referralID")), id.InstitutionID(req.InstitutionID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReferral(updated))
}

func (h *Handler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[MatchRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	updated, err := h.service.MatchDirect(ctx, id.ReferralID(chi.URLParam(r, "referralID")), id.InstitutionID(req.InstitutionID), id.CounselorID(req.CounselorID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReferral(updated))
}

func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.StartCounseling)
}

func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.CompleteCounseling)
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[RejectRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	updated, err := h.service.RejectReferral(ctx, id.ReferralID(chi.URLParam(r, "referralID")), req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReferral(updated))
}

func (h *Handler) HandleForceStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[ForceStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	referralID := id.ReferralID(chi.URLParam(r, "referralID"))
	updated, err := h.service.ForceStatus(ctx, referralID, models.Status(req.Status), req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "force status rejected",
			"request_id", requestID,
			"referral_id", referralID,
			"target", req.Status,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReferral(updated))
}

// HandleIntegratedReportCallback is the generator's completion webhook.
func (h *Handler) HandleIntegratedReportCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[IntegratedReportCallbackRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	referralID := id.ReferralID(chi.URLParam(r, "referralID"))

	var err error
	switch req.Status {
	case "completed":
		if req.S3Key == "" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "s3Key is required on completion"))
			return
		}
		err = h.service.CompleteIntegratedReport(ctx, referralID, req.S3Key)
	case "failed":
		err = h.service.FailIntegratedReport(ctx, referralID)
	default:
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "unknown callback status %q", req.Status))
		return
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, id.ReferralID) (*models.Referral, error)) {
	updated, err := op(r.Context(), id.ReferralID(chi.URLParam(r, "referralID")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReferral(updated))
}

func intQuery(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
