package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"carelink/internal/report/models"
	"carelink/internal/report/store/report"
	id "carelink/pkg/domain"
	dErrors "carelink/pkg/domain-errors"
	"carelink/pkg/platform/httputil"
	"carelink/pkg/requestcontext"
)

// Service defines the interface for session-report operations.
type Service interface {
	CreateReport(ctx context.Context, p models.NewParams) (*models.SessionReport, error)
	SubmitReport(ctx context.Context, reportID id.ReportID, counselorID id.CounselorID) (*models.SessionReport, error)
	ReviewReport(ctx context.Context, reportID id.ReportID, guardianID id.GuardianID) (*models.SessionReport, error)
	ApproveReport(ctx context.Context, reportID id.ReportID, guardianID id.GuardianID, feedback string) (*models.SessionReport, error)
	GetReport(ctx context.Context, reportID id.ReportID) (*models.SessionReport, error)
	ReportsByReferral(ctx context.Context, referralID id.ReferralID) ([]*models.SessionReport, error)
	ReportsByChild(ctx context.Context, childID id.ChildID) ([]*models.SessionReport, error)
	ReportsByCounselor(ctx context.Context, counselorID id.CounselorID) ([]*models.SessionReport, error)
	ListReports(ctx context.Context, f report.ListFilter) ([]*models.SessionReport, int, error)
	NextSessionNumber(ctx context.Context, referralID id.ReferralID) (int, error)
}

// Handler wires report endpoints to the report service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts report endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Route("/{reportID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Post("/submit", h.HandleSubmit)
			r.Post("/review", h.HandleReview)
			r.Post("/approve", h.HandleApprove)
		})
	})
	r.Get("/referrals/{referralID}/reports", h.HandleByReferral)
	r.Get("/referrals/{referralID}/reports/next-session", h.HandleNextSession)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[CreateReportRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	created, err := h.service.CreateReport(ctx, req.Params())
	if err != nil {
		h.logger.WarnContext(ctx, "report creation rejected",
			"request_id", requestID,
			"referral_id", req.ReferralID,
			"session", req.SessionNumber,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromReport(created))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rep, err := h.service.GetReport(r.Context(), id.ReportID(chi.URLParam(r, "reportID")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReport(rep))
}

// HandleSubmit moves a draft into the guardian pipeline. The acting counselor
// comes from the authenticated context.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counselorID := id.CounselorID(requestcontext.ActorID(ctx))
	rep, err := h.service.SubmitReport(ctx, id.ReportID(chi.URLParam(r, "reportID")), counselorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReport(rep))
}

func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	guardianID, err := actingGuardian(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rep, err := h.service.ReviewReport(ctx, id.ReportID(chi.URLParam(r, "reportID")), guardianID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReport(rep))
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	guardianID, err := actingGuardian(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ApproveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	rep, err := h.service.ApproveReport(ctx, id.ReportID(chi.URLParam(r, "reportID")), guardianID, req.Feedback)
	if err != nil {
		h.logger.WarnContext(ctx, "report approval rejected",
			"request_id", requestID,
			"guardian_id", guardianID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReport(rep))
}

// HandleList serves the paginated listing, or a party-scoped listing when a
// childId/counselorId query parameter is present.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	switch {
	case q.Get("childId") != "":
		rs, err := h.service.ReportsByChild(ctx, id.ChildID(q.Get("childId")))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, ListResponse{Items: FromReports(rs), Total: len(rs), Page: 1, Limit: len(rs)})
	case q.Get("counselorId") != "":
		rs, err := h.service.ReportsByCounselor(ctx, id.CounselorID(q.Get("counselorId")))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, ListResponse{Items: FromReports(rs), Total: len(rs), Page: 1, Limit: len(rs)})
	default:
		filter := report.ListFilter{
			Status: models.Status(q.Get("status")),
			Page:   intQuery(q.Get("page"), 1),
			Limit:  intQuery(q.Get("limit"), 20),
		}
		rs, total, err := h.service.ListReports(ctx, filter)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, ListResponse{Items: FromReports(rs), Total: total, Page: filter.Page, Limit: filter.Limit})
	}
}

func (h *Handler) HandleByReferral(w http.ResponseWriter, r *http.Request) {
	rs, err := h.service.ReportsByReferral(r.Context(), id.ReferralID(chi.URLParam(r, "referralID")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReports(rs))
}

func (h *Handler) HandleNextSession(w http.ResponseWriter, r *http.Request) {
	next, err := h.service.NextSessionNumber(r.Context(), id.ReferralID(chi.URLParam(r, "referralID")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"nextSessionNumber": next})
}

// actingGuardian pulls the guardian identity from the authenticated context.
// Admins act on behalf of guardians through the same endpoints and are passed
// through; the service-level authorization check still runs.
func actingGuardian(ctx context.Context) (id.GuardianID, error) {
	actor := requestcontext.ActorID(ctx)
	if actor == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return id.GuardianID(actor), nil
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
