// Package handler exposes the consent ledger over HTTP: guardians grant and
// revoke purpose-bound consents, and operators inspect a child's ledger.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"carelink/internal/consent"
	id "carelink/pkg/domain"
	dErrors "carelink/pkg/domain-errors"
	"carelink/pkg/platform/httputil"
	"carelink/pkg/requestcontext"
)

// GrantRequest grants one purpose for a child. A zero ttlHours means the
// consent never expires.
type GrantRequest struct {
	ChildID  string `json:"childId"`
	Purpose  string `json:"purpose"`
	TTLHours int    `json:"ttlHours,omitempty"`
}

// RevokeRequest withdraws one purpose for a child.
type RevokeRequest struct {
	ChildID string `json:"childId"`
	Purpose string `json:"purpose"`
}

// RecordResponse is the wire shape of one ledger entry.
type RecordResponse struct {
	ChildID    string     `json:"childId"`
	GuardianID string     `json:"guardianId"`
	Purpose    string     `json:"purpose"`
	GrantedAt  time.Time  `json:"grantedAt"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	RevokedAt  *time.Time `json:"revokedAt,omitempty"`
}

func fromRecord(r consent.Record) RecordResponse {
	resp := RecordResponse{
		ChildID:    string(r.ChildID),
		GuardianID: string(r.GuardianID),
		Purpose:    string(r.Purpose),
		GrantedAt:  r.GrantedAt,
		RevokedAt:  r.RevokedAt,
	}
	if !r.ExpiresAt.IsZero() {
		expires := r.ExpiresAt
		resp.ExpiresAt = &expires
	}
	return resp
}

// Handler wires consent endpoints to the ledger service.
type Handler struct {
	service *consent.Service
	logger  *slog.Logger
}

func New(service *consent.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts consent endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/consents", func(r chi.Router) {
		r.Post("/", h.HandleGrant)
		r.Post("/revoke", h.HandleRevoke)
	})
	r.Get("/children/{childID}/consents", h.HandleListByChild)
}

// HandleGrant records a consent from the authenticated guardian.
func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[GrantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.ChildID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "childId is required"))
		return
	}
	purpose := consent.Purpose(req.Purpose)
	if !purpose.Valid() {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "unknown purpose %q", req.Purpose))
		return
	}
	guardianID := id.GuardianID(requestcontext.ActorID(ctx))
	if guardianID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	record, err := h.service.Grant(ctx, id.ChildID(req.ChildID), guardianID, purpose, time.Duration(req.TTLHours)*time.Hour)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "consent granted",
		"request_id", requestID,
		"child_id", req.ChildID,
		"purpose", req.Purpose,
	)
	httputil.WriteJSON(w, http.StatusCreated, fromRecord(record))
}

func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[RevokeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if req.ChildID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "childId is required"))
		return
	}
	if err := h.service.Revoke(ctx, id.ChildID(req.ChildID), consent.Purpose(req.Purpose)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListByChild(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListByChild(r.Context(), id.ChildID(chi.URLParam(r, "childID")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]RecordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, fromRecord(record))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
