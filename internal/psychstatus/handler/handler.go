// Package handler exposes the psychological-risk status log over HTTP.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"carelink/internal/psychstatus"
	id "carelink/pkg/domain"
	dErrors "carelink/pkg/domain-errors"
	"carelink/pkg/platform/httputil"
	"carelink/pkg/requestcontext"
)

// RecordRequest appends one risk observation for a child.
type RecordRequest struct {
	Level string `json:"level"`
	Note  string `json:"note,omitempty"`
}

// EntryResponse is the wire shape of one observation.
type EntryResponse struct {
	ChildID    string    `json:"childId"`
	Level      string    `json:"level"`
	Note       string    `json:"note,omitempty"`
	RecordedBy string    `json:"recordedBy,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

func fromEntry(e psychstatus.Entry) EntryResponse {
	return EntryResponse{
		ChildID:    string(e.ChildID),
		Level:      string(e.Level),
		Note:       e.Note,
		RecordedBy: e.RecordedBy,
		RecordedAt: e.RecordedAt,
	}
}

// Handler wires the risk-status endpoints to the log service.
type Handler struct {
	service *psychstatus.Service
	logger  *slog.Logger
}

func New(service *psychstatus.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the risk-status endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/children/{childID}/psych-status", func(r chi.Router) {
		r.Post("/", h.HandleRecord)
		r.Get("/", h.HandleLatest)
		r.Get("/history", h.HandleHistory)
	})
}

func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[RecordRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	childID := id.ChildID(chi.URLParam(r, "childID"))
	recordedBy := requestcontext.ActorID(ctx)
	if recordedBy == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	entry, err := h.service.Record(ctx, childID, psychstatus.Level(req.Level), req.Note, recordedBy, requestcontext.Now(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromEntry(entry))
}

func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Latest(r.Context(), id.ChildID(chi.URLParam(r, "childID")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromEntry(entry))
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.History(r.Context(), id.ChildID(chi.URLParam(r, "childID")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, fromEntry(e))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
