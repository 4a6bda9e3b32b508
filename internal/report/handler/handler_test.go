package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carelink/internal/consent"
	"carelink/internal/report/adapters/guardian"
	"carelink/internal/report/service"
	"carelink/internal/report/store/report"
	"carelink/pkg/requestcontext"
)

// newRouter wires the handler against the real service on an in-memory store.
// Guardian authorization runs through the consent ledger with guardian-1
// registered for child-1. The actor middleware reads the X-Actor / X-Role test
// headers the way the JWT middleware injects claims in production.
func newRouter(t *testing.T) *chi.Mux {
	t.Helper()

	consents := consent.NewService(consent.NewInMemoryStore())
	_, err := consents.Grant(context.Background(), "child-1", "guardian-1", consent.PurposeReferral, 0)
	require.NoError(t, err)

	svc := service.New(service.Deps{
		Reports:    report.NewInMemory(),
		Authorizer: guardian.NewLedgerAuthorizer(consents),
		Logger:     slog.Default(),
	})
	h := New(svc, slog.Default())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if actor := req.Header.Get("X-Actor"); actor != "" {
				ctx := requestcontext.WithActor(req.Context(), actor, requestcontext.Role(req.Header.Get("X-Role")))
				req = req.WithContext(ctx)
			}
			next.ServeHTTP(w, req)
		})
	})
	h.Register(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path, actor, role string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor", actor)
		req.Header.Set("X-Role", role)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeReport(t *testing.T, w *httptest.ResponseRecorder) ReportResponse {
	t.Helper()
	var resp ReportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func createBody(session int) []byte {
	body := map[string]any{
		"referralId":     "referral-1",
		"childId":        "child-1",
		"counselorId":    "counselor-1",
		"institutionId":  "inst-1",
		"sessionNumber":  session,
		"reportDate":     "2026-03-14T10:00:00Z",
		"centerName":     "마음돌봄센터",
		"counselReason":  "또래 관계 불안",
		"counselContent": "놀이치료를 통해 감정 표현을 연습함",
	}
	raw, _ := json.Marshal(body)
	return raw
}

func createReport(t *testing.T, router http.Handler, session int) ReportResponse {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/reports", "counselor-1", "counselor", createBody(session))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeReport(t, w)
}

func TestHandleCreate(t *testing.T) {
	t.Run("creates a draft", func(t *testing.T) {
		router := newRouter(t)
		resp := createReport(t, router, 1)
		assert.Equal(t, "DRAFT", resp.Status)
		assert.Equal(t, 1, resp.SessionNumber)
		assert.NotEmpty(t, resp.ID)
	})

	t.Run("zero session number takes the next in sequence", func(t *testing.T) {
		router := newRouter(t)
		createReport(t, router, 1)
		resp := createReport(t, router, 0)
		assert.Equal(t, 2, resp.SessionNumber)
	})

	t.Run("duplicate session number conflicts", func(t *testing.T) {
		router := newRouter(t)
		createReport(t, router, 1)
		w := doJSON(t, router, http.MethodPost, "/reports", "counselor-1", "counselor", createBody(1))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "DUPLICATE_SESSION_NUMBER", errorCode(t, w))
	})

	t.Run("blank content is rejected", func(t *testing.T) {
		router := newRouter(t)
		w := doJSON(t, router, http.MethodPost, "/reports", "counselor-1", "counselor",
			[]byte(`{"referralId":"referral-1","childId":"child-1","sessionNumber":1,"counselReason":"사유","counselContent":"   "}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "MISSING_COUNSEL_CONTENT", errorCode(t, w))
	})
}

func TestHandleSubmit(t *testing.T) {
	t.Run("the writing counselor submits", func(t *testing.T) {
		router := newRouter(t)
		created := createReport(t, router, 1)

		w := doJSON(t, router, http.MethodPost, "/reports/"+created.ID+"/submit", "counselor-1", "counselor", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decodeReport(t, w)
		assert.Equal(t, "SUBMITTED", resp.Status)
		assert.NotNil(t, resp.SubmittedAt)
	})

	t.Run("another counselor cannot submit", func(t *testing.T) {
		router := newRouter(t)
		created := createReport(t, router, 1)

		w := doJSON(t, router, http.MethodPost, "/reports/"+created.ID+"/submit", "counselor-2", "counselor", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))
	})
}

func TestReviewAndApprove(t *testing.T) {
	submit := func(t *testing.T, router http.Handler, reportID string) {
		w := doJSON(t, router, http.MethodPost, "/reports/"+reportID+"/submit", "counselor-1", "counselor", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	t.Run("registered guardian reviews and approves", func(t *testing.T) {
		router := newRouter(t)
		created := createReport(t, router, 1)
		submit(t, router, created.ID)

		w := doJSON(t, router, http.MethodPost, "/reports/"+created.ID+"/review", "guardian-1", "guardian", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "REVIEWED", decodeReport(t, w).Status)

		w = doJSON(t, router, http.MethodPost, "/reports/"+created.ID+"/approve", "guardian-1", "guardian",
			[]byte(`{"feedback":"아이가 많이 밝아졌어요"}`))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decodeReport(t, w)
		assert.Equal(t, "APPROVED", resp.Status)
		assert.Equal(t, "아이가 많이 밝아졌어요", resp.GuardianFeedback)
	})

	t.Run("unregistered guardian is rejected", func(t *testing.T) {
		router := newRouter(t)
		created := createReport(t, router, 1)
		submit(t, router, created.ID)

		w := doJSON(t, router, http.MethodPost, "/reports/"+created.ID+"/review", "guardian-9", "guardian", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))
	})

	t.Run("unauthenticated review is rejected", func(t *testing.T) {
		router := newRouter(t)
		created := createReport(t, router, 1)
		submit(t, router, created.ID)

		w := doJSON(t, router, http.MethodPost, "/reports/"+created.ID+"/review", "", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("blank feedback after review is invalid", func(t *testing.T) {
		router := newRouter(t)
		created := createReport(t, router, 1)
		submit(t, router, created.ID)

		w := doJSON(t, router, http.MethodPost, "/reports/"+created.ID+"/review", "guardian-1", "guardian", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, router, http.MethodPost, "/reports/"+created.ID+"/approve", "guardian-1", "guardian", []byte(`{"feedback":"  "}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_FEEDBACK", errorCode(t, w))
	})

	t.Run("approve straight from SUBMITTED is an invalid transition", func(t *testing.T) {
		router := newRouter(t)
		created := createReport(t, router, 1)
		submit(t, router, created.ID)

		w := doJSON(t, router, http.MethodPost, "/reports/"+created.ID+"/approve", "guardian-1", "guardian",
			[]byte(`{"feedback":"잘 봤습니다"}`))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "INVALID_STATUS_TRANSITION", errorCode(t, w))
	})
}

func TestReadEndpoints(t *testing.T) {
	router := newRouter(t)
	createReport(t, router, 1)
	createReport(t, router, 2)

	w := doJSON(t, router, http.MethodGet, "/referrals/referral-1/reports", "counselor-1", "counselor", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var reports []ReportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, 1, reports[0].SessionNumber)

	w = doJSON(t, router, http.MethodGet, "/referrals/referral-1/reports/next-session", "counselor-1", "counselor", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var next map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &next))
	assert.Equal(t, 3, next["nextSessionNumber"])

	w = doJSON(t, router, http.MethodGet, "/reports?status=DRAFT&limit=1", "counselor-1", "counselor", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Total)
	assert.Len(t, list.Items, 1)

	w = doJSON(t, router, http.MethodGet, "/reports?counselorId=counselor-1", "counselor-1", "counselor", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Items, 2)

	w = doJSON(t, router, http.MethodGet, "/reports/unknown-report", "counselor-1", "counselor", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
