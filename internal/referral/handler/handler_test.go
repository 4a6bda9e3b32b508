package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carelink/internal/referral/service"
	"carelink/internal/referral/store/recommendation"
	"carelink/internal/referral/store/request"
)

// newRouter wires the handler against the real service on in-memory stores.
// No enrichment collaborators are configured, so created referrals stay
// PENDING and the tests drive the lifecycle through the endpoints.
func newRouter(t *testing.T) *chi.Mux {
	t.Helper()
	svc := service.New(service.Deps{
		Referrals:       request.NewInMemory(),
		Recommendations: recommendation.NewInMemory(),
		Logger:          slog.Default(),
	})
	h := New(svc, slog.Default())
	r := chi.NewRouter()
	h.Register(r)
	h.RegisterAdmin(r)
	return r
}

func createBody() []byte {
	return []byte(`{
		"childId": "child-1",
		"guardianId": "guardian-1",
		"form": {
			"coverInfo": {"requestDate": {"year": 2026, "month": 3, "day": 14}, "centerName": "마음돌봄센터", "counselorName": "김상담"},
			"basicInfo": {"childInfo": {"name": "이아동", "age": 9}, "careType": "GENERAL"},
			"psychologicalInfo": "또래 관계에서 위축된 모습",
			"consent": {"dataProcessing": true}
		}
	}`)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeReferral(t *testing.T, w *httptest.ResponseRecorder) ReferralResponse {
	t.Helper()
	var resp ReferralResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func createReferral(t *testing.T, router http.Handler) ReferralResponse {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/referrals", createBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeReferral(t, w)
}

func recommendReferral(t *testing.T, router http.Handler, referralID string) {
	t.Helper()
	body := []byte(`{"recommendations":[
		{"institutionId":"inst-1","score":0.91,"reason":"연령대 전문","rank":1},
		{"institutionId":"inst-2","score":0.74,"reason":"거리 근접","rank":2}
	]}`)
	w := doJSON(t, router, http.MethodPost, "/referrals/"+referralID+"/recommendations", body)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
}

func TestHandleCreate(t *testing.T) {
	t.Run("creates a pending referral", func(t *testing.T) {
		router := newRouter(t)
		resp := createReferral(t, router)

		assert.NotEmpty(t, resp.ID)
		assert.Equal(t, "PENDING", resp.Status)
		assert.Equal(t, "child-1", resp.ChildID)
		assert.Equal(t, "마음돌봄센터", resp.CenterName)
		assert.Equal(t, int64(1), resp.Version)
	})

	t.Run("missing childId is a validation error", func(t *testing.T) {
		router := newRouter(t)
		w := doJSON(t, router, http.MethodPost, "/referrals", []byte(`{"form":{}}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_FAILED", errorCode(t, w))
	})

	t.Run("invalid form is a validation error", func(t *testing.T) {
		router := newRouter(t)
		w := doJSON(t, router, http.MethodPost, "/referrals", []byte(`{"childId":"child-1","form":{"coverInfo":{"centerName":""}}}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_FAILED", errorCode(t, w))
	})

	t.Run("malformed JSON is a bad request", func(t *testing.T) {
		router := newRouter(t)
		w := doJSON(t, router, http.MethodPost, "/referrals", []byte(`{"childId":`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleGet(t *testing.T) {
	router := newRouter(t)
	created := createReferral(t, router)

	w := doJSON(t, router, http.MethodGet, "/referrals/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decodeReferral(t, w).ID)

	w = doJSON(t, router, http.MethodGet, "/referrals/no-such-referral", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))
}

func TestRecommendationFlow(t *testing.T) {
	t.Run("attach, list and select", func(t *testing.T) {
		router := newRouter(t)
		created := createReferral(t, router)
		recommendReferral(t, router, created.ID)

		w := doJSON(t, router, http.MethodGet, "/referrals/"+created.ID+"/recommendations", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var recs []RecommendationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
		require.Len(t, recs, 2)
		assert.Equal(t, "inst-1", recs[0].InstitutionID)
		assert.Equal(t, 1, recs[0].Rank)

		w = doJSON(t, router, http.MethodPost, "/referrals/"+created.ID+"/selection", []byte(`{"institutionId":"inst-2"}`))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decodeReferral(t, w)
		assert.Equal(t, "MATCHED", resp.Status)
		assert.Equal(t, "inst-2", resp.MatchedInstitutionID)
	})

	t.Run("selecting an institution outside the batch is rejected", func(t *testing.T) {
		router := newRouter(t)
		created := createReferral(t, router)
		recommendReferral(t, router, created.ID)

		w := doJSON(t, router, http.MethodPost, "/referrals/"+created.ID+"/selection", []byte(`{"institutionId":"inst-99"}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "BAD_REQUEST", errorCode(t, w))
	})

	t.Run("selection before recommendations is an invalid transition", func(t *testing.T) {
		router := newRouter(t)
		created := createReferral(t, router)

		w := doJSON(t, router, http.MethodPost, "/referrals/"+created.ID+"/selection", []byte(`{"institutionId":"inst-1"}`))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "INVALID_STATUS_TRANSITION", errorCode(t, w))
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		router := newRouter(t)
		created := createReferral(t, router)

		w := doJSON(t, router, http.MethodPost, "/referrals/"+created.ID+"/recommendations", []byte(`{"recommendations":[]}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLifecycleEndpoints(t *testing.T) {
	router := newRouter(t)
	created := createReferral(t, router)
	recommendReferral(t, router, created.ID)

	w := doJSON(t, router, http.MethodPost, "/referrals/"+created.ID+"/selection", []byte(`{"institutionId":"inst-1"}`))
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/referrals/"+created.ID+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "IN_PROGRESS", decodeReferral(t, w).Status)

	// Completing twice: second call is an invalid transition.
	w = doJSON(t, router, http.MethodPost, "/referrals/"+created.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "COMPLETED", decodeReferral(t, w).Status)

	w = doJSON(t, router, http.MethodPost, "/referrals/"+created.ID+"/complete", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", errorCode(t, w))
}

func TestHandleReject(t *testing.T) {
	router := newRouter(t)
	created := createReferral(t, router)

	w := doJSON(t, router, http.MethodPost, "/referrals/"+created.ID+"/reject", []byte(`{"reason":"보호자 요청으로 철회"}`))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeReferral(t, w)
	assert.Equal(t, "REJECTED", resp.Status)
	assert.Equal(t, "보호자 요청으로 철회", resp.RejectionReason)
}

func TestHandleList(t *testing.T) {
	router := newRouter(t)
	createReferral(t, router)
	createReferral(t, router)

	w := doJSON(t, router, http.MethodGet, "/referrals?status=PENDING&page=1&limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Total)
	assert.Len(t, list.Items, 1)

	w = doJSON(t, router, http.MethodGet, "/referrals?childId=child-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Items, 2)

	w = doJSON(t, router, http.MethodGet, "/referrals?status=BOGUS", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", errorCode(t, w))
}

func TestHandleForceStatus(t *testing.T) {
	router := newRouter(t)
	created := createReferral(t, router)

	w := doJSON(t, router, http.MethodPost, "/referrals/"+created.ID+"/status", []byte(`{"status":"IN_PROGRESS","reason":"전산 이관 중 누락된 상태 복구"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "IN_PROGRESS", decodeReferral(t, w).Status)

	w = doJSON(t, router, http.MethodPost, "/referrals/"+created.ID+"/status", []byte(`{"status":"COMPLETED","reason":"전산 이관 중 누락된 상태 복구"}`))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", errorCode(t, w))

	w = doJSON(t, router, http.MethodPost, "/referrals/"+created.ID+"/status", []byte(`{"status":"MATCHED","reason":"짧음"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, w))
}

func TestIntegratedReportCallback(t *testing.T) {
	router := newRouter(t)
	created := createReferral(t, router)

	w := doJSON(t, router, http.MethodPost, "/referrals/"+created.ID+"/integrated-report", []byte(`{"status":"completed","s3Key":"reports/combined.pdf"}`))
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/referrals/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeReferral(t, w)
	assert.Equal(t, "reports/combined.pdf", resp.IntegratedReportS3Key)
	assert.Equal(t, "completed", resp.IntegratedReportStatus)

	w = doJSON(t, router, http.MethodPost, "/referrals/"+created.ID+"/integrated-report", []byte(`{"status":"completed"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, w))

	w = doJSON(t, router, http.MethodPost, "/referrals/"+created.ID+"/integrated-report", []byte(`{"status":"exploded"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", errorCode(t, w))
}
