package recommender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carelink/internal/referral/ports"
	id "carelink/pkg/domain"
)

func TestRecommend(t *testing.T) {
	t.Run("decodes the ranked batch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/recommendations", r.URL.Path)

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "referral-1", body["referralId"])

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"recommendations":[
				{"institutionId":"inst-1","score":0.91,"reason":"연령대 전문","rank":1},
				{"institutionId":"inst-2","score":0.77,"reason":"거리 근접","rank":2}
			]}`))
		}))
		defer srv.Close()

		client := New(srv.URL)
		got, err := client.Recommend(context.Background(), ports.RecommendationContext{
			ReferralID: "referral-1",
			ChildID:    "child-1",
			CareType:   "GENERAL",
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, id.InstitutionID("inst-1"), got[0].InstitutionID)
		assert.Equal(t, 1, got[0].Rank)
	})

	t.Run("forwards the backfilled assessment", func(t *testing.T) {
		var seen map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
			w.Write([]byte(`{"recommendations":[]}`))
		}))
		defer srv.Close()

		client := New(srv.URL)
		_, err := client.Recommend(context.Background(), ports.RecommendationContext{
			ReferralID:       "referral-1",
			ChildID:          "child-1",
			LatestAssessment: &ports.AssessmentResult{TestName: "K-CBCL", Score: 68, Level: "caution"},
		})
		require.NoError(t, err)
		require.Contains(t, seen, "latestAssessment")
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := New(srv.URL)
		_, err := client.Recommend(context.Background(), ports.RecommendationContext{ReferralID: "referral-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})
}
