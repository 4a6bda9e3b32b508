package assessment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestByChild(t *testing.T) {
	t.Run("decodes the latest assessment", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/children/child-1/assessments/latest", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"testName":"K-CBCL","score":68,"level":"caution","summary":"불안 척도 상승"}`))
		}))
		defer srv.Close()

		got, err := New(srv.URL).LatestByChild(context.Background(), "child-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "K-CBCL", got.TestName)
		assert.Equal(t, 68.0, got.Score)
	})

	t.Run("404 means never assessed, not an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		got, err := New(srv.URL).LatestByChild(context.Background(), "child-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("5xx is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := New(srv.URL).LatestByChild(context.Background(), "child-1")
		require.Error(t, err)
	})
}
