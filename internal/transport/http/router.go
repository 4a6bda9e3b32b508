// Package httptransport assembles the public HTTP surface: middleware chain,
// health and metrics endpoints, and the authenticated API routes.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	consenthandler "carelink/internal/consent/handler"
	"carelink/internal/platform/middleware"
	psychstatushandler "carelink/internal/psychstatus/handler"
	referralhandler "carelink/internal/referral/handler"
	reporthandler "carelink/internal/report/handler"
	"carelink/pkg/platform/httputil"
	"carelink/pkg/requestcontext"
)

// Deps carries everything the router mounts.
type Deps struct {
	Logger         *slog.Logger
	Validator      middleware.JWTValidator
	AdminTokenHash string
	RequestTimeout time.Duration

	Referrals   *referralhandler.Handler
	Reports     *reporthandler.Handler
	Consents    *consenthandler.Handler
	PsychStatus *psychstatushandler.Handler
}

// NewRouter builds the chi router. Health and metrics are unauthenticated;
// everything under /api/v1 requires a bearer token, and the operator routes
// additionally require the admin token header.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Recovery(d.Logger))

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(timeout))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(d.Validator, d.Logger))

		d.Referrals.Register(r)
		d.Reports.Register(r)
		d.Consents.Register(r)
		d.PsychStatus.Register(r)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(requestcontext.RoleAdmin))
			r.Use(middleware.RequireAdminToken(d.AdminTokenHash, d.Logger))
			d.Referrals.RegisterAdmin(r)
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
