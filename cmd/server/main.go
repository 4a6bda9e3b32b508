package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"carelink/internal/audit"
	"carelink/internal/consent"
	consenthandler "carelink/internal/consent/handler"
	jwttoken "carelink/internal/jwt_token"
	"carelink/internal/platform/config"
	"carelink/internal/platform/httpserver"
	"carelink/internal/platform/logger"
	platformredis "carelink/internal/platform/redis"
	"carelink/internal/psychstatus"
	psychstatushandler "carelink/internal/psychstatus/handler"
	"carelink/internal/referral/adapters/assessment"
	"carelink/internal/referral/adapters/recommender"
	"carelink/internal/referral/adapters/reportgen"
	referralhandler "carelink/internal/referral/handler"
	referralmetrics "carelink/internal/referral/metrics"
	"carelink/internal/referral/ports"
	referralservice "carelink/internal/referral/service"
	"carelink/internal/referral/store/recommendation"
	"carelink/internal/referral/store/request"
	"carelink/internal/report/adapters/guardian"
	reporthandler "carelink/internal/report/handler"
	reportmetrics "carelink/internal/report/metrics"
	reportservice "carelink/internal/report/service"
	reportstore "carelink/internal/report/store/report"
	httptransport "carelink/internal/transport/http"
)

const auditInboxSize = 1024

// main wires storage, external collaborators, the audit pipeline and the HTTP
// surface. Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage. Without DATABASE_URL everything runs on the in-memory stores,
	// which is only useful for local development.
	var (
		referralStore referralservice.ReferralStore
		recStore      referralservice.RecommendationStore
		reportStore   reportservice.ReportStore
		auditStore    audit.Store
		consentStore  consent.Store
		psychStore    psychstatus.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("ping database", "error", err)
			os.Exit(1)
		}
		referralStore = request.NewPostgres(db)
		recStore = recommendation.NewPostgres(db)
		reportStore = reportstore.NewPostgres(db)
		auditStore = audit.NewPostgresStore(db)
		consentStore = consent.NewPostgresStore(db)
		psychStore = psychstatus.NewPostgresStore(db)
	} else {
		log.Warn("DATABASE_URL not set, falling back to in-memory stores")
		referralStore = request.NewInMemory()
		recStore = recommendation.NewInMemory()
		reportStore = reportstore.NewInMemory()
		auditStore = audit.NewInMemoryStore()
		consentStore = consent.NewInMemoryStore()
		psychStore = psychstatus.NewInMemoryStore()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// External collaborators. Each is optional; the enrichment step skips
	// whatever is not configured.
	var recommenderClient ports.Recommender
	if cfg.RecommenderBaseURL != "" {
		recommenderClient = recommender.New(cfg.RecommenderBaseURL)
	}
	var reportGenClient ports.ReportGenerator
	if cfg.ReportGenBaseURL != "" {
		reportGenClient = reportgen.New(cfg.ReportGenBaseURL)
	}
	var assessments ports.AssessmentLookup
	if cfg.AssessmentBaseURL != "" {
		assessments = assessment.New(cfg.AssessmentBaseURL)
		if redisClient != nil {
			assessments = assessment.NewCachedLookup(assessments, redisClient.Client, cfg.AssessmentCacheTTL, log)
		}
	}

	consents := consent.NewService(consentStore)
	guardianAuth := guardian.NewLedgerAuthorizer(consents)
	psychSvc := psychstatus.NewService(psychStore)

	// Audit pipeline: requests enqueue, the worker persists and fans out.
	inbox := make(chan audit.Event, auditInboxSize)
	auditor := audit.NewChannelPublisher(inbox, log)
	var sink audit.Sink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
	}
	worker := audit.NewWorker(auditStore, sink, inbox, log)

	referralSvc := referralservice.New(referralservice.Deps{
		Referrals:       referralStore,
		Recommendations: recStore,
		Consents:        consents,
		Recommender:     recommenderClient,
		ReportGen:       reportGenClient,
		Assessments:     assessments,
		Auditor:         auditor,
		Metrics:         referralmetrics.New(),
		Logger:          log,
	})
	reportSvc := reportservice.New(reportservice.Deps{
		Reports:    reportStore,
		Authorizer: guardianAuth,
		Auditor:    auditor,
		Metrics:    reportmetrics.New(),
		Logger:     log,
	})

	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, "carelink", "carelink-api")

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Validator:      tokens,
		AdminTokenHash: cfg.AdminTokenHash,
		RequestTimeout: cfg.RequestTimeout,
		Referrals:      referralhandler.New(referralSvc, log),
		Reports:        reporthandler.New(reportSvc, log),
		Consents:       consenthandler.New(consents, log),
		PsychStatus:    psychstatushandler.New(psychSvc, log),
	})
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting carelink", "addr", cfg.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("carelink stopped")
}
