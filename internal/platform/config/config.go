package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything main needs to wire the service.
type Config struct {
	Addr        string
	DatabaseURL string

	Redis Redis

	KafkaBrokers []string
	AuditTopic   string

	JWTSigningKey  string
	AdminTokenHash string

	RecommenderBaseURL string
	ReportGenBaseURL   string
	AssessmentBaseURL  string
	AssessmentCacheTTL time.Duration

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Redis holds connection settings for the assessment cache. An empty URL
// disables caching.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:               envOr("CARELINK_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		AuditTopic:         envOr("AUDIT_TOPIC", "carelink.audit"),
		JWTSigningKey:      envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		AdminTokenHash:     os.Getenv("ADMIN_TOKEN_HASH"),
		RecommenderBaseURL: os.Getenv("RECOMMENDER_URL"),
		ReportGenBaseURL:   os.Getenv("REPORT_GENERATOR_URL"),
		AssessmentBaseURL:  os.Getenv("ASSESSMENT_URL"),
		AssessmentCacheTTL: durationOr("ASSESSMENT_CACHE_TTL", 10*time.Minute),
		RequestTimeout:     durationOr("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    durationOr("SHUTDOWN_TIMEOUT", 15*time.Second),
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intOr("REDIS_POOL_SIZE", 10),
			MinIdleConns: intOr("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durationOr("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durationOr("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durationOr("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
