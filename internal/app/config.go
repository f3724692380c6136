package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/freightquote-backend/internal/data/db"
	"github.com/yungbote/freightquote-backend/internal/modules/negotiation"
	"github.com/yungbote/freightquote-backend/internal/observability"
	"github.com/yungbote/freightquote-backend/internal/platform/envutil"
	"github.com/yungbote/freightquote-backend/internal/services"
	"github.com/yungbote/freightquote-backend/internal/temporalx"
)

type Config struct {
	Port        string
	LogMode     string
	Environment string
	ServiceName string
	Version     string

	DB db.Config

	JWTSecretKey string
	JWTIssuer    string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ThreadCacheTTL time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
	RequestTimeout time.Duration

	MetricsAddr string

	Policy     negotiation.Policy
	Settlement services.SettlementDispatcherConfig

	DocumentVerifyGCS bool

	Temporal             temporalx.Config
	TemporalWorkerEnable bool
}

func (c Config) production() bool {
	return c.LogMode != "development"
}

// LoadConfig reads the environment once. It fails on a broken negotiation
// policy file and on a missing JWT secret outside development.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		LogMode:     envutil.String("LOG_MODE", "development"),
		Environment: envutil.String("APP_ENV", "local"),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "freightquote-backend"),
		Version:     envutil.String("APP_VERSION", "dev"),

		DB: db.ConfigFromEnv(),

		JWTSecretKey: envutil.String("JWT_SECRET_KEY", ""),
		JWTIssuer:    envutil.String("JWT_ISSUER", "freightquote"),

		RedisAddr:      envutil.String("REDIS_ADDR", ""),
		RedisPassword:  envutil.String("REDIS_PASSWORD", ""),
		RedisDB:        envutil.Int("REDIS_DB", 0),
		ThreadCacheTTL: envutil.Duration("THREAD_CACHE_TTL", 5*time.Second),

		RateLimitRPS:   envutil.Float("RATE_LIMIT_RPS", 5),
		RateLimitBurst: envutil.Int("RATE_LIMIT_BURST", 10),
		CORSOrigins:    envutil.List("CORS_ALLOWED_ORIGINS", nil),
		RequestTimeout: envutil.Duration("REQUEST_TIMEOUT", 15*time.Second),

		MetricsAddr: envutil.String("METRICS_ADDR", ":9090"),

		Settlement: services.SettlementDispatcherConfig{
			Interval:    envutil.Duration("SETTLEMENT_DISPATCH_INTERVAL", 2*time.Second),
			BatchSize:   envutil.Int("SETTLEMENT_BATCH_SIZE", 20),
			MaxAttempts: envutil.Int("SETTLEMENT_MAX_ATTEMPTS", 8),
			BaseBackoff: envutil.Duration("SETTLEMENT_BASE_BACKOFF", time.Second),
			MaxBackoff:  envutil.Duration("SETTLEMENT_MAX_BACKOFF", 5*time.Minute),
		},

		DocumentVerifyGCS: envutil.Bool("DOCUMENT_VERIFY_GCS", false),

		Temporal:             temporalx.LoadConfig(),
		TemporalWorkerEnable: envutil.Bool("TEMPORAL_WORKER_ENABLED", true),
	}

	policy, err := negotiation.LoadPolicy(envutil.String("NEGOTIATION_POLICY_FILE", ""))
	if err != nil {
		return cfg, err
	}
	if err := policy.Validate(); err != nil {
		return cfg, fmt.Errorf("negotiation policy: %w", err)
	}
	cfg.Policy = policy

	if strings.TrimSpace(cfg.JWTSecretKey) == "" {
		if cfg.production() {
			return cfg, fmt.Errorf("JWT_SECRET_KEY is required when LOG_MODE=%s", cfg.LogMode)
		}
		cfg.JWTSecretKey = "dev-only-secret"
	}
	return cfg, nil
}

func (c Config) otel() observability.OtelConfig {
	return observability.OtelConfig{ServiceName: c.ServiceName, Environment: c.Environment, Version: c.Version}
}
