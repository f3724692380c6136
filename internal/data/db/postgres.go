package db

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/freightquote-backend/internal/platform/envutil"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

type Config struct {
	Driver        string // postgres | sqlite
	DSN           string
	SQLitePath    string
	SlowThreshold time.Duration
	MaxOpenConns  int
	MaxIdleConns  int
}

// ConfigFromEnv reads DB_DRIVER, DATABASE_URL and the POSTGRES_* parts.
func ConfigFromEnv() Config {
	cfg := Config{
		Driver:        strings.ToLower(envutil.String("DB_DRIVER", "postgres")),
		DSN:           envutil.String("DATABASE_URL", ""),
		SQLitePath:    envutil.String("SQLITE_PATH", "freightquote.db"),
		SlowThreshold: envutil.Duration("DB_SLOW_THRESHOLD", time.Second),
		MaxOpenConns:  envutil.Int("DB_MAX_OPEN_CONNS", 20),
		MaxIdleConns:  envutil.Int("DB_MAX_IDLE_CONNS", 5),
	}
	if cfg.DSN == "" && cfg.Driver == "postgres" {
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(envutil.String("POSTGRES_USER", "postgres"), envutil.String("POSTGRES_PASSWORD", "")),
			Host:     envutil.String("POSTGRES_HOST", "localhost") + ":" + envutil.String("POSTGRES_PORT", "5432"),
			Path:     "/" + envutil.String("POSTGRES_NAME", "freightquote"),
			RawQuery: "sslmode=" + envutil.String("POSTGRES_SSLMODE", "disable"),
		}
		cfg.DSN = u.String()
	}
	return cfg
}

type Service struct {
	db     *gorm.DB
	log    *logger.Logger
	driver string
}

// Open connects with the configured driver.
func Open(log *logger.Logger, cfg Config) (*Service, error) {
	switch cfg.Driver {
	case "", "postgres", "postgresql":
		return NewPostgresService(log, cfg)
	case "sqlite", "sqlite3":
		return NewSQLiteService(log, cfg)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

func NewPostgresService(log *logger.Logger, cfg Config) (*Service, error) {
	serviceLog := log.With("service", "PostgresService")
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   newGormLogger(serviceLog, cfg.SlowThreshold),
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return &Service{db: db, log: serviceLog, driver: "postgres"}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Driver() string { return s.driver }

func (s *Service) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormWriter routes gorm's slow-query and error lines into zap.
type gormWriter struct{ log *logger.Logger }

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func newGormLogger(log *logger.Logger, slow time.Duration) gormLogger.Interface {
	if slow <= 0 {
		slow = time.Second
	}
	return gormLogger.New(gormWriter{log: log}, gormLogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  gormLogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
