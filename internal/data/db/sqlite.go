package db

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

// NewSQLiteService opens a single-writer SQLite database. Used for local runs
// and the repo test harness.
func NewSQLiteService(log *logger.Logger, cfg Config) (*Service, error) {
	serviceLog := log.With("service", "SQLiteService")
	path := strings.TrimSpace(cfg.SQLitePath)
	if path == "" {
		path = "file::memory:?cache=shared"
	}
	if !strings.Contains(path, "_pragma=") && !strings.Contains(path, "memory") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + "_busy_timeout=5000&_foreign_keys=on"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   newGormLogger(serviceLog, cfg.SlowThreshold),
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite pool: %w", err)
	}
	// SQLite serializes writers; one connection keeps transactions from
	// tripping over "database is locked".
	sqlDB.SetMaxOpenConns(1)
	return &Service{db: db, log: serviceLog, driver: "sqlite"}, nil
}
