package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/freightquote-backend/internal/platform/gcp"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
	"github.com/yungbote/freightquote-backend/internal/platform/redisclient"
	"github.com/yungbote/freightquote-backend/internal/temporalx"
)

// Clients holds the external connections. Each field is nil when the
// corresponding backend is not configured.
type Clients struct {
	Redis     *goredis.Client
	Documents gcp.DocumentStore
	Temporal  temporalsdkclient.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	rdb, err := redisclient.NewClient(log, redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return out, fmt.Errorf("init redis: %w", err)
	}
	out.Redis = rdb
	if rdb == nil {
		log.Warn("REDIS_ADDR not set; thread reads go straight to the database")
	}

	if cfg.DocumentVerifyGCS {
		storageCfg, err := gcp.LoadStorageConfig()
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("load storage config: %w", err)
		}
		store, err := gcp.NewDocumentStore(ctx, log, storageCfg)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init document store: %w", err)
		}
		out.Documents = store
	}

	if cfg.Temporal.Enabled() && cfg.Temporal.AutoRegisterNamespace {
		if err := temporalx.EnsureNamespace(ctx, log, cfg.Temporal); err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("ensure temporal namespace: %w", err)
		}
	}
	tc, err := temporalx.NewClient(ctx, log, cfg.Temporal)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init temporal client: %w", err)
	}
	out.Temporal = tc
	return out, nil
}

func (c Clients) Close() {
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Documents != nil {
		_ = c.Documents.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
