package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/freightquote-backend/internal/data/db"
	apphttp "github.com/yungbote/freightquote-backend/internal/http"
	httpMW "github.com/yungbote/freightquote-backend/internal/http/middleware"
	"github.com/yungbote/freightquote-backend/internal/observability"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
	"github.com/yungbote/freightquote-backend/internal/temporalx/temporalworker"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Metrics  *observability.Metrics
	Clients  Clients
	Repos    Repos
	Services Services
	Server   *apphttp.Server

	dbService    *db.Service
	limits       *httpMW.LimiterStore
	worker       *temporalworker.Runner
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.otel())
	metrics := observability.Init(log)

	dbService, err := db.Open(log, cfg.DB)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("open db: %w", err)
	}
	theDB := dbService.DB()
	if err := db.AutoMigrateAll(theDB); err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	repos := wireRepos(theDB, log, metrics, cfg.Policy)
	svcs := wireServices(theDB, log, cfg, repos, clients, metrics)
	server, limits := wireHTTP(theDB, log, cfg, svcs, metrics)

	var worker *temporalworker.Runner
	if clients.Temporal != nil && cfg.TemporalWorkerEnable {
		worker, err = temporalworker.NewRunner(log, clients.Temporal, cfg.Temporal, repos.Quotes)
		if err != nil {
			clients.Close()
			_ = dbService.Close()
			log.Sync()
			return nil, fmt.Errorf("init temporal worker: %w", err)
		}
	}

	log.Info("App initialized",
		"db_driver", dbService.Driver(),
		"redis", clients.Redis != nil,
		"temporal", clients.Temporal != nil,
		"max_carrier_retries", cfg.Policy.MaxCarrierRetries,
	)
	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Metrics:      metrics,
		Clients:      clients,
		Repos:        repos,
		Services:     svcs,
		Server:       server,
		dbService:    dbService,
		limits:       limits,
		worker:       worker,
		otelShutdown: otelShutdown,
	}, nil
}

// Run blocks until ctx is done or one of the long-running parts fails. The
// first failure cancels the others.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.Metrics.StartServer(gctx, a.Log, a.Cfg.MetricsAddr)
	a.Metrics.StartPostgresCollector(gctx, a.Log, a.DB)
	a.Metrics.StartSettlementBacklogCollector(gctx, a.Log, a.Repos.Settlements)
	if a.Clients.Redis != nil {
		a.Metrics.StartRedisCollector(gctx, a.Log, a.Clients.Redis)
	}
	a.limits.StartJanitor(gctx, time.Minute)

	g.Go(func() error {
		return a.Server.Run(gctx, ":"+a.Cfg.Port)
	})
	g.Go(func() error {
		return a.Services.Dispatcher.Run(gctx)
	})
	if a.worker != nil {
		g.Go(func() error {
			return a.worker.Run(gctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	a.Clients.Close()
	if a.dbService != nil {
		_ = a.dbService.Close()
	}
	a.Log.Sync()
}
