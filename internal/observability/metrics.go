package observability

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/freightquote-backend/internal/domain/settlement"
	"github.com/yungbote/freightquote-backend/internal/platform/dbctx"
	"github.com/yungbote/freightquote-backend/internal/platform/envutil"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge
	apiReqError prometheus.Counter
	rateLimited *prometheus.CounterVec

	aggregateOps       *prometheus.CounterVec
	aggregateLatency   *prometheus.HistogramVec
	aggregateConflicts *prometheus.CounterVec
	aggregateRetries   *prometheus.CounterVec

	negotiationTransitions *prometheus.CounterVec
	settlementDeliveries   *prometheus.CounterVec
	settlementBacklog      *prometheus.GaugeVec

	dbPool    *prometheus.GaugeVec
	redisUp   prometheus.Gauge
	redisPing prometheus.Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func scrapeInterval() time.Duration {
	d := envutil.Duration("METRICS_SCRAPE_INTERVAL", 10*time.Second)
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

// Init builds the process-wide registry. It returns nil when METRICS_ENABLED
// is off; every method is safe on a nil *Metrics.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fq_api_requests_total",
			Help: "API requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fq_api_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fq_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		apiReqError: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fq_api_requests_error_total",
			Help: "API requests answered with a 5xx status.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fq_api_rate_limited_total",
			Help: "Requests rejected by the per-actor rate limiter.",
		}, []string{"route"}),

		aggregateOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fq_aggregate_operations_total",
			Help: "Aggregate writes by operation and status.",
		}, []string{"op", "status"}),
		aggregateLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fq_aggregate_operation_duration_seconds",
			Help:    "Aggregate write latency including the transaction.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"op", "status"}),
		aggregateConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fq_aggregate_conflicts_total",
			Help: "Aggregate writes that lost a compare-and-set or hit a unique key.",
		}, []string{"op"}),
		aggregateRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fq_aggregate_retries_total",
			Help: "Aggregate writes that failed with a retryable error.",
		}, []string{"op"}),

		negotiationTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fq_negotiation_transitions_total",
			Help: "Committed negotiation transitions.",
		}, []string{"action", "from", "to"}),
		settlementDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fq_settlement_deliveries_total",
			Help: "Settlement outbox deliveries by outcome and result.",
		}, []string{"outcome", "result"}),
		settlementBacklog: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fq_settlement_outbox_events",
			Help: "Settlement outbox rows by status.",
		}, []string{"status"}),

		dbPool: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fq_db_pool",
			Help: "database/sql pool stats.",
		}, []string{"stat"}),
		redisUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fq_redis_up",
			Help: "1 when the last redis ping succeeded.",
		}),
		redisPing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fq_redis_ping_seconds",
			Help: "Latency of the last redis ping.",
		}),
	}
	m.registry.MustRegister(
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiReqError, m.rateLimited,
		m.aggregateOps, m.aggregateLatency, m.aggregateConflicts, m.aggregateRetries,
		m.negotiationTransitions, m.settlementDeliveries, m.settlementBacklog,
		m.dbPool, m.redisUp, m.redisPing,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
	if strings.HasPrefix(status, "5") {
		m.apiReqError.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) IncRateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route).Inc()
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.aggregateOps.WithLabelValues(op, status).Inc()
	m.aggregateLatency.WithLabelValues(op, status).Observe(dur.Seconds())
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.WithLabelValues(op).Inc()
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m == nil {
		return
	}
	m.aggregateRetries.WithLabelValues(op).Inc()
}

func (m *Metrics) IncNegotiationTransition(action, from, to string) {
	if m == nil {
		return
	}
	m.negotiationTransitions.WithLabelValues(action, from, to).Inc()
}

// IncSettlementDelivery records one dispatch attempt; result is delivered,
// retry or failed.
func (m *Metrics) IncSettlementDelivery(outcome, result string) {
	if m == nil {
		return
	}
	m.settlementDeliveries.WithLabelValues(outcome, result).Inc()
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.dbPool.WithLabelValues("open_connections").Set(float64(stats.OpenConnections))
				m.dbPool.WithLabelValues("in_use").Set(float64(stats.InUse))
				m.dbPool.WithLabelValues("idle").Set(float64(stats.Idle))
				m.dbPool.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
				m.dbPool.WithLabelValues("wait_duration_seconds").Set(stats.WaitDuration.Seconds())
				m.dbPool.WithLabelValues("max_open_connections").Set(float64(stats.MaxOpenConnections))
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

// SettlementCounter counts outbox rows in one status.
type SettlementCounter interface {
	CountByStatus(dbc dbctx.Context, status string) (int64, error)
}

// StartSettlementBacklogCollector samples the outbox row counts per status.
func (m *Metrics) StartSettlementBacklogCollector(ctx context.Context, log *logger.Logger, events SettlementCounter) {
	if m == nil || events == nil {
		return
	}
	interval := scrapeInterval()
	statuses := []string{settlement.StatusPending, settlement.StatusDelivered, settlement.StatusFailed}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				dbc := dbctx.New(ctx)
				for _, s := range statuses {
					n, err := events.CountByStatus(dbc, s)
					if err != nil {
						if log != nil {
							log.Warn("metrics: settlement backlog query failed", "status", s, "error", err)
						}
						continue
					}
					m.settlementBacklog.WithLabelValues(s).Set(float64(n))
				}
			}
		}
	}()
}
