package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/freightquote-backend/internal/data/repos"
	types "github.com/yungbote/freightquote-backend/internal/domain"
	"github.com/yungbote/freightquote-backend/internal/observability"
	"github.com/yungbote/freightquote-backend/internal/platform/dbctx"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

// SettlementGateway receives terminal financial outcomes. Deliver must be
// idempotent on ev.ID; the dispatcher redelivers after any error.
type SettlementGateway interface {
	Deliver(ctx context.Context, ev *types.SettlementEvent) error
}

type logSettlementGateway struct {
	log *logger.Logger
}

func NewLogSettlementGateway(log *logger.Logger) SettlementGateway {
	return &logSettlementGateway{log: log.With("gateway", "LogSettlementGateway")}
}

func (g *logSettlementGateway) Deliver(ctx context.Context, ev *types.SettlementEvent) error {
	g.log.Info("Settlement event",
		"event_id", ev.ID,
		"quote_id", ev.QuoteID,
		"outcome", ev.Outcome,
		"final_value", ev.FinalValue.StringFixed(2),
	)
	return nil
}

type SettlementDispatcherConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (c SettlementDispatcherConfig) withDefaults() SettlementDispatcherConfig {
	if c.Interval <= 0 {
		c.Interval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Minute
	}
	return c
}

// SettlementDispatcher drains the settlement outbox. Each event is claimed,
// delivered and marked inside its own transaction, so a crash between
// delivery and mark only causes a redelivery.
type SettlementDispatcher struct {
	db      *gorm.DB
	log     *logger.Logger
	events  repos.SettlementEventRepo
	gateway SettlementGateway
	metrics *observability.Metrics
	cfg     SettlementDispatcherConfig
	now     func() time.Time
}

func NewSettlementDispatcher(
	db *gorm.DB,
	log *logger.Logger,
	events repos.SettlementEventRepo,
	gateway SettlementGateway,
	metrics *observability.Metrics,
	cfg SettlementDispatcherConfig,
) *SettlementDispatcher {
	return &SettlementDispatcher{
		db:      db,
		log:     log.With("service", "SettlementDispatcher"),
		events:  events,
		gateway: gateway,
		metrics: metrics,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
	}
}

// Run polls until ctx is done.
func (d *SettlementDispatcher) Run(ctx context.Context) error {
	d.log.Info("Settlement dispatcher started", "interval", d.cfg.Interval.String(), "max_attempts", d.cfg.MaxAttempts)
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
			d.log.Warn("Settlement dispatch pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			d.log.Info("Settlement dispatcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// DispatchOnce handles up to BatchSize due events and returns how many it
// attempted.
func (d *SettlementDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	n := 0
	for n < d.cfg.BatchSize {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		handled, err := d.dispatchNext(ctx)
		if err != nil {
			return n, err
		}
		if !handled {
			return n, nil
		}
		n++
	}
	return n, nil
}

func (d *SettlementDispatcher) dispatchNext(ctx context.Context) (bool, error) {
	handled := false
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		now := d.now().UTC()
		due, err := d.events.ClaimDue(dbc, now, 1)
		if err != nil {
			return fmt.Errorf("claim settlement events: %w", err)
		}
		if len(due) == 0 {
			return nil
		}
		handled = true
		ev := due[0]
		if derr := d.gateway.Deliver(ctx, ev); derr != nil {
			attempts := ev.Attempts + 1
			exhausted := attempts >= d.cfg.MaxAttempts
			next := now.Add(d.backoff(attempts))
			result := "retry"
			if exhausted {
				result = "failed"
				d.log.Error("Settlement event delivery abandoned", "event_id", ev.ID, "quote_id", ev.QuoteID, "attempts", attempts, "error", derr)
			} else {
				d.log.Warn("Settlement event delivery failed", "event_id", ev.ID, "attempts", attempts, "next_attempt_at", next, "error", derr)
			}
			d.metrics.IncSettlementDelivery(ev.Outcome, result)
			return d.events.MarkAttemptFailed(dbc, ev.ID, attempts, derr.Error(), next, exhausted)
		}
		d.metrics.IncSettlementDelivery(ev.Outcome, "delivered")
		return d.events.MarkDelivered(dbc, ev.ID, now)
	})
	return handled, err
}

func (d *SettlementDispatcher) backoff(attempts int) time.Duration {
	wait := d.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		wait *= 2
		if wait >= d.cfg.MaxBackoff {
			return d.cfg.MaxBackoff
		}
	}
	return wait
}
