package settlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/freightquote-backend/internal/domain"
	domset "github.com/yungbote/freightquote-backend/internal/domain/settlement"
	"github.com/yungbote/freightquote-backend/internal/platform/dbctx"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

type EventRepo interface {
	Create(dbc dbctx.Context, ev *types.SettlementEvent) error
	GetByID(dbc dbctx.Context, id string) (*types.SettlementEvent, error)
	ListByQuote(dbc dbctx.Context, quoteID uuid.UUID) ([]*types.SettlementEvent, error)
	// ClaimDue locks up to limit pending events whose available_at has passed.
	// Rows already locked by another dispatcher are skipped.
	ClaimDue(dbc dbctx.Context, now time.Time, limit int) ([]*types.SettlementEvent, error)
	MarkDelivered(dbc dbctx.Context, id string, at time.Time) error
	MarkAttemptFailed(dbc dbctx.Context, id string, attempts int, lastErr string, nextAt time.Time, exhausted bool) error
	CountByStatus(dbc dbctx.Context, status string) (int64, error)
	ListByStatus(dbc dbctx.Context, status string, limit int) ([]*types.SettlementEvent, error)
	// Requeue moves a failed event back to pending with a fresh attempt
	// budget. It reports false when the event was not in failed.
	Requeue(dbc dbctx.Context, id string, at time.Time) (bool, error)
}

type eventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEventRepo(db *gorm.DB, log *logger.Logger) EventRepo {
	return &eventRepo{db: db, log: log.With("repo", "SettlementEventRepo")}
}

func (r *eventRepo) Create(dbc dbctx.Context, ev *types.SettlementEvent) error {
	if ev == nil || strings.TrimSpace(ev.ID) == "" {
		return fmt.Errorf("settlement event requires id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).Create(ev).Error
}

func (r *eventRepo) GetByID(dbc dbctx.Context, id string) (*types.SettlementEvent, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.SettlementEvent
	if err := txx.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *eventRepo) ListByQuote(dbc dbctx.Context, quoteID uuid.UUID) ([]*types.SettlementEvent, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.SettlementEvent
	if err := txx.WithContext(dbc.Ctx).
		Where("quote_id = ?", quoteID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *eventRepo) ClaimDue(dbc dbctx.Context, now time.Time, limit int) ([]*types.SettlementEvent, error) {
	if dbc.Tx == nil {
		return nil, fmt.Errorf("ClaimDue requires dbc.Tx")
	}
	if limit <= 0 {
		limit = 10
	}
	var out []*types.SettlementEvent
	if err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND available_at <= ?", domset.StatusPending, now).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *eventRepo) MarkDelivered(dbc dbctx.Context, id string, at time.Time) error {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.SettlementEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       domset.StatusDelivered,
			"delivered_at": at,
			"last_error":   "",
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (r *eventRepo) MarkAttemptFailed(dbc dbctx.Context, id string, attempts int, lastErr string, nextAt time.Time, exhausted bool) error {
	status := domset.StatusPending
	if exhausted {
		status = domset.StatusFailed
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.SettlementEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       status,
			"attempts":     attempts,
			"last_error":   lastErr,
			"available_at": nextAt,
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (r *eventRepo) CountByStatus(dbc dbctx.Context, status string) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var n int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.SettlementEvent{}).
		Where("status = ?", status).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *eventRepo) ListByStatus(dbc dbctx.Context, status string, limit int) ([]*types.SettlementEvent, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).Where("status = ?", status).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.SettlementEvent
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *eventRepo) Requeue(dbc dbctx.Context, id string, at time.Time) (bool, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Model(&types.SettlementEvent{}).
		Where("id = ? AND status = ?", id, domset.StatusFailed).
		Updates(map[string]interface{}{
			"status":       domset.StatusPending,
			"attempts":     0,
			"last_error":   "",
			"available_at": at,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
