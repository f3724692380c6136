package freight

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/freightquote-backend/internal/domain"
	"github.com/yungbote/freightquote-backend/internal/platform/dbctx"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

type QuoteRepo interface {
	Create(dbc dbctx.Context, q *types.Quote) (*types.Quote, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Quote, error)
	ListByClient(dbc dbctx.Context, clientID uuid.UUID, limit int) ([]*types.Quote, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Quote, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type quoteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuoteRepo(db *gorm.DB, log *logger.Logger) QuoteRepo {
	return &quoteRepo{db: db, log: log.With("repo", "QuoteRepo")}
}

func (r *quoteRepo) Create(dbc dbctx.Context, q *types.Quote) (*types.Quote, error) {
	if q == nil {
		return nil, fmt.Errorf("missing quote")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(q).Error; err != nil {
		return nil, err
	}
	return q, nil
}

// GetByID returns (nil, nil) when the quote does not exist.
func (r *quoteRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Quote, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Quote
	if err := txx.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *quoteRepo) ListByClient(dbc dbctx.Context, clientID uuid.UUID, limit int) ([]*types.Quote, error) {
	if clientID == uuid.Nil {
		return nil, fmt.Errorf("missing client_id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Quote
	if err := txx.WithContext(dbc.Ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *quoteRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Quote, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByID requires dbc.Tx")
	}
	var out types.Quote
	if err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *quoteRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.Quote{}).
		Where("id = ?", id).
		Updates(updates).Error
}
