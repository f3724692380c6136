package negotiation

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

type ThreadRepo interface {
	Create(dbc dbctx.Context, th *types.NegotiationThread) (*types.NegotiationThread, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.NegotiationThread, error)
	GetByQuote(dbc dbctx.Context, quoteID uuid.UUID, kind string) (*types.NegotiationThread, error)
	ListByParty(dbc dbctx.Context, partyID uuid.UUID, role string, statuses []string, limit int) ([]*types.NegotiationThread, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.NegotiationThread, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type threadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewThreadRepo(db *gorm.DB, log *logger.Logger) ThreadRepo {
	return &threadRepo{db: db, log: log.With("repo", "NegotiationThreadRepo")}
}

func (r *threadRepo) Create(dbc dbctx.Context, th *types.NegotiationThread) (*types.NegotiationThread, error) {
	if th == nil {
		return nil, fmt.Errorf("missing thread")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(th).Error; err != nil {
		return nil, err
	}
	return th, nil
}

// GetByID returns (nil, nil) when the thread does not exist.
func (r *threadRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.NegotiationThread, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.NegotiationThread
	if err := txx.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *threadRepo) GetByQuote(dbc dbctx.Context, quoteID uuid.UUID, kind string) (*types.NegotiationThread, error) {
	if quoteID == uuid.Nil {
		return nil, fmt.Errorf("missing quote_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.NegotiationThread
	if err := txx.WithContext(dbc.Ctx).
		Where("quote_id = ? AND kind = ?", quoteID, kind).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// ListByParty returns the party's threads, most recent activity first.
// An empty statuses slice matches every status.
func (r *threadRepo) ListByParty(dbc dbctx.Context, partyID uuid.UUID, role string, statuses []string, limit int) ([]*types.NegotiationThread, error) {
	if partyID == uuid.Nil {
		return nil, fmt.Errorf("missing party id")
	}
	col := ""
	switch role {
	case "client":
		col = "client_id"
	case "carrier":
		col = "carrier_id"
	default:
		return nil, fmt.Errorf("unsupported role %q", role)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).Where(col+" = ?", partyID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var out []*types.NegotiationThread
	if err := q.
		Order("last_message_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *threadRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.NegotiationThread, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByID requires dbc.Tx")
	}
	var out types.NegotiationThread
	if err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *threadRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.NegotiationThread{}).
		Where("id = ?", id).
		Updates(updates).Error
}
