package negotiation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/freightquote-backend/internal/domain"
	"github.com/yungbote/freightquote-backend/internal/platform/dbctx"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

type ActionReceiptRepo interface {
	Create(dbc dbctx.Context, rec *types.ActionReceipt) error
	// Find returns (nil, nil) when no receipt exists for the key.
	Find(dbc dbctx.Context, threadID uuid.UUID, actorRole string, sequence int) (*types.ActionReceipt, error)
}

type actionReceiptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActionReceiptRepo(db *gorm.DB, log *logger.Logger) ActionReceiptRepo {
	return &actionReceiptRepo{db: db, log: log.With("repo", "ActionReceiptRepo")}
}

func (r *actionReceiptRepo) Create(dbc dbctx.Context, rec *types.ActionReceipt) error {
	if rec == nil || rec.ThreadID == uuid.Nil || strings.TrimSpace(rec.ActorRole) == "" {
		return fmt.Errorf("receipt requires thread_id and actor_role")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).Create(rec).Error
}

func (r *actionReceiptRepo) Find(dbc dbctx.Context, threadID uuid.UUID, actorRole string, sequence int) (*types.ActionReceipt, error) {
	if threadID == uuid.Nil {
		return nil, fmt.Errorf("missing thread_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.ActionReceipt
	if err := txx.WithContext(dbc.Ctx).
		Where("thread_id = ? AND actor_role = ? AND sequence = ?", threadID, actorRole, sequence).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}
