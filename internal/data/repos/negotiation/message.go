package negotiation

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/freightquote-backend/internal/domain"
	"github.com/yungbote/freightquote-backend/internal/platform/dbctx"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

// MessageRepo is append-only: there is no update or delete.
type MessageRepo interface {
	Append(dbc dbctx.Context, msgs ...*types.NegotiationMessage) error
	ListByThread(dbc dbctx.Context, threadID uuid.UUID, afterSeq int64, limit int) ([]*types.NegotiationMessage, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "NegotiationMessageRepo")}
}

func (r *messageRepo) Append(dbc dbctx.Context, msgs ...*types.NegotiationMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	for _, m := range msgs {
		if m == nil || m.ThreadID == uuid.Nil || m.Seq <= 0 {
			return fmt.Errorf("message requires thread_id and positive seq")
		}
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).Create(&msgs).Error
}

// ListByThread returns messages with seq > afterSeq in commit order.
func (r *messageRepo) ListByThread(dbc dbctx.Context, threadID uuid.UUID, afterSeq int64, limit int) ([]*types.NegotiationMessage, error) {
	if threadID == uuid.Nil {
		return nil, fmt.Errorf("missing thread_id")
	}
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.NegotiationMessage
	if err := txx.WithContext(dbc.Ctx).
		Where("thread_id = ? AND seq > ?", threadID, afterSeq).
		Order("seq ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

