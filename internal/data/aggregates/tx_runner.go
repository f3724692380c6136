package aggregates

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	domainagg "github.com/yungbote/freightquote-backend/internal/domain/aggregates"
	"github.com/yungbote/freightquote-backend/internal/platform/dbctx"
)

// TxRunner is the transaction boundary every aggregate write runs in.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db   *gorm.DB
	opts []*sql.TxOptions
}

// NewGormTxRunner returns a runner backed by GORM transactions. When db is
// itself a transaction, each write becomes a savepoint inside it.
func NewGormTxRunner(db *gorm.DB, opts ...*sql.TxOptions) TxRunner {
	return &gormTxRunner{db: db, opts: opts}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has nil db", nil)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	}, r.opts...)
}
