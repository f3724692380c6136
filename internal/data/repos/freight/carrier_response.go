package freight

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/freightquote-backend/internal/domain"
	"github.com/yungbote/freightquote-backend/internal/platform/dbctx"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

type CarrierResponseRepo interface {
	Create(dbc dbctx.Context, resp *types.CarrierResponse) (*types.CarrierResponse, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CarrierResponse, error)
	ListByQuote(dbc dbctx.Context, quoteID uuid.UUID) ([]*types.CarrierResponse, error)
	// SetStatusForQuote updates every response of quoteID except keepID.
	SetStatusForQuote(dbc dbctx.Context, quoteID, keepID uuid.UUID, status string) error
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, status string) error
}

type carrierResponseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCarrierResponseRepo(db *gorm.DB, log *logger.Logger) CarrierResponseRepo {
	return &carrierResponseRepo{db: db, log: log.With("repo", "CarrierResponseRepo")}
}

func (r *carrierResponseRepo) Create(dbc dbctx.Context, resp *types.CarrierResponse) (*types.CarrierResponse, error) {
	if resp == nil {
		return nil, fmt.Errorf("missing carrier response")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(resp).Error; err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *carrierResponseRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CarrierResponse, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.CarrierResponse
	if err := txx.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *carrierResponseRepo) ListByQuote(dbc dbctx.Context, quoteID uuid.UUID) ([]*types.CarrierResponse, error) {
	if quoteID == uuid.Nil {
		return nil, fmt.Errorf("missing quote_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.CarrierResponse
	if err := txx.WithContext(dbc.Ctx).
		Where("quote_id = ?", quoteID).
		Order("total_value ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *carrierResponseRepo) SetStatusForQuote(dbc dbctx.Context, quoteID, keepID uuid.UUID, status string) error {
	if quoteID == uuid.Nil {
		return fmt.Errorf("missing quote_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.CarrierResponse{}).
		Where("quote_id = ? AND id <> ?", quoteID, keepID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()}).Error
}

func (r *carrierResponseRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, status string) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.CarrierResponse{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()}).Error
}
