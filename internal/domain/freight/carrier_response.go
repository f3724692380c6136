package freight

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ResponseStatusSubmitted = "submitted"
	ResponseStatusAccepted  = "accepted"
	ResponseStatusDeclined  = "declined"
)

type Surcharge struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// CarrierResponse is a carrier's priced offer against a quote.
type CarrierResponse struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	QuoteID      uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_response_quote_carrier" json:"quote_id"`
	CarrierID    uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_response_quote_carrier" json:"carrier_id"`
	Status       string          `gorm:"column:status;not null;index" json:"status"`
	BaseValue    decimal.Decimal `gorm:"column:base_value;type:numeric(14,2);not null" json:"base_value"`
	Surcharges   datatypes.JSON  `gorm:"column:surcharges" json:"surcharges"`
	TotalValue   decimal.Decimal `gorm:"column:total_value;type:numeric(14,2);not null" json:"total_value"`
	LeadTimeDays int             `gorm:"column:lead_time_days;not null" json:"lead_time_days"`
	Notes        string          `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt    time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null" json:"updated_at"`
}

func (CarrierResponse) TableName() string { return "carrier_responses" }

func (r *CarrierResponse) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// SumTotal returns base plus every surcharge amount.
func SumTotal(base decimal.Decimal, surcharges []Surcharge) decimal.Decimal {
	total := base
	for _, s := range surcharges {
		total = total.Add(s.Amount)
	}
	return total
}
