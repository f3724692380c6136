package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OutcomeApproved = "approved"
	OutcomeReturned = "returned"
	OutcomeSettled  = "settled"
)

const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Event is the outbox row behind SettlementEvent{quoteId, outcome, finalValue}.
// ID is a ULID so rows sort by creation.
type Event struct {
	ID          string          `gorm:"column:id;size:26;primaryKey" json:"id"`
	QuoteID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"quote_id"`
	ThreadID    *uuid.UUID      `gorm:"type:uuid;column:thread_id" json:"thread_id,omitempty"`
	Outcome     string          `gorm:"column:outcome;not null" json:"outcome"`
	FinalValue  decimal.Decimal `gorm:"column:final_value;type:numeric(14,2);not null" json:"final_value"`
	Status      string          `gorm:"column:status;not null;index:idx_settlement_due,priority:1" json:"status"`
	AvailableAt time.Time       `gorm:"column:available_at;not null;index:idx_settlement_due,priority:2" json:"available_at"`
	Attempts    int             `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError   string          `gorm:"column:last_error" json:"last_error,omitempty"`
	DeliveredAt *time.Time      `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updated_at"`
}

func (Event) TableName() string { return "settlement_events" }
