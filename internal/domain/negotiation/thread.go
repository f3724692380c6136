package negotiation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const KindValueNegotiation = "value_negotiation"

const (
	StatusAwaitingClient  = "awaiting_client"
	StatusAwaitingCarrier = "awaiting_carrier"
	StatusApproved        = "approved"
	StatusRejectedFinal   = "rejected_final"
)

// Thread is the versioned negotiation aggregate root. Messages live in
// negotiation_messages and are only ever appended.
type Thread struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	QuoteID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_thread_quote_kind" json:"quote_id"`
	Kind      string    `gorm:"column:kind;not null;uniqueIndex:idx_thread_quote_kind" json:"kind"`
	ClientID  uuid.UUID `gorm:"type:uuid;not null;index" json:"client_id"`
	CarrierID uuid.UUID `gorm:"type:uuid;not null;index" json:"carrier_id"`

	Status               string          `gorm:"column:status;not null;index" json:"status"`
	OriginalValue        decimal.Decimal `gorm:"column:original_value;type:numeric(14,2);not null" json:"original_value"`
	CurrentProposedValue decimal.Decimal `gorm:"column:current_proposed_value;type:numeric(14,2);not null" json:"current_proposed_value"`
	CarrierRetryCount    int             `gorm:"column:carrier_retry_count;not null;default:0" json:"carrier_retry_count"`
	MaxCarrierRetries    int             `gorm:"column:max_carrier_retries;not null" json:"max_carrier_retries"`
	LastRejectionReason  *string         `gorm:"column:last_rejection_reason" json:"last_rejection_reason,omitempty"`

	UnreadByClient  bool      `gorm:"column:unread_by_client;not null;default:false" json:"unread_by_client"`
	UnreadByCarrier bool      `gorm:"column:unread_by_carrier;not null;default:false" json:"unread_by_carrier"`
	LastMessageAt   time.Time `gorm:"column:last_message_at;not null" json:"last_message_at"`

	Version int   `gorm:"column:version;not null;default:1" json:"version"`
	NextSeq int64 `gorm:"column:next_seq;not null;default:0" json:"next_seq"`

	ExpiresAt time.Time `gorm:"column:expires_at;not null;index" json:"expires_at"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Thread) TableName() string { return "negotiation_threads" }

func (t *Thread) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	return nil
}

func IsStatus(status string) bool {
	switch status {
	case StatusAwaitingClient, StatusAwaitingCarrier, StatusApproved, StatusRejectedFinal:
		return true
	}
	return false
}

func IsTerminal(status string) bool {
	return status == StatusApproved || status == StatusRejectedFinal
}

func (t *Thread) Terminal() bool { return t != nil && IsTerminal(t.Status) }

// IsExpired is derived only; an expired thread keeps accepting actions.
func IsExpired(status string, expiresAt, now time.Time) bool {
	if IsTerminal(status) || expiresAt.IsZero() {
		return false
	}
	return !now.Before(expiresAt)
}

func (t *Thread) Expired(now time.Time) bool { return t != nil && IsExpired(t.Status, t.ExpiresAt, now) }

func (t *Thread) RemainingCarrierAttempts() int {
	if t == nil {
		return 0
	}
	left := t.MaxCarrierRetries - t.CarrierRetryCount
	if left < 0 || t.Terminal() {
		return 0
	}
	return left
}
