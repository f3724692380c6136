package freight

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	QuoteStatusOpen                  = "open"
	QuoteStatusBidding               = "bidding"
	QuoteStatusAccepted              = "accepted"
	QuoteStatusAwaitingPickup        = "awaiting_pickup"
	QuoteStatusAwaitingValueApproval = "awaiting_value_approval"
	QuoteStatusInTransit             = "in_transit"
	QuoteStatusSettled               = "settled"
	QuoteStatusReturned              = "returned"
)

// Quote is a shipper's freight request plus the bid it accepted and the
// settlement fields the carrier's freight document (CT-e) fills in.
type Quote struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"client_id"`
	CarrierID *uuid.UUID `gorm:"type:uuid;column:carrier_id;index" json:"carrier_id,omitempty"`
	Status    string     `gorm:"column:status;not null;index" json:"status"`
	Version   int        `gorm:"column:version;not null;default:1" json:"version"`

	ProductInfo          string          `gorm:"column:product_info;not null" json:"product_info"`
	Weight               decimal.Decimal `gorm:"column:weight;type:numeric(14,3);not null" json:"weight"`
	DeclaredInvoiceValue decimal.Decimal `gorm:"column:declared_invoice_value;type:numeric(14,2);not null" json:"declared_invoice_value"`
	Origin               string          `gorm:"column:origin" json:"origin,omitempty"`
	Destination          string          `gorm:"column:destination" json:"destination,omitempty"`

	AcceptedResponseID *uuid.UUID          `gorm:"type:uuid;column:accepted_response_id" json:"accepted_response_id,omitempty"`
	AcceptedBidValue   decimal.NullDecimal `gorm:"column:accepted_bid_value;type:numeric(14,2)" json:"accepted_bid_value"`
	AcceptedAt         *time.Time          `gorm:"column:accepted_at" json:"accepted_at,omitempty"`

	CarrierDeclaredValue   decimal.NullDecimal `gorm:"column:carrier_declared_value;type:numeric(14,2)" json:"carrier_declared_value"`
	ValueDelta             decimal.NullDecimal `gorm:"column:value_delta;type:numeric(14,2)" json:"value_delta"`
	IncreaseReason         string              `gorm:"column:increase_reason" json:"increase_reason,omitempty"`
	ClientApprovedValue    bool                `gorm:"column:client_approved_value;not null;default:false" json:"client_approved_value"`
	ClientRejectedValue    bool                `gorm:"column:client_rejected_value;not null;default:false" json:"client_rejected_value"`
	ValueDecisionTimestamp *time.Time          `gorm:"column:value_decision_timestamp" json:"value_decision_timestamp,omitempty"`

	CTeKey       string     `gorm:"column:cte_key" json:"cte_key,omitempty"`
	DocumentRef  string     `gorm:"column:document_ref" json:"document_ref,omitempty"`
	TrackingCode string     `gorm:"column:tracking_code" json:"tracking_code,omitempty"`
	TrackingURL  string     `gorm:"column:tracking_url" json:"tracking_url,omitempty"`
	DeclaredAt   *time.Time `gorm:"column:declared_at" json:"declared_at,omitempty"`
	DeliveredAt  *time.Time `gorm:"column:delivered_at" json:"delivered_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Quote) TableName() string { return "quotes" }

func (q *Quote) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.Version == 0 {
		q.Version = 1
	}
	return nil
}

// HasAcceptedBid reports whether the commercial facts are frozen.
func (q *Quote) HasAcceptedBid() bool {
	return q != nil && q.AcceptedBidValue.Valid && q.CarrierID != nil
}

// IsCarrier reports whether id is the carrier that won the quote.
func (q *Quote) IsCarrier(id uuid.UUID) bool {
	return q != nil && q.CarrierID != nil && *q.CarrierID == id && id != uuid.Nil
}
