package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var QuoteAggregateContract = Contract{
	Name:             "Freight.QuoteAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyTableRepoQueries,
	Notes:            "Owns quote lifecycle before and after value negotiation: bidding, acceptance, pickup, delivery.",
}

// QuoteAggregate owns quote lifecycle writes outside the negotiation window.
type QuoteAggregate interface {
	Aggregate

	CreateQuote(ctx context.Context, in CreateQuoteInput) (QuoteResult, error)
	SubmitBid(ctx context.Context, in SubmitBidInput) (SubmitBidResult, error)
	AcceptBid(ctx context.Context, in AcceptBidInput) (QuoteResult, error)
	MarkAwaitingPickup(ctx context.Context, in CarrierQuoteInput) (QuoteResult, error)
	MarkDelivered(ctx context.Context, in CarrierQuoteInput) (QuoteResult, error)
}

type CreateQuoteInput struct {
	ClientID             uuid.UUID
	ProductInfo          string
	Weight               decimal.Decimal
	DeclaredInvoiceValue decimal.Decimal
	Origin               string
	Destination          string
}

type SurchargeInput struct {
	Label  string
	Amount decimal.Decimal
}

type SubmitBidInput struct {
	QuoteID      uuid.UUID
	CarrierID    uuid.UUID
	BaseValue    decimal.Decimal
	Surcharges   []SurchargeInput
	LeadTimeDays int
	Notes        string
}

type SubmitBidResult struct {
	QuoteID     uuid.UUID
	ResponseID  uuid.UUID
	TotalValue  decimal.Decimal
	QuoteStatus string
}

type AcceptBidInput struct {
	QuoteID    uuid.UUID
	ClientID   uuid.UUID
	ResponseID uuid.UUID
}

type CarrierQuoteInput struct {
	QuoteID   uuid.UUID
	CarrierID uuid.UUID
	At        time.Time
}

type QuoteResult struct {
	QuoteID           uuid.UUID
	Status            string
	Version           int
	SettlementEventID string
}
