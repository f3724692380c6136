package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var NegotiationAggregateContract = Contract{
	Name:             "Freight.NegotiationAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes:            "Owns atomic quote/thread/message/receipt/settlement-outbox consistency for CT-e value negotiation.",
}

// NegotiationAggregate owns the value-negotiation protocol.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeInvalidTransition, CodeRetryBudgetExceeded,
// CodeConcurrentModification, CodeIdempotencyMismatch, CodeRetryable, CodeInternal.
type NegotiationAggregate interface {
	Aggregate

	// DeclareValue records the carrier's freight-document value. A value above the
	// accepted bid opens a negotiation thread; anything else moves the quote to in_transit.
	DeclareValue(ctx context.Context, in DeclareValueInput) (DeclareValueResult, error)

	// ApplyAction validates and commits one client or carrier decision.
	ApplyAction(ctx context.Context, in ApplyActionInput) (ApplyActionResult, error)

	// MarkRead clears the caller's unread flag. It never bumps the thread version.
	MarkRead(ctx context.Context, in MarkReadInput) error
}

type DeclareValueInput struct {
	QuoteID      uuid.UUID
	CarrierID    uuid.UUID
	Value        decimal.Decimal
	Reason       string
	DocumentRef  string
	CTeKey       string
	TrackingCode string
	TrackingURL  string
	DeclaredAt   time.Time
}

type DeclareValueResult struct {
	QuoteID           uuid.UUID
	QuoteStatus       string
	ThreadID          *uuid.UUID
	ThreadVersion     int
	SettlementEventID string
	Replayed          bool
}

type ApplyActionInput struct {
	ThreadID  uuid.UUID
	ActorID   uuid.UUID
	ActorRole string
	Action    string
	// Sequence is the thread version the actor acted on.
	Sequence int
	Value    *decimal.Decimal
	Reason   string
	At       time.Time
}

type ApplyActionResult struct {
	ThreadID             uuid.UUID       `json:"thread_id"`
	QuoteID              uuid.UUID       `json:"quote_id"`
	Action               string          `json:"action"`
	FromStatus           string          `json:"from_status"`
	ToStatus             string          `json:"to_status"`
	Version              int             `json:"version"`
	CarrierRetryCount    int             `json:"carrier_retry_count"`
	CurrentProposedValue decimal.Decimal `json:"current_proposed_value"`
	QuoteStatus          string          `json:"quote_status"`
	MessageSeq           int64           `json:"message_seq"`
	SettlementEventID    string          `json:"settlement_event_id,omitempty"`
	CommittedAt          time.Time       `json:"committed_at"`
	Replayed             bool            `json:"replayed"`
}

type MarkReadInput struct {
	ThreadID  uuid.UUID
	ActorID   uuid.UUID
	ActorRole string
}
