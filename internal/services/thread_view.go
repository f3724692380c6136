package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	types "github.com/yungbote/freightquote-backend/internal/domain"
	domneg "github.com/yungbote/freightquote-backend/internal/domain/negotiation"
	"github.com/yungbote/freightquote-backend/internal/modules/negotiation"
)

// ThreadView is the polling read model of a negotiation thread.
type ThreadView struct {
	ThreadID                 uuid.UUID                   `json:"thread_id"`
	QuoteID                  uuid.UUID                   `json:"quote_id"`
	ClientID                 uuid.UUID                   `json:"client_id"`
	CarrierID                uuid.UUID                   `json:"carrier_id"`
	Status                   string                      `json:"status"`
	Version                  int                         `json:"version"`
	OriginalValue            decimal.Decimal             `json:"original_value"`
	CurrentProposedValue     decimal.Decimal             `json:"current_proposed_value"`
	CarrierRetryCount        int                         `json:"carrier_retry_count"`
	MaxCarrierRetries        int                         `json:"max_carrier_retries"`
	RemainingCarrierAttempts int                         `json:"remaining_carrier_attempts"`
	LastRejectionReason      *string                     `json:"last_rejection_reason,omitempty"`
	UnreadByClient           bool                        `json:"unread_by_client"`
	UnreadByCarrier          bool                        `json:"unread_by_carrier"`
	LastMessageAt            time.Time                   `json:"last_message_at"`
	CreatedAt                time.Time                   `json:"created_at"`
	ExpiresAt                time.Time                   `json:"expires_at"`
	Expired                  bool                        `json:"expired"`
	PollIntervalMs           int64                       `json:"poll_interval_ms"`
	Messages                 []*types.NegotiationMessage `json:"messages"`
}

func newThreadView(th *types.NegotiationThread, msgs []*types.NegotiationMessage) *ThreadView {
	if msgs == nil {
		msgs = []*types.NegotiationMessage{}
	}
	return &ThreadView{
		ThreadID:                 th.ID,
		QuoteID:                  th.QuoteID,
		ClientID:                 th.ClientID,
		CarrierID:                th.CarrierID,
		Status:                   th.Status,
		Version:                  th.Version,
		OriginalValue:            th.OriginalValue,
		CurrentProposedValue:     th.CurrentProposedValue,
		CarrierRetryCount:        th.CarrierRetryCount,
		MaxCarrierRetries:        th.MaxCarrierRetries,
		RemainingCarrierAttempts: th.RemainingCarrierAttempts(),
		LastRejectionReason:      th.LastRejectionReason,
		UnreadByClient:           th.UnreadByClient,
		UnreadByCarrier:          th.UnreadByCarrier,
		LastMessageAt:            th.LastMessageAt,
		CreatedAt:                th.CreatedAt,
		ExpiresAt:                th.ExpiresAt,
		Messages:                 msgs,
	}
}

// refresh recomputes the fields that depend on the read time.
func (v *ThreadView) refresh(now time.Time, poll time.Duration) {
	terminal := domneg.IsTerminal(v.Status)
	v.Expired = domneg.IsExpired(v.Status, v.ExpiresAt, now)
	v.PollIntervalMs = 0
	if !terminal {
		v.PollIntervalMs = poll.Milliseconds()
	}
}

// ThreadSummary is one row of a party's negotiation inbox.
type ThreadSummary struct {
	ThreadID                 uuid.UUID       `json:"thread_id"`
	QuoteID                  uuid.UUID       `json:"quote_id"`
	Status                   string          `json:"status"`
	Version                  int             `json:"version"`
	OriginalValue            decimal.Decimal `json:"original_value"`
	CurrentProposedValue     decimal.Decimal `json:"current_proposed_value"`
	Delta                    decimal.Decimal `json:"delta"`
	CarrierRetryCount        int             `json:"carrier_retry_count"`
	RemainingCarrierAttempts int             `json:"remaining_carrier_attempts"`
	LastRejectionReason      *string         `json:"last_rejection_reason,omitempty"`
	Unread                   bool            `json:"unread"`
	LastMessageAt            time.Time       `json:"last_message_at"`
	ExpiresAt                time.Time       `json:"expires_at"`
	Expired                  bool            `json:"expired"`
}

func newThreadSummary(th *types.NegotiationThread, role string, now time.Time) *ThreadSummary {
	unread := th.UnreadByClient
	if role == string(negotiation.RoleCarrier) {
		unread = th.UnreadByCarrier
	}
	return &ThreadSummary{
		ThreadID:                 th.ID,
		QuoteID:                  th.QuoteID,
		Status:                   th.Status,
		Version:                  th.Version,
		OriginalValue:            th.OriginalValue,
		CurrentProposedValue:     th.CurrentProposedValue,
		Delta:                    th.CurrentProposedValue.Sub(th.OriginalValue),
		CarrierRetryCount:        th.CarrierRetryCount,
		RemainingCarrierAttempts: th.RemainingCarrierAttempts(),
		LastRejectionReason:      th.LastRejectionReason,
		Unread:                   unread,
		LastMessageAt:            th.LastMessageAt,
		ExpiresAt:                th.ExpiresAt,
		Expired:                  th.Expired(now),
	}
}
