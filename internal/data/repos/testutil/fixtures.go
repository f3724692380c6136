package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	types "github.com/yungbote/freightquote-backend/internal/domain"
	"github.com/yungbote/freightquote-backend/internal/domain/freight"
	domneg "github.com/yungbote/freightquote-backend/internal/domain/negotiation"
)

func SeedOpenQuote(tb testing.TB, ctx context.Context, tx *gorm.DB, clientID uuid.UUID) *types.Quote {
	tb.Helper()
	q := &types.Quote{
		ID:                   uuid.New(),
		ClientID:             clientID,
		Status:               freight.QuoteStatusOpen,
		ProductInfo:          "pallets of ceramic tiles",
		Weight:               decimal.RequireFromString("1250.500"),
		DeclaredInvoiceValue: decimal.RequireFromString("48000.00"),
		Origin:               "Curitiba/PR",
		Destination:          "Santos/SP",
	}
	if err := tx.WithContext(ctx).Create(q).Error; err != nil {
		tb.Fatalf("seed quote: %v", err)
	}
	return q
}

// SeedAcceptedQuote creates a quote whose bid of bidValue from carrierID is
// already accepted and waiting for pickup.
func SeedAcceptedQuote(tb testing.TB, ctx context.Context, tx *gorm.DB, clientID, carrierID uuid.UUID, bidValue string) *types.Quote {
	tb.Helper()
	bid := decimal.RequireFromString(bidValue)
	q := SeedOpenQuote(tb, ctx, tx, clientID)
	resp := &types.CarrierResponse{
		ID:           uuid.New(),
		QuoteID:      q.ID,
		CarrierID:    carrierID,
		Status:       freight.ResponseStatusAccepted,
		BaseValue:    bid,
		TotalValue:   bid,
		LeadTimeDays: 3,
	}
	if err := tx.WithContext(ctx).Create(resp).Error; err != nil {
		tb.Fatalf("seed carrier response: %v", err)
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":               freight.QuoteStatusAwaitingPickup,
		"carrier_id":           carrierID,
		"accepted_response_id": resp.ID,
		"accepted_bid_value":   bid,
		"accepted_at":          now,
	}
	if err := tx.WithContext(ctx).Model(&types.Quote{}).Where("id = ?", q.ID).Updates(updates).Error; err != nil {
		tb.Fatalf("accept seeded quote: %v", err)
	}
	var out types.Quote
	if err := tx.WithContext(ctx).Where("id = ?", q.ID).Take(&out).Error; err != nil {
		tb.Fatalf("reload seeded quote: %v", err)
	}
	return &out
}

func SeedThread(tb testing.TB, ctx context.Context, tx *gorm.DB, q *types.Quote, status string, retries int) *types.NegotiationThread {
	tb.Helper()
	now := time.Now().UTC()
	th := &types.NegotiationThread{
		ID:                   uuid.New(),
		QuoteID:              q.ID,
		Kind:                 domneg.KindValueNegotiation,
		ClientID:             q.ClientID,
		CarrierID:            *q.CarrierID,
		Status:               status,
		OriginalValue:        q.AcceptedBidValue.Decimal,
		CurrentProposedValue: q.AcceptedBidValue.Decimal.Add(decimal.NewFromInt(100)),
		CarrierRetryCount:    retries,
		MaxCarrierRetries:    3,
		Version:              1,
		LastMessageAt:        now,
		ExpiresAt:            now.Add(7 * 24 * time.Hour),
	}
	if err := tx.WithContext(ctx).Create(th).Error; err != nil {
		tb.Fatalf("seed thread: %v", err)
	}
	return th
}
