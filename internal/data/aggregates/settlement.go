package aggregates

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/yungbote/freightquote-backend/internal/data/repos"
	types "github.com/yungbote/freightquote-backend/internal/domain"
	"github.com/yungbote/freightquote-backend/internal/domain/settlement"
	"github.com/yungbote/freightquote-backend/internal/platform/dbctx"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewEventID returns a ULID for at. IDs minted in the same millisecond stay ordered.
func NewEventID(at time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy).String()
}

// enqueueSettlement writes the outbox row inside the caller's transaction.
func enqueueSettlement(dbc dbctx.Context, events repos.SettlementEventRepo, newID func(time.Time) string, quoteID uuid.UUID, threadID *uuid.UUID, outcome string, finalValue decimal.Decimal, at time.Time) (string, error) {
	if newID == nil {
		newID = NewEventID
	}
	ev := &types.SettlementEvent{
		ID:          newID(at),
		QuoteID:     quoteID,
		ThreadID:    threadID,
		Outcome:     outcome,
		FinalValue:  finalValue,
		Status:      settlement.StatusPending,
		AvailableAt: at,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	if err := events.Create(dbc, ev); err != nil {
		return "", err
	}
	return ev.ID, nil
}
