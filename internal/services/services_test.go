package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yungbote/freightquote-backend/internal/data/aggregates"
	"github.com/yungbote/freightquote-backend/internal/data/repos"
	repotest "github.com/yungbote/freightquote-backend/internal/data/repos/testutil"
	types "github.com/yungbote/freightquote-backend/internal/domain"
	"github.com/yungbote/freightquote-backend/internal/modules/negotiation"
	"github.com/yungbote/freightquote-backend/internal/platform/ctxutil"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

type memoryThreadCache struct {
	mu            sync.Mutex
	views         map[uuid.UUID]ThreadView
	hits          int
	invalidations int
}

func newMemoryThreadCache() *memoryThreadCache {
	return &memoryThreadCache{views: map[uuid.UUID]ThreadView{}}
}

func (c *memoryThreadCache) Get(_ context.Context, id uuid.UUID) (*ThreadView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[id]
	if !ok {
		return nil, false
	}
	c.hits++
	return &v, true
}

func (c *memoryThreadCache) Set(_ context.Context, v *ThreadView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[v.ThreadID] = *v
}

func (c *memoryThreadCache) Invalidate(_ context.Context, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, id)
	c.invalidations++
}

type serviceHarness struct {
	set     repos.Set
	quotes  QuoteService
	neg     NegotiationService
	cache   *memoryThreadCache
	client  uuid.UUID
	carrier uuid.UUID
}

func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	log := repotest.Logger(t)
	set := repos.NewSet(tx, log)
	base := aggregates.BaseDeps{DB: tx, Log: log, Runner: aggregates.NewGormTxRunner(tx), CASGuard: aggregates.NewCASGuard(tx)}
	policy := negotiation.DefaultPolicy()

	quoteAgg := aggregates.NewQuoteAggregate(aggregates.QuoteAggregateDeps{
		Base:        base,
		Quotes:      set.Quotes,
		Responses:   set.Responses,
		Settlements: set.Settlements,
	})
	negAgg := aggregates.NewNegotiationAggregate(aggregates.NegotiationAggregateDeps{
		Base:        base,
		Quotes:      set.Quotes,
		Threads:     set.Threads,
		Messages:    set.Messages,
		Receipts:    set.Receipts,
		Settlements: set.Settlements,
		Policy:      policy,
	})
	cache := newMemoryThreadCache()
	return &serviceHarness{
		set:     set,
		quotes:  NewQuoteService(log, set.Quotes, set.Responses, quoteAgg),
		neg:     NewNegotiationService(log, set.Threads, set.Messages, negAgg, cache, nil, policy),
		cache:   cache,
		client:  uuid.New(),
		carrier: uuid.New(),
	}
}

func actorCtx(role string, id uuid.UUID) context.Context {
	return ctxutil.WithActor(context.Background(), &ctxutil.Actor{PartyID: id, Role: role})
}

func (h *serviceHarness) clientCtx() context.Context  { return actorCtx("client", h.client) }
func (h *serviceHarness) carrierCtx() context.Context { return actorCtx("carrier", h.carrier) }

// acceptedQuote walks a quote through bidding to awaiting_pickup.
func (h *serviceHarness) acceptedQuote(t *testing.T, bid string) *types.Quote {
	t.Helper()
	q := createQuote(t, h.quotes, h.clientCtx())
	b, err := h.quotes.SubmitBid(h.carrierCtx(), submitBidInput(q.ID, bid))
	if err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}
	if _, err := h.quotes.AcceptBid(h.clientCtx(), q.ID, b.ResponseID); err != nil {
		t.Fatalf("AcceptBid: %v", err)
	}
	q, err = h.quotes.MarkAwaitingPickup(h.carrierCtx(), q.ID)
	if err != nil {
		t.Fatalf("MarkAwaitingPickup: %v", err)
	}
	return q
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func testLogger(t *testing.T) *logger.Logger { return repotest.Logger(t) }
