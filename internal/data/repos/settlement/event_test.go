package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/yungbote/freightquote-backend/internal/data/repos/testutil"
	types "github.com/yungbote/freightquote-backend/internal/domain"
	domset "github.com/yungbote/freightquote-backend/internal/domain/settlement"
	"github.com/yungbote/freightquote-backend/internal/platform/dbctx"
)

func TestEventRepoClaimAndMark(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewEventRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	now := time.Now().UTC()
	quoteID := uuid.New()
	mk := func(at time.Time, availableAt time.Time) *types.SettlementEvent {
		return &types.SettlementEvent{
			ID:          ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String(),
			QuoteID:     quoteID,
			Outcome:     domset.OutcomeApproved,
			FinalValue:  decimal.RequireFromString("1200.00"),
			Status:      domset.StatusPending,
			AvailableAt: availableAt,
			CreatedAt:   at,
			UpdatedAt:   at,
		}
	}
	first := mk(now.Add(-2*time.Minute), now.Add(-time.Minute))
	second := mk(now.Add(-time.Minute), now.Add(-time.Second))
	later := mk(now, now.Add(time.Hour))
	for _, ev := range []*types.SettlementEvent{later, second, first} {
		if err := repo.Create(dbc, ev); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := repo.Create(dbc, &types.SettlementEvent{QuoteID: quoteID}); err == nil {
		t.Fatalf("Create without id should fail")
	}

	if _, err := repo.ClaimDue(dbctx.Context{Ctx: ctx}, now, 10); err == nil {
		t.Fatalf("ClaimDue outside a transaction should fail")
	}
	due, err := repo.ClaimDue(dbc, now, 10)
	if err != nil {
		t.Fatalf("ClaimDue: %v", err)
	}
	if len(due) != 2 || due[0].ID != first.ID || due[1].ID != second.ID {
		t.Fatalf("ClaimDue should return due events oldest first: %+v", due)
	}

	if err := repo.MarkDelivered(dbc, first.ID, now); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if err := repo.MarkAttemptFailed(dbc, second.ID, 5, "gateway down", now.Add(time.Minute), true); err != nil {
		t.Fatalf("MarkAttemptFailed: %v", err)
	}
	got, err := repo.GetByID(dbc, second.ID)
	if err != nil || got == nil || got.Status != domset.StatusFailed || got.Attempts != 5 || got.LastError != "gateway down" {
		t.Fatalf("failed event: %+v err=%v", got, err)
	}
	for status, want := range map[string]int64{domset.StatusPending: 1, domset.StatusDelivered: 1, domset.StatusFailed: 1} {
		n, err := repo.CountByStatus(dbc, status)
		if err != nil || n != want {
			t.Fatalf("CountByStatus(%s): want=%d got=%d err=%v", status, want, n, err)
		}
	}
	if all, err := repo.ListByQuote(dbc, quoteID); err != nil || len(all) != 3 {
		t.Fatalf("ListByQuote: n=%d err=%v", len(all), err)
	}

	failed, err := repo.ListByStatus(dbc, domset.StatusFailed, 0)
	if err != nil || len(failed) != 1 || failed[0].ID != second.ID {
		t.Fatalf("ListByStatus(failed): %+v err=%v", failed, err)
	}
	if ok, err := repo.Requeue(dbc, first.ID, now); err != nil || ok {
		t.Fatalf("Requeue of a delivered event must be a no-op: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.Requeue(dbc, second.ID, now); err != nil || !ok {
		t.Fatalf("Requeue: ok=%v err=%v", ok, err)
	}
	got, err = repo.GetByID(dbc, second.ID)
	if err != nil || got.Status != domset.StatusPending || got.Attempts != 0 || got.LastError != "" {
		t.Fatalf("requeued event: %+v err=%v", got, err)
	}
}
