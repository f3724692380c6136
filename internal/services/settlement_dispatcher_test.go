package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/yungbote/freightquote-backend/internal/data/repos"
	repotest "github.com/yungbote/freightquote-backend/internal/data/repos/testutil"
	types "github.com/yungbote/freightquote-backend/internal/domain"
	domset "github.com/yungbote/freightquote-backend/internal/domain/settlement"
	"github.com/yungbote/freightquote-backend/internal/platform/dbctx"
)

type scriptedGateway struct {
	fail      map[string]int
	delivered []string
}

func (g *scriptedGateway) Deliver(_ context.Context, ev *types.SettlementEvent) error {
	if g.fail[ev.ID] > 0 {
		g.fail[ev.ID]--
		return errors.New("ledger unavailable")
	}
	g.delivered = append(g.delivered, ev.ID)
	return nil
}

func seedSettlement(t *testing.T, set repos.Set, dbc dbctx.Context, at time.Time) *types.SettlementEvent {
	t.Helper()
	ev := &types.SettlementEvent{
		ID:          ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String(),
		QuoteID:     uuid.New(),
		Outcome:     domset.OutcomeApproved,
		FinalValue:  dec("1200.00"),
		Status:      domset.StatusPending,
		AvailableAt: at,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	if err := set.Settlements.Create(dbc, ev); err != nil {
		t.Fatalf("seed settlement: %v", err)
	}
	return ev
}

func TestSettlementDispatcherDeliversAndBacksOff(t *testing.T) {
	ctx := context.Background()
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	log := repotest.Logger(t)
	set := repos.NewSet(tx, log)
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	ok := seedSettlement(t, set, dbc, fixedNow.Add(-2*time.Minute))
	flaky := seedSettlement(t, set, dbc, fixedNow.Add(-time.Minute))
	gw := &scriptedGateway{fail: map[string]int{flaky.ID: 1}}
	d := NewSettlementDispatcher(tx, log, set.Settlements, gw, nil, SettlementDispatcherConfig{
		MaxAttempts: 3,
		BaseBackoff: 10 * time.Second,
	})
	d.now = func() time.Time { return fixedNow }

	n, err := d.DispatchOnce(ctx)
	if err != nil || n != 2 {
		t.Fatalf("first pass: n=%d err=%v", n, err)
	}
	if len(gw.delivered) != 1 || gw.delivered[0] != ok.ID {
		t.Fatalf("delivered: %v", gw.delivered)
	}
	got, err := set.Settlements.GetByID(dbc, flaky.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domset.StatusPending || got.Attempts != 1 || got.LastError == "" {
		t.Fatalf("failed attempt: %+v", got)
	}
	if !got.AvailableAt.Equal(fixedNow.Add(10 * time.Second)) {
		t.Fatalf("backoff: available_at=%v", got.AvailableAt)
	}

	// Not due yet.
	if n, err := d.DispatchOnce(ctx); err != nil || n != 0 {
		t.Fatalf("pass before backoff: n=%d err=%v", n, err)
	}

	d.now = func() time.Time { return fixedNow.Add(11 * time.Second) }
	if n, err := d.DispatchOnce(ctx); err != nil || n != 1 {
		t.Fatalf("pass after backoff: n=%d err=%v", n, err)
	}
	got, _ = set.Settlements.GetByID(dbc, flaky.ID)
	if got.Status != domset.StatusDelivered || got.DeliveredAt == nil || got.LastError != "" {
		t.Fatalf("redelivered: %+v", got)
	}
	if pending, _ := set.Settlements.CountByStatus(dbc, domset.StatusPending); pending != 0 {
		t.Fatalf("pending after drain: %d", pending)
	}
}

func TestSettlementDispatcherGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	log := repotest.Logger(t)
	set := repos.NewSet(tx, log)
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	ev := seedSettlement(t, set, dbc, fixedNow.Add(-time.Minute))
	gw := &scriptedGateway{fail: map[string]int{ev.ID: 100}}
	d := NewSettlementDispatcher(tx, log, set.Settlements, gw, nil, SettlementDispatcherConfig{
		MaxAttempts: 2,
		BaseBackoff: time.Second,
	})
	clock := fixedNow
	d.now = func() time.Time { return clock }

	for i := 0; i < 2; i++ {
		if _, err := d.DispatchOnce(ctx); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
		clock = clock.Add(time.Hour)
	}
	got, _ := set.Settlements.GetByID(dbc, ev.ID)
	if got.Status != domset.StatusFailed || got.Attempts != 2 {
		t.Fatalf("exhausted event: %+v", got)
	}
	if n, err := d.DispatchOnce(ctx); err != nil || n != 0 {
		t.Fatalf("failed events are not claimed again: n=%d err=%v", n, err)
	}
}

func TestSettlementBackoffIsCapped(t *testing.T) {
	d := &SettlementDispatcher{cfg: SettlementDispatcherConfig{BaseBackoff: time.Second, MaxBackoff: 5 * time.Second}.withDefaults()}
	cases := map[int]time.Duration{1: time.Second, 2: 2 * time.Second, 3: 4 * time.Second, 4: 5 * time.Second, 20: 5 * time.Second}
	for attempts, want := range cases {
		if got := d.backoff(attempts); got != want {
			t.Fatalf("backoff(%d): want=%v got=%v", attempts, want, got)
		}
	}
}

func TestSettlementDispatcherRunStopsOnCancel(t *testing.T) {
	db := repotest.DB(t)
	log := repotest.Logger(t)
	set := repos.NewSet(db, log)
	d := NewSettlementDispatcher(db, log, set.Settlements, NewLogSettlementGateway(log), nil, SettlementDispatcherConfig{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}
}
