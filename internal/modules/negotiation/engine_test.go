package negotiation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	domainagg "github.com/yungbote/freightquote-backend/internal/domain/aggregates"
	domneg "github.com/yungbote/freightquote-backend/internal/domain/negotiation"
	"github.com/yungbote/freightquote-backend/internal/domain/settlement"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

func mustOpen(t *testing.T, original, declared string) State {
	t.Helper()
	st, msg, err := Open(dec(original), dec(declared), "toll increase", DefaultPolicy())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if msg.Kind != domneg.MessageInitialProposal || msg.Sender != domneg.SenderCarrier {
		t.Fatalf("initial message: got sender=%s kind=%s", msg.Sender, msg.Kind)
	}
	return st
}

func mustDecide(t *testing.T, s State, cmd Command) Transition {
	t.Helper()
	tr, err := Decide(s, cmd, DefaultPolicy())
	if err != nil {
		t.Fatalf("Decide(%s by %s from %s): %v", cmd.Action, cmd.Role, s.Status, err)
	}
	return tr
}

func reject(reason string) Command {
	return Command{Role: RoleClient, Action: ActionReject, Reason: reason}
}

func counter(v, reason string) Command {
	return Command{Role: RoleCarrier, Action: ActionCounterPropose, Value: decPtr(v), Reason: reason}
}

func TestOpenDoesNotConsumeRetryBudget(t *testing.T) {
	st := mustOpen(t, "1000", "1200")
	if st.Status != domneg.StatusAwaitingClient {
		t.Fatalf("status: want=%s got=%s", domneg.StatusAwaitingClient, st.Status)
	}
	if st.CarrierRetryCount != 0 {
		t.Fatalf("retry count: want=0 got=%d", st.CarrierRetryCount)
	}
	if !st.OriginalValue.Equal(dec("1000")) || !st.CurrentProposedValue.Equal(dec("1200")) {
		t.Fatalf("values: original=%s current=%s", st.OriginalValue, st.CurrentProposedValue)
	}
}

func TestOpenRejectsDeclaredValueNotAboveBid(t *testing.T) {
	for _, v := range []string{"1000", "900", "0"} {
		if _, _, err := Open(dec("1000"), dec(v), "reason", DefaultPolicy()); err == nil {
			t.Fatalf("Open(%s) expected error", v)
		}
	}
	if _, _, err := Open(dec("1000"), dec("1200"), "   ", DefaultPolicy()); !isValidation(err) {
		t.Fatalf("blank reason: want validation error, got=%v", err)
	}
}

func TestScenarioA_RejectCounterApprove(t *testing.T) {
	st := mustOpen(t, "1000", "1200")

	tr := mustDecide(t, st, reject("peso incorreto"))
	if tr.To.Status != domneg.StatusAwaitingCarrier || tr.To.CarrierRetryCount != 0 {
		t.Fatalf("after reject: status=%s count=%d", tr.To.Status, tr.To.CarrierRetryCount)
	}
	if tr.To.LastRejectionReason == nil || *tr.To.LastRejectionReason != "peso incorreto" {
		t.Fatalf("last rejection reason not recorded")
	}
	if tr.Message.Kind != domneg.MessageRejection || tr.Message.Sender != domneg.SenderClient {
		t.Fatalf("reject message: %+v", tr.Message)
	}
	if tr.Quote.Kind != EffectNone || tr.Settlement != nil {
		t.Fatalf("non-final reject must not touch quote or settlement: %+v", tr)
	}

	tr = mustDecide(t, tr.To, counter("1100", "reweighed"))
	if tr.To.Status != domneg.StatusAwaitingClient || tr.To.CarrierRetryCount != 1 {
		t.Fatalf("after counter: status=%s count=%d", tr.To.Status, tr.To.CarrierRetryCount)
	}
	if !tr.To.CurrentProposedValue.Equal(dec("1100")) {
		t.Fatalf("current value: got=%s", tr.To.CurrentProposedValue)
	}
	if tr.Quote.Kind != EffectReprice || !tr.Quote.Value.Equal(dec("1100")) {
		t.Fatalf("counter should reprice quote: %+v", tr.Quote)
	}

	tr = mustDecide(t, tr.To, Command{Role: RoleClient, Action: ActionApprove})
	if tr.To.Status != domneg.StatusApproved {
		t.Fatalf("after approve: status=%s", tr.To.Status)
	}
	if tr.Quote.Kind != EffectApprove || !tr.Quote.Value.Equal(dec("1100")) {
		t.Fatalf("approve effect: %+v", tr.Quote)
	}
	if tr.Settlement == nil || tr.Settlement.Outcome != settlement.OutcomeApproved || !tr.Settlement.FinalValue.Equal(dec("1100")) {
		t.Fatalf("settlement: %+v", tr.Settlement)
	}
}

func TestScenarioB_ThreeRejectedCountersEndFinal(t *testing.T) {
	st := mustOpen(t, "1000", "1300")
	for i, v := range []string{"1250", "1200", "1150"} {
		tr := mustDecide(t, st, reject("too high"))
		if tr.To.Status != domneg.StatusAwaitingCarrier {
			t.Fatalf("round %d reject: status=%s", i, tr.To.Status)
		}
		tr = mustDecide(t, tr.To, counter(v, "still above"))
		if tr.To.CarrierRetryCount != i+1 {
			t.Fatalf("round %d: count want=%d got=%d", i, i+1, tr.To.CarrierRetryCount)
		}
		st = tr.To
	}

	tr := mustDecide(t, st, reject("final no"))
	if tr.To.Status != domneg.StatusRejectedFinal {
		t.Fatalf("status: want=%s got=%s", domneg.StatusRejectedFinal, tr.To.Status)
	}
	if tr.Quote.Kind != EffectReturn || !tr.Quote.ResetToOriginal {
		t.Fatalf("final rejection must return and reset: %+v", tr.Quote)
	}
	if tr.Settlement == nil || tr.Settlement.Outcome != settlement.OutcomeReturned || !tr.Settlement.FinalValue.Equal(dec("1000")) {
		t.Fatalf("settlement: %+v", tr.Settlement)
	}
	if tr.To.CarrierRetryCount != 3 {
		t.Fatalf("count must stay at 3, got=%d", tr.To.CarrierRetryCount)
	}
}

func TestScenarioC_AcceptOriginalBypassesRetries(t *testing.T) {
	st := mustOpen(t, "1000", "1200")
	st = mustDecide(t, st, reject("no")).To
	st = mustDecide(t, st, counter("1150", "fuel")).To
	st = mustDecide(t, st, reject("no")).To

	tr := mustDecide(t, st, Command{Role: RoleCarrier, Action: ActionAcceptOriginal})
	if tr.To.Status != domneg.StatusApproved {
		t.Fatalf("status: got=%s", tr.To.Status)
	}
	if !tr.To.CurrentProposedValue.Equal(tr.To.OriginalValue) {
		t.Fatalf("current=%s original=%s", tr.To.CurrentProposedValue, tr.To.OriginalValue)
	}
	if tr.To.CarrierRetryCount != 0 {
		t.Fatalf("accept-original resets retry count, got=%d", tr.To.CarrierRetryCount)
	}
	if tr.Quote.Kind != EffectApprove || !tr.Quote.Value.Equal(dec("1000")) {
		t.Fatalf("quote effect: %+v", tr.Quote)
	}
	if tr.Message.Sender != domneg.SenderCarrier || tr.Message.Kind != domneg.MessageApproval {
		t.Fatalf("message: %+v", tr.Message)
	}
}

func TestAcceptOriginalKeepsCountWhenResetDisabled(t *testing.T) {
	p := DefaultPolicy()
	p.ResetRetriesOnAcceptOriginal = false
	st := State{Status: domneg.StatusAwaitingCarrier, OriginalValue: dec("10"), CurrentProposedValue: dec("12"), CarrierRetryCount: 2, MaxCarrierRetries: 3}
	tr, err := Decide(st, Command{Role: RoleCarrier, Action: ActionAcceptOriginal}, p)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if tr.To.CarrierRetryCount != 2 {
		t.Fatalf("count: want=2 got=%d", tr.To.CarrierRetryCount)
	}
}

func TestScenarioD_FourthCounterExceedsBudget(t *testing.T) {
	for _, status := range []string{domneg.StatusAwaitingCarrier, domneg.StatusAwaitingClient} {
		st := State{
			Status:               status,
			OriginalValue:        dec("1000"),
			CurrentProposedValue: dec("1100"),
			CarrierRetryCount:    3,
			MaxCarrierRetries:    3,
		}
		before := st
		_, err := Decide(st, counter("1050", "one more"), DefaultPolicy())
		var budget *RetryBudgetExceededError
		if !errors.As(err, &budget) {
			t.Fatalf("%s: want RetryBudgetExceededError got=%v", status, err)
		}
		if domainagg.CodeOf(err) != domainagg.CodeRetryBudgetExceeded {
			t.Fatalf("%s: code=%s", status, domainagg.CodeOf(err))
		}
		if st.Status != before.Status || st.CarrierRetryCount != before.CarrierRetryCount {
			t.Fatalf("state mutated")
		}
	}
}

func TestExhaustionIsDeterministicRegardlessOfReason(t *testing.T) {
	st := State{Status: domneg.StatusAwaitingClient, OriginalValue: dec("500"), CurrentProposedValue: dec("650"), CarrierRetryCount: 3, MaxCarrierRetries: 3}
	for _, reason := range []string{"x", "please try again", "I would accept 600"} {
		tr := mustDecide(t, st, reject(reason))
		if tr.To.Status != domneg.StatusRejectedFinal {
			t.Fatalf("reason %q: status=%s", reason, tr.To.Status)
		}
	}
}

func TestTerminalThreadsRejectEveryAction(t *testing.T) {
	cmds := []Command{
		{Role: RoleClient, Action: ActionApprove},
		reject("again"),
		counter("1100", "again"),
		{Role: RoleCarrier, Action: ActionAcceptOriginal},
		{Role: RoleCarrier, Action: ActionGiveUp},
	}
	for _, status := range []string{domneg.StatusApproved, domneg.StatusRejectedFinal} {
		for _, cmd := range cmds {
			st := State{Status: status, OriginalValue: dec("1000"), CurrentProposedValue: dec("1000"), CarrierRetryCount: 1, MaxCarrierRetries: 3}
			tr, err := Decide(st, cmd, DefaultPolicy())
			var inv *InvalidTransitionError
			if !errors.As(err, &inv) {
				t.Fatalf("%s/%s: want InvalidTransitionError got=%v", status, cmd.Action, err)
			}
			if tr.To.Status != "" || tr.Message.Kind != "" {
				t.Fatalf("%s/%s: transition should be empty: %+v", status, cmd.Action, tr)
			}
		}
	}
}

func TestWrongTurnIsInvalidTransition(t *testing.T) {
	st := mustOpen(t, "1000", "1200")
	_, err := Decide(st, Command{Role: RoleCarrier, Action: ActionGiveUp}, DefaultPolicy())
	if domainagg.CodeOf(err) != domainagg.CodeInvalidTransition {
		t.Fatalf("give up while awaiting client: got=%v", err)
	}
	_, err = Decide(st, counter("1100", "x"), DefaultPolicy())
	if domainagg.CodeOf(err) != domainagg.CodeInvalidTransition {
		t.Fatalf("counter while awaiting client: got=%v", err)
	}
	st = mustDecide(t, st, reject("no")).To
	_, err = Decide(st, Command{Role: RoleClient, Action: ActionApprove}, DefaultPolicy())
	if domainagg.CodeOf(err) != domainagg.CodeInvalidTransition {
		t.Fatalf("approve while awaiting carrier: got=%v", err)
	}
}

func TestPayloadValidation(t *testing.T) {
	awaitingClient := State{Status: domneg.StatusAwaitingClient, OriginalValue: dec("1000"), CurrentProposedValue: dec("1200"), MaxCarrierRetries: 3}
	awaitingCarrier := awaitingClient
	awaitingCarrier.Status = domneg.StatusAwaitingCarrier

	cases := []struct {
		name string
		st   State
		cmd  Command
	}{
		{"reject without reason", awaitingClient, reject("  ")},
		{"counter without reason", awaitingCarrier, counter("1100", "")},
		{"counter zero", awaitingCarrier, counter("0", "r")},
		{"counter negative", awaitingCarrier, counter("-5", "r")},
		{"counter missing value", awaitingCarrier, Command{Role: RoleCarrier, Action: ActionCounterPropose, Reason: "r"}},
		{"client submits carrier action", awaitingCarrier, Command{Role: RoleClient, Action: ActionGiveUp}},
		{"unknown action", awaitingClient, Command{Role: RoleClient, Action: "haggle"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decide(tc.st, tc.cmd, DefaultPolicy())
			if !isValidation(err) {
				t.Fatalf("want validation error, got=%v", err)
			}
		})
	}
}

func TestCounterBelowOriginalDependsOnPolicy(t *testing.T) {
	st := State{Status: domneg.StatusAwaitingCarrier, OriginalValue: dec("1000"), CurrentProposedValue: dec("1200"), MaxCarrierRetries: 3}
	if _, err := Decide(st, counter("900", "discount"), DefaultPolicy()); err != nil {
		t.Fatalf("default policy accepts any positive value: %v", err)
	}
	strict := DefaultPolicy()
	strict.RequireCounterAboveOriginal = true
	if _, err := Decide(st, counter("1000", "same"), strict); !isValidation(err) {
		t.Fatalf("strict policy: want validation error, got=%v", err)
	}
}

func TestGiveUpReturnsWithoutReset(t *testing.T) {
	st := State{Status: domneg.StatusAwaitingCarrier, OriginalValue: dec("1000"), CurrentProposedValue: dec("1200"), CarrierRetryCount: 1, MaxCarrierRetries: 3}
	tr := mustDecide(t, st, Command{Role: RoleCarrier, Action: ActionGiveUp})
	if tr.To.Status != domneg.StatusRejectedFinal {
		t.Fatalf("status: got=%s", tr.To.Status)
	}
	if tr.Quote.Kind != EffectReturn || tr.Quote.ResetToOriginal {
		t.Fatalf("give up effect: %+v", tr.Quote)
	}
	if tr.Message.Kind != domneg.MessageGiveUp || tr.Notify != RoleClient {
		t.Fatalf("message/notify: %+v %s", tr.Message, tr.Notify)
	}
}

func TestRetryCountStaysInRangeOnEveryPath(t *testing.T) {
	// Walk every accepted action sequence up to depth 8.
	actions := []Command{
		{Role: RoleClient, Action: ActionApprove},
		reject("r"),
		counter("1100", "r"),
		{Role: RoleCarrier, Action: ActionAcceptOriginal},
		{Role: RoleCarrier, Action: ActionGiveUp},
	}
	var walk func(st State, depth int)
	walk = func(st State, depth int) {
		if st.CarrierRetryCount < 0 || st.CarrierRetryCount > 3 {
			t.Fatalf("retry count out of range: %d", st.CarrierRetryCount)
		}
		if depth == 0 {
			return
		}
		for _, cmd := range actions {
			tr, err := Decide(st, cmd, DefaultPolicy())
			if err != nil {
				continue
			}
			if tr.To.CarrierRetryCount > st.CarrierRetryCount && cmd.Action != ActionCounterPropose {
				t.Fatalf("%s increased retry count", cmd.Action)
			}
			if tr.To.CarrierRetryCount < st.CarrierRetryCount && cmd.Action != ActionAcceptOriginal {
				t.Fatalf("%s decreased retry count", cmd.Action)
			}
			walk(tr.To, depth-1)
		}
	}
	walk(mustOpen(t, "1000", "1200"), 8)
}

func isValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v) && domainagg.CodeOf(err) == domainagg.CodeValidation
}

func TestIsMoney(t *testing.T) {
	cases := map[string]bool{
		"1200":     true,
		"1200.5":   true,
		"1200.50":  true,
		"1200.500": true,
		"0.01":     true,
		"0.004":    false,
		"1000.004": false,
	}
	for in, want := range cases {
		if got := IsMoney(dec(in)); got != want {
			t.Fatalf("IsMoney(%s): want=%v got=%v", in, want, got)
		}
	}
}

func TestSubCentValuesAreRejected(t *testing.T) {
	if _, _, err := Open(dec("1000.00"), dec("1000.004"), "toll increase", DefaultPolicy()); !isValidation(err) {
		t.Fatalf("Open with sub-cent value: want validation error, got=%v", err)
	}

	st := mustOpen(t, "1000", "1200")
	st = mustDecide(t, st, reject("too high")).To
	if _, err := Decide(st, counter("0.004", "rounding"), DefaultPolicy()); !isValidation(err) {
		t.Fatalf("counter 0.004: want validation error, got=%v", err)
	}
	if _, err := Decide(st, counter("1100.001", "rounding"), DefaultPolicy()); !isValidation(err) {
		t.Fatalf("counter 1100.001: want validation error, got=%v", err)
	}
	tr := mustDecide(t, st, counter("1100.50", "fuel"))
	if !tr.To.CurrentProposedValue.Equal(dec("1100.5")) {
		t.Fatalf("counter value: got=%s", tr.To.CurrentProposedValue)
	}
}
