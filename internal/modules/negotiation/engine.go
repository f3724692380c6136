package negotiation

import (
	"strings"

	"github.com/shopspring/decimal"

	domneg "github.com/yungbote/freightquote-backend/internal/domain/negotiation"
	"github.com/yungbote/freightquote-backend/internal/domain/settlement"
)

type Role string

const (
	RoleClient  Role = "client"
	RoleCarrier Role = "carrier"
	RoleSystem  Role = "system"
)

type Action string

const (
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionCounterPropose Action = "counter_propose"
	ActionAcceptOriginal Action = "accept_original"
	ActionGiveUp         Action = "give_up"
)

// ParseRole normalizes a role string; ok is false for unknown roles.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleClient, RoleCarrier, RoleSystem:
		return r, true
	}
	return r, false
}

func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := actionOwner[a]; ok {
		return a, true
	}
	return a, false
}

var actionOwner = map[Action]Role{
	ActionApprove:        RoleClient,
	ActionReject:         RoleClient,
	ActionCounterPropose: RoleCarrier,
	ActionAcceptOriginal: RoleCarrier,
	ActionGiveUp:         RoleCarrier,
}

// OwnerOf returns the only role allowed to submit a.
func OwnerOf(a Action) Role { return actionOwner[a] }

// State is the part of a thread the transition function reads and writes.
type State struct {
	Status               string
	OriginalValue        decimal.Decimal
	CurrentProposedValue decimal.Decimal
	CarrierRetryCount    int
	MaxCarrierRetries    int
	LastRejectionReason  *string
}

func StateOf(t *domneg.Thread) State {
	if t == nil {
		return State{}
	}
	return State{
		Status:               t.Status,
		OriginalValue:        t.OriginalValue,
		CurrentProposedValue: t.CurrentProposedValue,
		CarrierRetryCount:    t.CarrierRetryCount,
		MaxCarrierRetries:    t.MaxCarrierRetries,
		LastRejectionReason:  t.LastRejectionReason,
	}
}

type Command struct {
	Role   Role
	Action Action
	Value  *decimal.Decimal
	Reason string
}

type QuoteEffectKind string

const (
	EffectNone    QuoteEffectKind = ""
	EffectReprice QuoteEffectKind = "reprice"
	EffectApprove QuoteEffectKind = "approve"
	EffectReturn  QuoteEffectKind = "return"
)

// QuoteEffect is what the transition asks of the quote status contract.
type QuoteEffect struct {
	Kind            QuoteEffectKind
	Value           decimal.Decimal
	Reason          string
	ResetToOriginal bool
}

type MessageDraft struct {
	Sender        string
	Kind          string
	ProposedValue decimal.NullDecimal
	Reason        *string
	Text          string
	Final         bool
}

type SettlementDraft struct {
	Outcome    string
	FinalValue decimal.Decimal
}

// Transition is the full result of one accepted action. Applying it is the
// caller's job and must happen atomically.
type Transition struct {
	Action     Action
	Role       Role
	From       State
	To         State
	Message    MessageDraft
	Quote      QuoteEffect
	Settlement *SettlementDraft
	// Notify is the party whose unread flag goes up.
	Notify Role
}

func (t Transition) Terminal() bool { return domneg.IsTerminal(t.To.Status) }

// MoneyScale is the number of decimal places money is stored with.
const MoneyScale = 2

// IsMoney reports whether v is representable at MoneyScale without rounding.
func IsMoney(v decimal.Decimal) bool { return v.Equal(v.Round(MoneyScale)) }

// Open builds the initial thread state for a declared value above the accepted bid.
// The initial proposal does not consume retry budget.
func Open(acceptedBid, declared decimal.Decimal, reason string, p Policy) (State, MessageDraft, error) {
	if !declared.IsPositive() {
		return State{}, MessageDraft{}, invalid("value", "must be greater than zero")
	}
	if !IsMoney(declared) {
		return State{}, MessageDraft{}, invalid("value", "must not have more than two decimal places")
	}
	if !declared.GreaterThan(acceptedBid) {
		return State{}, MessageDraft{}, invalid("value", "does not exceed the accepted bid; no negotiation needed")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return State{}, MessageDraft{}, invalid("reason", "required when the declared value exceeds the accepted bid")
	}
	limit := p.MaxCarrierRetries
	if limit <= 0 {
		limit = DefaultMaxCarrierRetries
	}
	st := State{
		Status:               domneg.StatusAwaitingClient,
		OriginalValue:        acceptedBid,
		CurrentProposedValue: declared,
		CarrierRetryCount:    0,
		MaxCarrierRetries:    limit,
	}
	msg := MessageDraft{
		Sender:        domneg.SenderCarrier,
		Kind:          domneg.MessageInitialProposal,
		ProposedValue: decimal.NewNullDecimal(declared),
		Reason:        &reason,
		Text:          initialProposalText(acceptedBid, declared, reason),
	}
	return st, msg, nil
}

// Decide is the pure transition function. On error the returned Transition is
// zero and s must be left untouched by the caller.
func Decide(s State, cmd Command, p Policy) (Transition, error) {
	action, ok := ParseAction(string(cmd.Action))
	if !ok {
		return Transition{}, invalid("action", "unknown action "+string(cmd.Action))
	}
	if domneg.IsTerminal(s.Status) {
		return Transition{}, &InvalidTransitionError{From: s.Status, Action: action}
	}
	if owner := OwnerOf(action); cmd.Role != owner {
		return Transition{}, invalid("action", string(action)+" can only be submitted by the "+string(owner))
	}
	limit := s.MaxCarrierRetries
	if limit <= 0 {
		limit = p.MaxCarrierRetries
	}
	if limit <= 0 {
		limit = DefaultMaxCarrierRetries
	}
	s.MaxCarrierRetries = limit

	if action == ActionCounterPropose && s.CarrierRetryCount >= limit {
		return Transition{}, &RetryBudgetExceededError{Attempts: s.CarrierRetryCount, Max: limit}
	}

	want := domneg.StatusAwaitingClient
	if OwnerOf(action) == RoleCarrier {
		want = domneg.StatusAwaitingCarrier
	}
	if s.Status != want {
		return Transition{}, &InvalidTransitionError{From: s.Status, Action: action}
	}

	reason := strings.TrimSpace(cmd.Reason)
	tr := Transition{Action: action, Role: cmd.Role, From: s, To: s}

	switch action {
	case ActionApprove:
		tr.To.Status = domneg.StatusApproved
		tr.Message = MessageDraft{
			Sender:        domneg.SenderClient,
			Kind:          domneg.MessageApproval,
			ProposedValue: decimal.NewNullDecimal(s.CurrentProposedValue),
			Reason:        optional(reason),
			Text:          clientApprovedText(s.CurrentProposedValue),
			Final:         true,
		}
		tr.Quote = QuoteEffect{Kind: EffectApprove, Value: s.CurrentProposedValue}
		tr.Settlement = &SettlementDraft{Outcome: settlement.OutcomeApproved, FinalValue: s.CurrentProposedValue}
		tr.Notify = RoleCarrier

	case ActionReject:
		if reason == "" {
			return Transition{}, invalid("reason", "required when rejecting")
		}
		tr.To.LastRejectionReason = &reason
		tr.Message = MessageDraft{
			Sender: domneg.SenderClient,
			Kind:   domneg.MessageRejection,
			Reason: &reason,
		}
		tr.Notify = RoleCarrier
		if s.CarrierRetryCount >= limit {
			tr.To.Status = domneg.StatusRejectedFinal
			tr.Message.Final = true
			tr.Message.Text = finalRejectionText(s.CurrentProposedValue, s.OriginalValue, reason)
			tr.Quote = QuoteEffect{Kind: EffectReturn, Value: s.OriginalValue, ResetToOriginal: true}
			tr.Settlement = &SettlementDraft{Outcome: settlement.OutcomeReturned, FinalValue: s.OriginalValue}
		} else {
			tr.To.Status = domneg.StatusAwaitingCarrier
			tr.Message.Text = rejectionText(s.CurrentProposedValue, reason, limit-s.CarrierRetryCount)
		}

	case ActionCounterPropose:
		if reason == "" {
			return Transition{}, invalid("reason", "required for a counter-proposal")
		}
		if cmd.Value == nil {
			return Transition{}, invalid("value", "required for a counter-proposal")
		}
		v := *cmd.Value
		if !v.IsPositive() {
			return Transition{}, invalid("value", "must be greater than zero")
		}
		if !IsMoney(v) {
			return Transition{}, invalid("value", "must not have more than two decimal places")
		}
		if p.RequireCounterAboveOriginal && !v.GreaterThan(s.OriginalValue) {
			return Transition{}, invalid("value", "must exceed the original value "+money(s.OriginalValue))
		}
		tr.To.Status = domneg.StatusAwaitingClient
		tr.To.CarrierRetryCount = s.CarrierRetryCount + 1
		tr.To.CurrentProposedValue = v
		tr.Message = MessageDraft{
			Sender:        domneg.SenderCarrier,
			Kind:          domneg.MessageCounterProposal,
			ProposedValue: decimal.NewNullDecimal(v),
			Reason:        &reason,
			Text:          counterProposalText(v, reason, tr.To.CarrierRetryCount, limit),
		}
		tr.Quote = QuoteEffect{Kind: EffectReprice, Value: v, Reason: reason}
		tr.Notify = RoleClient

	case ActionAcceptOriginal:
		tr.To.Status = domneg.StatusApproved
		tr.To.CurrentProposedValue = s.OriginalValue
		if p.ResetRetriesOnAcceptOriginal {
			tr.To.CarrierRetryCount = 0
		}
		tr.Message = MessageDraft{
			Sender:        domneg.SenderCarrier,
			Kind:          domneg.MessageApproval,
			ProposedValue: decimal.NewNullDecimal(s.OriginalValue),
			Reason:        optional(reason),
			Text:          acceptOriginalText(s.OriginalValue),
			Final:         true,
		}
		tr.Quote = QuoteEffect{Kind: EffectApprove, Value: s.OriginalValue}
		tr.Settlement = &SettlementDraft{Outcome: settlement.OutcomeApproved, FinalValue: s.OriginalValue}
		tr.Notify = RoleClient

	case ActionGiveUp:
		tr.To.Status = domneg.StatusRejectedFinal
		tr.Message = MessageDraft{
			Sender: domneg.SenderCarrier,
			Kind:   domneg.MessageGiveUp,
			Reason: optional(reason),
			Text:   giveUpText(s.OriginalValue, reason),
			Final:  true,
		}
		tr.Quote = QuoteEffect{Kind: EffectReturn, Value: s.OriginalValue}
		tr.Settlement = &SettlementDraft{Outcome: settlement.OutcomeReturned, FinalValue: s.OriginalValue}
		tr.Notify = RoleClient
	}
	return tr, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
