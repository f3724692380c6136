package negotiation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yungbote/freightquote-backend/internal/domain/freight"
)

// QuoteChange is a column update for the quotes table. A nil QuoteChange means
// the quote already reflects the requested outcome.
type QuoteChange map[string]any

// declarableStatuses are the states after bid acceptance in which the carrier
// may register its freight document.
var declarableStatuses = []string{freight.QuoteStatusAccepted, freight.QuoteStatusAwaitingPickup}

func canDeclare(q *freight.Quote) bool {
	for _, s := range declarableStatuses {
		if q.Status == s {
			return true
		}
	}
	return false
}

// EnterValueApproval moves q into awaiting_value_approval with the declared value.
// hasActiveThread must report whether a value_negotiation thread already exists.
func EnterValueApproval(q *freight.Quote, declared decimal.Decimal, reason string, hasActiveThread bool, at time.Time) (QuoteChange, error) {
	if q == nil {
		return nil, invalid("quote", "missing")
	}
	if !q.HasAcceptedBid() {
		return nil, &InvalidTransitionError{From: q.Status, Action: "enter_value_approval"}
	}
	if hasActiveThread || q.ClientApprovedValue || q.ClientRejectedValue || !canDeclare(q) {
		return nil, &InvalidTransitionError{From: q.Status, Action: "enter_value_approval"}
	}
	reason = strings.TrimSpace(reason)
	delta := declared.Sub(q.AcceptedBidValue.Decimal)
	if delta.IsPositive() && reason == "" {
		return nil, invalid("reason", "required when the declared value exceeds the accepted bid")
	}
	q.Status = freight.QuoteStatusAwaitingValueApproval
	q.CarrierDeclaredValue = decimal.NewNullDecimal(declared)
	q.ValueDelta = decimal.NewNullDecimal(delta)
	q.IncreaseReason = reason
	q.DeclaredAt = &at
	return QuoteChange{
		"status":                 q.Status,
		"carrier_declared_value": declared,
		"value_delta":            delta,
		"increase_reason":        reason,
		"declared_at":            at,
	}, nil
}

// RecordWithinBid handles a declared value at or below the accepted bid: the
// quote goes straight to in_transit and no negotiation is opened.
func RecordWithinBid(q *freight.Quote, declared decimal.Decimal, at time.Time) (QuoteChange, error) {
	if q == nil {
		return nil, invalid("quote", "missing")
	}
	if !q.HasAcceptedBid() || !canDeclare(q) {
		return nil, &InvalidTransitionError{From: q.Status, Action: "declare_value"}
	}
	if declared.GreaterThan(q.AcceptedBidValue.Decimal) {
		return nil, invalid("value", "exceeds the accepted bid and needs client approval")
	}
	delta := declared.Sub(q.AcceptedBidValue.Decimal)
	q.Status = freight.QuoteStatusInTransit
	q.CarrierDeclaredValue = decimal.NewNullDecimal(declared)
	q.ValueDelta = decimal.NewNullDecimal(delta)
	q.DeclaredAt = &at
	return QuoteChange{
		"status":                 q.Status,
		"carrier_declared_value": declared,
		"value_delta":            delta,
		"declared_at":            at,
	}, nil
}

// Reprice mirrors a counter-proposal onto the quote while it awaits approval.
func Reprice(q *freight.Quote, value decimal.Decimal, reason string) (QuoteChange, error) {
	if q == nil {
		return nil, invalid("quote", "missing")
	}
	if q.Status != freight.QuoteStatusAwaitingValueApproval {
		return nil, &InvalidTransitionError{From: q.Status, Action: "reprice"}
	}
	delta := value.Sub(q.AcceptedBidValue.Decimal)
	q.CarrierDeclaredValue = decimal.NewNullDecimal(value)
	q.ValueDelta = decimal.NewNullDecimal(delta)
	q.IncreaseReason = strings.TrimSpace(reason)
	return QuoteChange{
		"carrier_declared_value": value,
		"value_delta":            delta,
		"increase_reason":        q.IncreaseReason,
	}, nil
}

// ResolveApproved finalizes the quote at finalValue. Calling it again for an
// already approved quote at the same value is a no-op.
func ResolveApproved(q *freight.Quote, finalValue decimal.Decimal, at time.Time) (QuoteChange, error) {
	if q == nil {
		return nil, invalid("quote", "missing")
	}
	if q.Status == freight.QuoteStatusInTransit && q.ClientApprovedValue {
		if q.CarrierDeclaredValue.Valid && q.CarrierDeclaredValue.Decimal.Equal(finalValue) {
			return nil, nil
		}
		return nil, invariantf("quote already approved at %s", q.CarrierDeclaredValue.Decimal.StringFixed(2))
	}
	if q.Status != freight.QuoteStatusAwaitingValueApproval {
		return nil, &InvalidTransitionError{From: q.Status, Action: "resolve_approved"}
	}
	delta := finalValue.Sub(q.AcceptedBidValue.Decimal)
	q.Status = freight.QuoteStatusInTransit
	q.CarrierDeclaredValue = decimal.NewNullDecimal(finalValue)
	q.ValueDelta = decimal.NewNullDecimal(delta)
	q.ClientApprovedValue = true
	q.ValueDecisionTimestamp = &at
	return QuoteChange{
		"status":                   q.Status,
		"carrier_declared_value":   finalValue,
		"value_delta":              delta,
		"client_approved_value":    true,
		"value_decision_timestamp": at,
	}, nil
}

// ResolveReturned marks the freight as returned. resetToOriginal voids the
// disputed surcharge by putting the declared value back to the accepted bid.
func ResolveReturned(q *freight.Quote, resetToOriginal bool, at time.Time) (QuoteChange, error) {
	if q == nil {
		return nil, invalid("quote", "missing")
	}
	if q.Status == freight.QuoteStatusReturned && q.ClientRejectedValue {
		return nil, nil
	}
	if q.Status != freight.QuoteStatusAwaitingValueApproval {
		return nil, &InvalidTransitionError{From: q.Status, Action: "resolve_returned"}
	}
	q.Status = freight.QuoteStatusReturned
	q.ClientRejectedValue = true
	q.ValueDecisionTimestamp = &at
	change := QuoteChange{
		"status":                   q.Status,
		"client_rejected_value":    true,
		"value_decision_timestamp": at,
	}
	if resetToOriginal {
		original := q.AcceptedBidValue.Decimal
		q.CarrierDeclaredValue = decimal.NewNullDecimal(original)
		q.ValueDelta = decimal.NewNullDecimal(decimal.Zero)
		change["carrier_declared_value"] = original
		change["value_delta"] = decimal.Zero
	}
	return change, nil
}

// ApplyQuoteEffect dispatches a transition's quote effect to the contract.
func ApplyQuoteEffect(q *freight.Quote, eff QuoteEffect, at time.Time) (QuoteChange, error) {
	switch eff.Kind {
	case EffectNone:
		return nil, nil
	case EffectReprice:
		return Reprice(q, eff.Value, eff.Reason)
	case EffectApprove:
		return ResolveApproved(q, eff.Value, at)
	case EffectReturn:
		return ResolveReturned(q, eff.ResetToOriginal, at)
	default:
		return nil, invariantf("unknown quote effect %q", eff.Kind)
	}
}
