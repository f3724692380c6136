package aggregates

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/yungbote/freightquote-backend/internal/data/repos"
	types "github.com/yungbote/freightquote-backend/internal/domain"
	domainagg "github.com/yungbote/freightquote-backend/internal/domain/aggregates"
	domneg "github.com/yungbote/freightquote-backend/internal/domain/negotiation"
	"github.com/yungbote/freightquote-backend/internal/domain/settlement"
	"github.com/yungbote/freightquote-backend/internal/modules/negotiation"
	"github.com/yungbote/freightquote-backend/internal/platform/dbctx"
)

const (
	quotesTable  = "quotes"
	threadsTable = "negotiation_threads"
)

type NegotiationAggregateDeps struct {
	Base BaseDeps

	Quotes      repos.QuoteRepo
	Threads     repos.NegotiationThreadRepo
	Messages    repos.NegotiationMessageRepo
	Receipts    repos.ActionReceiptRepo
	Settlements repos.SettlementEventRepo

	Policy     negotiation.Policy
	Now        func() time.Time
	NewEventID func(time.Time) string
}

type negotiationAggregate struct {
	deps NegotiationAggregateDeps
}

func NewNegotiationAggregate(deps NegotiationAggregateDeps) domainagg.NegotiationAggregate {
	deps.Base = deps.Base.withDefaults()
	if deps.Policy.MaxCarrierRetries <= 0 {
		deps.Policy = negotiation.DefaultPolicy()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewEventID == nil {
		deps.NewEventID = NewEventID
	}
	return &negotiationAggregate{deps: deps}
}

func (a *negotiationAggregate) Contract() domainagg.Contract {
	return domainagg.NegotiationAggregateContract
}

func (a *negotiationAggregate) configured() bool {
	d := a.deps
	return d.Quotes != nil && d.Threads != nil && d.Messages != nil && d.Receipts != nil && d.Settlements != nil
}

func (a *negotiationAggregate) now(at time.Time) time.Time {
	if at.IsZero() {
		return a.deps.Now().UTC()
	}
	return at.UTC()
}

func (a *negotiationAggregate) DeclareValue(ctx context.Context, in domainagg.DeclareValueInput) (domainagg.DeclareValueResult, error) {
	const op = "Freight.Negotiation.DeclareValue"
	var out domainagg.DeclareValueResult
	if in.QuoteID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing quote_id", nil)
	}
	if in.CarrierID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing carrier_id", nil)
	}
	if !in.Value.IsPositive() {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "value must be greater than zero", nil)
	}
	if !negotiation.IsMoney(in.Value) {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "value must not have more than two decimal places", nil)
	}
	docRef := strings.TrimSpace(in.DocumentRef)
	if docRef == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing document_ref", nil)
	}
	cteKey := strings.TrimSpace(in.CTeKey)
	if !isDigits(cteKey) {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "cte_key must be a non-empty string of digits", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "negotiation aggregate repos not configured", nil)
	}
	at := a.now(in.DeclaredAt)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		out = domainagg.DeclareValueResult{QuoteID: in.QuoteID}
		q, err := a.deps.Quotes.LockByID(dbc, in.QuoteID)
		if err != nil {
			return err
		}
		if q == nil || !q.IsCarrier(in.CarrierID) {
			return notFound(op, "quote")
		}

		existing, err := a.deps.Threads.GetByQuote(dbc, q.ID, domneg.KindValueNegotiation)
		if err != nil {
			return err
		}
		if q.DeclaredAt != nil {
			same, err := a.sameDeclaration(dbc, q, existing, docRef, in.Value)
			if err != nil {
				return err
			}
			if !same {
				return &negotiation.InvalidTransitionError{From: q.Status, Action: "declare_value"}
			}
			out.QuoteStatus = q.Status
			out.Replayed = true
			if existing != nil {
				id := existing.ID
				out.ThreadID = &id
				out.ThreadVersion = existing.Version
			}
			return nil
		}

		var change negotiation.QuoteChange
		var th *types.NegotiationThread
		if in.Value.GreaterThan(q.AcceptedBidValue.Decimal) {
			st, msg, err := negotiation.Open(q.AcceptedBidValue.Decimal, in.Value, in.Reason, a.deps.Policy)
			if err != nil {
				return err
			}
			change, err = negotiation.EnterValueApproval(q, in.Value, in.Reason, existing != nil, at)
			if err != nil {
				return err
			}
			th = &types.NegotiationThread{
				ID:                   uuid.New(),
				QuoteID:              q.ID,
				Kind:                 domneg.KindValueNegotiation,
				ClientID:             q.ClientID,
				CarrierID:            in.CarrierID,
				Status:               st.Status,
				OriginalValue:        st.OriginalValue,
				CurrentProposedValue: st.CurrentProposedValue,
				CarrierRetryCount:    st.CarrierRetryCount,
				MaxCarrierRetries:    st.MaxCarrierRetries,
				UnreadByClient:       true,
				LastMessageAt:        at,
				Version:              1,
				NextSeq:              1,
				ExpiresAt:            at.Add(a.deps.Policy.Window),
				CreatedAt:            at,
				UpdatedAt:            at,
			}
			if _, err := a.deps.Threads.Create(dbc, th); err != nil {
				return err
			}
			m, err := newMessage(th.ID, 1, msg, at, nil)
			if err != nil {
				return err
			}
			if err := a.deps.Messages.Append(dbc, m); err != nil {
				return err
			}
		} else {
			change, err = negotiation.RecordWithinBid(q, in.Value, at)
			if err != nil {
				return err
			}
		}

		change["cte_key"] = cteKey
		change["document_ref"] = docRef
		change["tracking_code"] = strings.TrimSpace(in.TrackingCode)
		change["tracking_url"] = strings.TrimSpace(in.TrackingURL)
		change["updated_at"] = at
		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, quotesTable, q.ID, q.Version, change)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "quote changed while declaring value"); err != nil {
			return err
		}

		out.QuoteStatus = q.Status
		if th != nil {
			id := th.ID
			out.ThreadID = &id
			out.ThreadVersion = th.Version
			return nil
		}
		eventID, err := enqueueSettlement(dbc, a.deps.Settlements, a.deps.NewEventID, q.ID, nil, settlement.OutcomeApproved, in.Value, at)
		if err != nil {
			return err
		}
		out.SettlementEventID = eventID
		return nil
	})
	return out, err
}

// sameDeclaration reports whether a repeated declaration matches the one on
// record: same document and same first declared value.
func (a *negotiationAggregate) sameDeclaration(dbc dbctx.Context, q *types.Quote, th *types.NegotiationThread, docRef string, value decimal.Decimal) (bool, error) {
	if q.DocumentRef != docRef {
		return false, nil
	}
	if th == nil {
		return q.CarrierDeclaredValue.Valid && q.CarrierDeclaredValue.Decimal.Equal(value), nil
	}
	first, err := a.deps.Messages.ListByThread(dbc, th.ID, 0, 1)
	if err != nil {
		return false, err
	}
	if len(first) == 0 || !first[0].ProposedValue.Valid {
		return false, InvariantError("negotiation thread has no initial proposal")
	}
	return first[0].ProposedValue.Decimal.Equal(value), nil
}

func (a *negotiationAggregate) ApplyAction(ctx context.Context, in domainagg.ApplyActionInput) (domainagg.ApplyActionResult, error) {
	const op = "Freight.Negotiation.ApplyAction"
	var out domainagg.ApplyActionResult
	if in.ThreadID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing thread_id", nil)
	}
	if in.ActorID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing actor_id", nil)
	}
	role, ok := negotiation.ParseRole(in.ActorRole)
	if !ok || role == negotiation.RoleSystem {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unsupported actor role %q", in.ActorRole), nil)
	}
	if in.Sequence < 1 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "sequence must be >= 1", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "negotiation aggregate repos not configured", nil)
	}
	action := negotiation.Action(strings.ToLower(strings.TrimSpace(in.Action)))
	reason := strings.TrimSpace(in.Reason)
	fingerprint := actionFingerprint(action, in.Value, reason)
	at := a.now(in.At)

	var tr negotiation.Transition
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		out = domainagg.ApplyActionResult{}
		th, err := a.deps.Threads.LockByID(dbc, in.ThreadID)
		if err != nil {
			return err
		}
		if th == nil || !isParty(th, role, in.ActorID) {
			return notFound(op, "negotiation thread")
		}

		rec, err := a.deps.Receipts.Find(dbc, th.ID, string(role), in.Sequence)
		if err != nil {
			return err
		}
		if rec != nil {
			if rec.Fingerprint != fingerprint {
				return domainagg.NewError(domainagg.CodeIdempotencyMismatch, op,
					fmt.Sprintf("sequence %d was already used for a different %s action", in.Sequence, role), nil)
			}
			if err := json.Unmarshal(rec.Outcome, &out); err != nil {
				return InvariantError("stored action outcome is unreadable: " + err.Error())
			}
			out.Replayed = true
			return nil
		}
		if th.Version != in.Sequence {
			return &negotiation.ConcurrentModificationError{Expected: in.Sequence, Actual: th.Version}
		}

		tr, err = negotiation.Decide(negotiation.StateOf(th), negotiation.Command{
			Role:   role,
			Action: action,
			Value:  in.Value,
			Reason: reason,
		}, a.deps.Policy)
		if err != nil {
			return err
		}

		q, err := a.deps.Quotes.LockByID(dbc, th.QuoteID)
		if err != nil {
			return err
		}
		if q == nil {
			return InvariantError("negotiation thread references a missing quote")
		}
		change, err := negotiation.ApplyQuoteEffect(q, tr.Quote, at)
		if err != nil {
			return err
		}

		seq := th.NextSeq + 1
		m, err := newMessage(th.ID, seq, tr.Message, at, map[string]any{
			"action":  string(tr.Action),
			"version": th.Version + 1,
		})
		if err != nil {
			return err
		}
		if err := a.deps.Messages.Append(dbc, m); err != nil {
			return err
		}

		updates := map[string]any{
			"status":                 tr.To.Status,
			"current_proposed_value": tr.To.CurrentProposedValue,
			"carrier_retry_count":    tr.To.CarrierRetryCount,
			"max_carrier_retries":    tr.To.MaxCarrierRetries,
			"last_rejection_reason":  tr.To.LastRejectionReason,
			"unread_by_client":       tr.Notify == negotiation.RoleClient,
			"unread_by_carrier":      tr.Notify == negotiation.RoleCarrier,
			"last_message_at":        at,
			"next_seq":               seq,
			"updated_at":             at,
		}
		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, threadsTable, th.ID, th.Version, updates)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "negotiation thread changed while applying action"); err != nil {
			return err
		}

		if change != nil {
			change["updated_at"] = at
			ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, quotesTable, q.ID, q.Version, change)
			if err != nil {
				return err
			}
			if err := RequireCASSuccess(ok, "quote changed while applying negotiation action"); err != nil {
				return err
			}
		}

		out = domainagg.ApplyActionResult{
			ThreadID:             th.ID,
			QuoteID:              th.QuoteID,
			Action:               string(tr.Action),
			FromStatus:           tr.From.Status,
			ToStatus:             tr.To.Status,
			Version:              th.Version + 1,
			CarrierRetryCount:    tr.To.CarrierRetryCount,
			CurrentProposedValue: tr.To.CurrentProposedValue,
			QuoteStatus:          q.Status,
			MessageSeq:           seq,
			CommittedAt:          at,
		}
		if tr.Settlement != nil {
			threadID := th.ID
			eventID, err := enqueueSettlement(dbc, a.deps.Settlements, a.deps.NewEventID, q.ID, &threadID, tr.Settlement.Outcome, tr.Settlement.FinalValue, at)
			if err != nil {
				return err
			}
			out.SettlementEventID = eventID
		}

		outcome, err := json.Marshal(out)
		if err != nil {
			return err
		}
		return a.deps.Receipts.Create(dbc, &types.ActionReceipt{
			ID:          uuid.New(),
			ThreadID:    th.ID,
			ActorRole:   string(role),
			Sequence:    in.Sequence,
			ActorID:     in.ActorID,
			Action:      string(tr.Action),
			Fingerprint: fingerprint,
			Outcome:     datatypes.JSON(outcome),
			CreatedAt:   at,
		})
	})
	if err == nil && !out.Replayed {
		a.deps.Base.Hooks.ObserveTransition(string(tr.Action), tr.From.Status, tr.To.Status)
	}
	return out, err
}

func (a *negotiationAggregate) MarkRead(ctx context.Context, in domainagg.MarkReadInput) error {
	const op = "Freight.Negotiation.MarkRead"
	if in.ThreadID == uuid.Nil || in.ActorID == uuid.Nil {
		return domainagg.NewError(domainagg.CodeValidation, op, "missing thread_id or actor_id", nil)
	}
	role, ok := negotiation.ParseRole(in.ActorRole)
	if !ok || role == negotiation.RoleSystem {
		return domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unsupported actor role %q", in.ActorRole), nil)
	}
	if a.deps.Threads == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "negotiation aggregate repos not configured", nil)
	}
	return executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		th, err := a.deps.Threads.GetByID(dbc, in.ThreadID)
		if err != nil {
			return err
		}
		if th == nil || !isParty(th, role, in.ActorID) {
			return notFound(op, "negotiation thread")
		}
		column := "unread_by_client"
		if role == negotiation.RoleCarrier {
			column = "unread_by_carrier"
		}
		// Plain column write: reading a thread is not a state transition.
		return a.deps.Threads.UpdateFields(dbc, th.ID, map[string]interface{}{column: false})
	})
}

func isParty(th *types.NegotiationThread, role negotiation.Role, actorID uuid.UUID) bool {
	switch role {
	case negotiation.RoleClient:
		return th.ClientID == actorID
	case negotiation.RoleCarrier:
		return th.CarrierID == actorID
	}
	return false
}

func newMessage(threadID uuid.UUID, seq int64, d negotiation.MessageDraft, at time.Time, meta map[string]any) (*types.NegotiationMessage, error) {
	m := &types.NegotiationMessage{
		ID:            uuid.New(),
		ThreadID:      threadID,
		Seq:           seq,
		Sender:        d.Sender,
		Kind:          d.Kind,
		ProposedValue: d.ProposedValue,
		Reason:        d.Reason,
		Text:          d.Text,
		CreatedAt:     at,
	}
	if d.Final {
		if meta == nil {
			meta = map[string]any{}
		}
		meta["final"] = true
	}
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err != nil {
			return nil, err
		}
		m.Metadata = datatypes.JSON(b)
	}
	return m, nil
}

// actionFingerprint identifies an action payload for idempotent replay.
func actionFingerprint(action negotiation.Action, value *decimal.Decimal, reason string) string {
	v := ""
	if value != nil {
		v = value.String()
	}
	sum := sha256.Sum256([]byte(string(action) + "|" + v + "|" + reason))
	return hex.EncodeToString(sum[:])
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
