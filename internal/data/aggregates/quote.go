package aggregates

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/freightquote-backend/internal/data/repos"
	types "github.com/yungbote/freightquote-backend/internal/domain"
	domainagg "github.com/yungbote/freightquote-backend/internal/domain/aggregates"
	"github.com/yungbote/freightquote-backend/internal/domain/freight"
	"github.com/yungbote/freightquote-backend/internal/domain/settlement"
	"github.com/yungbote/freightquote-backend/internal/platform/dbctx"
)

type QuoteAggregateDeps struct {
	Base BaseDeps

	Quotes      repos.QuoteRepo
	Responses   repos.CarrierResponseRepo
	Settlements repos.SettlementEventRepo

	Now        func() time.Time
	NewEventID func(time.Time) string
}

type quoteAggregate struct {
	deps QuoteAggregateDeps
}

func NewQuoteAggregate(deps QuoteAggregateDeps) domainagg.QuoteAggregate {
	deps.Base = deps.Base.withDefaults()
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewEventID == nil {
		deps.NewEventID = NewEventID
	}
	return &quoteAggregate{deps: deps}
}

func (a *quoteAggregate) Contract() domainagg.Contract {
	return domainagg.QuoteAggregateContract
}

func (a *quoteAggregate) configured() bool {
	return a.deps.Quotes != nil && a.deps.Responses != nil && a.deps.Settlements != nil
}

func (a *quoteAggregate) CreateQuote(ctx context.Context, in domainagg.CreateQuoteInput) (domainagg.QuoteResult, error) {
	const op = "Freight.Quote.CreateQuote"
	var out domainagg.QuoteResult
	if in.ClientID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing client_id", nil)
	}
	product := strings.TrimSpace(in.ProductInfo)
	if product == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing product_info", nil)
	}
	if !in.Weight.IsPositive() {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "weight must be greater than zero", nil)
	}
	if !in.DeclaredInvoiceValue.IsPositive() {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "declared_invoice_value must be greater than zero", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "quote aggregate repos not configured", nil)
	}
	now := a.deps.Now().UTC()
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		q := &types.Quote{
			ID:                   uuid.New(),
			ClientID:             in.ClientID,
			Status:               freight.QuoteStatusOpen,
			Version:              1,
			ProductInfo:          product,
			Weight:               in.Weight,
			DeclaredInvoiceValue: in.DeclaredInvoiceValue,
			Origin:               strings.TrimSpace(in.Origin),
			Destination:          strings.TrimSpace(in.Destination),
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if _, err := a.deps.Quotes.Create(dbc, q); err != nil {
			return err
		}
		out = domainagg.QuoteResult{QuoteID: q.ID, Status: q.Status, Version: q.Version}
		return nil
	})
	return out, err
}

func (a *quoteAggregate) SubmitBid(ctx context.Context, in domainagg.SubmitBidInput) (domainagg.SubmitBidResult, error) {
	const op = "Freight.Quote.SubmitBid"
	var out domainagg.SubmitBidResult
	if in.QuoteID == uuid.Nil || in.CarrierID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing quote_id or carrier_id", nil)
	}
	if !in.BaseValue.IsPositive() {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "base_value must be greater than zero", nil)
	}
	if in.LeadTimeDays < 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "lead_time_days must be >= 0", nil)
	}
	surcharges := make([]freight.Surcharge, 0, len(in.Surcharges))
	for _, s := range in.Surcharges {
		label := strings.TrimSpace(s.Label)
		if label == "" || s.Amount.IsNegative() {
			return out, domainagg.NewError(domainagg.CodeValidation, op, "surcharges need a label and a non-negative amount", nil)
		}
		surcharges = append(surcharges, freight.Surcharge{Label: label, Amount: s.Amount})
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "quote aggregate repos not configured", nil)
	}
	surchargeJSON, err := json.Marshal(surcharges)
	if err != nil {
		return out, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	total := freight.SumTotal(in.BaseValue, surcharges)
	now := a.deps.Now().UTC()

	err = executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		q, err := a.deps.Quotes.LockByID(dbc, in.QuoteID)
		if err != nil {
			return err
		}
		if q == nil {
			return notFound(op, "quote")
		}
		if err := RequireStatusAllowed(q.Status, freight.QuoteStatusOpen, freight.QuoteStatusBidding); err != nil {
			return domainagg.NewError(domainagg.CodeInvalidTransition, op, "quote no longer accepts bids", err)
		}
		resp := &types.CarrierResponse{
			ID:           uuid.New(),
			QuoteID:      q.ID,
			CarrierID:    in.CarrierID,
			Status:       freight.ResponseStatusSubmitted,
			BaseValue:    in.BaseValue,
			Surcharges:   datatypes.JSON(surchargeJSON),
			TotalValue:   total,
			LeadTimeDays: in.LeadTimeDays,
			Notes:        strings.TrimSpace(in.Notes),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if _, err := a.deps.Responses.Create(dbc, resp); err != nil {
			return err
		}
		if q.Status == freight.QuoteStatusOpen {
			ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, quotesTable, q.ID, q.Version, map[string]any{
				"status":     freight.QuoteStatusBidding,
				"updated_at": now,
			})
			if err != nil {
				return err
			}
			if err := RequireCASSuccess(ok, "quote changed while submitting bid"); err != nil {
				return err
			}
			q.Status = freight.QuoteStatusBidding
		}
		out = domainagg.SubmitBidResult{QuoteID: q.ID, ResponseID: resp.ID, TotalValue: total, QuoteStatus: q.Status}
		return nil
	})
	return out, err
}

func (a *quoteAggregate) AcceptBid(ctx context.Context, in domainagg.AcceptBidInput) (domainagg.QuoteResult, error) {
	const op = "Freight.Quote.AcceptBid"
	var out domainagg.QuoteResult
	if in.QuoteID == uuid.Nil || in.ClientID == uuid.Nil || in.ResponseID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing quote_id, client_id or response_id", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "quote aggregate repos not configured", nil)
	}
	now := a.deps.Now().UTC()
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		q, err := a.deps.Quotes.LockByID(dbc, in.QuoteID)
		if err != nil {
			return err
		}
		if q == nil || q.ClientID != in.ClientID {
			return notFound(op, "quote")
		}
		resp, err := a.deps.Responses.GetByID(dbc, in.ResponseID)
		if err != nil {
			return err
		}
		if resp == nil || resp.QuoteID != q.ID {
			return notFound(op, "carrier response")
		}
		if q.Status != freight.QuoteStatusBidding || q.HasAcceptedBid() {
			return domainagg.NewError(domainagg.CodeInvalidTransition, op, "quote is "+q.Status+"; only a quote in bidding can accept a bid", nil)
		}
		carrierID := resp.CarrierID
		responseID := resp.ID
		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, quotesTable, q.ID, q.Version, map[string]any{
			"status":               freight.QuoteStatusAccepted,
			"carrier_id":           carrierID,
			"accepted_response_id": responseID,
			"accepted_bid_value":   resp.TotalValue,
			"accepted_at":          now,
			"updated_at":           now,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "quote changed while accepting bid"); err != nil {
			return err
		}
		if err := a.deps.Responses.UpdateStatus(dbc, resp.ID, freight.ResponseStatusAccepted); err != nil {
			return err
		}
		if err := a.deps.Responses.SetStatusForQuote(dbc, q.ID, resp.ID, freight.ResponseStatusDeclined); err != nil {
			return err
		}
		out = domainagg.QuoteResult{QuoteID: q.ID, Status: freight.QuoteStatusAccepted, Version: q.Version + 1}
		return nil
	})
	return out, err
}

func (a *quoteAggregate) MarkAwaitingPickup(ctx context.Context, in domainagg.CarrierQuoteInput) (domainagg.QuoteResult, error) {
	const op = "Freight.Quote.MarkAwaitingPickup"
	return a.carrierStep(ctx, op, in, freight.QuoteStatusAccepted, freight.QuoteStatusAwaitingPickup, nil)
}

// MarkDelivered closes the freight and queues the final settlement at the
// value the quote ended up with.
func (a *quoteAggregate) MarkDelivered(ctx context.Context, in domainagg.CarrierQuoteInput) (domainagg.QuoteResult, error) {
	const op = "Freight.Quote.MarkDelivered"
	return a.carrierStep(ctx, op, in, freight.QuoteStatusInTransit, freight.QuoteStatusSettled,
		func(dbc dbctx.Context, q *types.Quote, at time.Time, updates map[string]any) (string, error) {
			updates["delivered_at"] = at
			final := q.AcceptedBidValue.Decimal
			if q.CarrierDeclaredValue.Valid {
				final = q.CarrierDeclaredValue.Decimal
			}
			return enqueueSettlement(dbc, a.deps.Settlements, a.deps.NewEventID, q.ID, nil, settlement.OutcomeSettled, final, at)
		})
}

type stepFunc func(dbc dbctx.Context, q *types.Quote, at time.Time, updates map[string]any) (string, error)

func (a *quoteAggregate) carrierStep(ctx context.Context, op string, in domainagg.CarrierQuoteInput, from, to string, step stepFunc) (domainagg.QuoteResult, error) {
	var out domainagg.QuoteResult
	if in.QuoteID == uuid.Nil || in.CarrierID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing quote_id or carrier_id", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "quote aggregate repos not configured", nil)
	}
	at := in.At.UTC()
	if in.At.IsZero() {
		at = a.deps.Now().UTC()
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		q, err := a.deps.Quotes.LockByID(dbc, in.QuoteID)
		if err != nil {
			return err
		}
		if q == nil || !q.IsCarrier(in.CarrierID) {
			return notFound(op, "quote")
		}
		if q.Status != from {
			return domainagg.NewError(domainagg.CodeInvalidTransition, op, "quote is "+q.Status+", expected "+from, nil)
		}
		updates := map[string]any{"status": to, "updated_at": at}
		eventID := ""
		if step != nil {
			if eventID, err = step(dbc, q, at, updates); err != nil {
				return err
			}
		}
		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, quotesTable, q.ID, q.Version, updates)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "quote changed during "+op); err != nil {
			return err
		}
		out = domainagg.QuoteResult{QuoteID: q.ID, Status: to, Version: q.Version + 1, SettlementEventID: eventID}
		return nil
	})
	return out, err
}
