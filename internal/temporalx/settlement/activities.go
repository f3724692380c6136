package settlement

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/freightquote-backend/internal/data/repos"
	"github.com/yungbote/freightquote-backend/internal/domain/freight"
	domset "github.com/yungbote/freightquote-backend/internal/domain/settlement"
	"github.com/yungbote/freightquote-backend/internal/platform/dbctx"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

const (
	ErrTypeInvalidInput = "SettlementInvalidInput"
	ErrTypeMismatch     = "SettlementQuoteMismatch"
)

type Activities struct {
	Log    *logger.Logger
	Quotes repos.QuoteRepo
}

// Reconcile checks that the quote reached the state the settlement outcome
// implies. A mismatch is not retried.
func (a *Activities) Reconcile(ctx context.Context, in Input) (Result, error) {
	res := Result{EventID: in.EventID, QuoteID: in.QuoteID, Outcome: in.Outcome, FinalValue: in.FinalValue}
	if a == nil || a.Quotes == nil {
		return res, fmt.Errorf("settlement: activity not configured")
	}
	quoteID, err := uuid.Parse(strings.TrimSpace(in.QuoteID))
	if err != nil || quoteID == uuid.Nil {
		return res, temporal.NewNonRetryableApplicationError("settlement: invalid quote_id", ErrTypeInvalidInput, err)
	}
	value, err := decimal.NewFromString(strings.TrimSpace(in.FinalValue))
	if err != nil {
		return res, temporal.NewNonRetryableApplicationError("settlement: invalid final_value", ErrTypeInvalidInput, err)
	}

	q, err := a.Quotes.GetByID(dbctx.New(ctx), quoteID)
	if err != nil {
		return res, fmt.Errorf("settlement: load quote: %w", err)
	}
	if q == nil {
		return res, temporal.NewNonRetryableApplicationError("settlement: quote not found", ErrTypeMismatch, nil)
	}
	res.QuoteStatus = q.Status

	want, ok := expectedStatuses[in.Outcome]
	if !ok {
		return res, temporal.NewNonRetryableApplicationError("settlement: unknown outcome "+in.Outcome, ErrTypeInvalidInput, nil)
	}
	if !want[q.Status] {
		return res, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("settlement: outcome %s but quote is %s", in.Outcome, q.Status), ErrTypeMismatch, nil)
	}
	if in.Outcome != domset.OutcomeReturned && q.CarrierDeclaredValue.Valid && !q.CarrierDeclaredValue.Decimal.Equal(value) {
		return res, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("settlement: final value %s differs from declared %s", value.StringFixed(2), q.CarrierDeclaredValue.Decimal.StringFixed(2)),
			ErrTypeMismatch, nil)
	}
	if a.Log != nil {
		a.Log.Debug("Settlement quote verified", "event_id", in.EventID, "quote_id", quoteID, "quote_status", q.Status)
	}
	return res, nil
}

// A quote keeps moving after an approval, so approved accepts any later state.
var expectedStatuses = map[string]map[string]bool{
	domset.OutcomeApproved: {freight.QuoteStatusInTransit: true, freight.QuoteStatusSettled: true},
	domset.OutcomeReturned: {freight.QuoteStatusReturned: true},
	domset.OutcomeSettled:  {freight.QuoteStatusSettled: true},
}
