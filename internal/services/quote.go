package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/freightquote-backend/internal/data/repos"
	types "github.com/yungbote/freightquote-backend/internal/domain"
	domainagg "github.com/yungbote/freightquote-backend/internal/domain/aggregates"
	"github.com/yungbote/freightquote-backend/internal/domain/freight"
	"github.com/yungbote/freightquote-backend/internal/modules/negotiation"
	"github.com/yungbote/freightquote-backend/internal/platform/dbctx"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

type QuoteService interface {
	CreateQuote(ctx context.Context, in domainagg.CreateQuoteInput) (*types.Quote, error)
	GetQuote(ctx context.Context, quoteID uuid.UUID) (*types.Quote, error)
	ListResponses(ctx context.Context, quoteID uuid.UUID) ([]*types.CarrierResponse, error)
	SubmitBid(ctx context.Context, in domainagg.SubmitBidInput) (domainagg.SubmitBidResult, error)
	AcceptBid(ctx context.Context, quoteID, responseID uuid.UUID) (*types.Quote, error)
	MarkAwaitingPickup(ctx context.Context, quoteID uuid.UUID) (*types.Quote, error)
	MarkDelivered(ctx context.Context, quoteID uuid.UUID) (*types.Quote, error)
}

type quoteService struct {
	log       *logger.Logger
	quotes    repos.QuoteRepo
	responses repos.CarrierResponseRepo
	agg       domainagg.QuoteAggregate
}

func NewQuoteService(log *logger.Logger, quotes repos.QuoteRepo, responses repos.CarrierResponseRepo, agg domainagg.QuoteAggregate) QuoteService {
	return &quoteService{
		log:       log.With("service", "QuoteService"),
		quotes:    quotes,
		responses: responses,
		agg:       agg,
	}
}

func (s *quoteService) CreateQuote(ctx context.Context, in domainagg.CreateQuoteInput) (*types.Quote, error) {
	actor, err := requireRole(ctx, string(negotiation.RoleClient))
	if err != nil {
		return nil, err
	}
	in.ClientID = actor.PartyID
	res, err := s.agg.CreateQuote(ctx, in)
	if err != nil {
		return nil, err
	}
	s.log.Info("Quote created", "quote_id", res.QuoteID, "client_id", actor.PartyID)
	return s.load(ctx, res.QuoteID)
}

func (s *quoteService) GetQuote(ctx context.Context, quoteID uuid.UUID) (*types.Quote, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	q, err := s.quotes.GetByID(dbctx.New(ctx), quoteID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "QuoteService.GetQuote", err)
	}
	if q == nil || !canViewQuote(q, actor.Role, actor.PartyID) {
		return nil, quoteNotFound("QuoteService.GetQuote")
	}
	return q, nil
}

// ListResponses returns every bid to the quote's client and only the
// caller's own bid to a carrier.
func (s *quoteService) ListResponses(ctx context.Context, quoteID uuid.UUID) ([]*types.CarrierResponse, error) {
	q, err := s.GetQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	actor, _ := requireActor(ctx)
	all, err := s.responses.ListByQuote(dbctx.New(ctx), q.ID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "QuoteService.ListResponses", err)
	}
	if actor.Role == string(negotiation.RoleClient) || actor.Role == string(negotiation.RoleSystem) {
		return all, nil
	}
	out := make([]*types.CarrierResponse, 0, 1)
	for _, r := range all {
		if r != nil && r.CarrierID == actor.PartyID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *quoteService) SubmitBid(ctx context.Context, in domainagg.SubmitBidInput) (domainagg.SubmitBidResult, error) {
	actor, err := requireRole(ctx, string(negotiation.RoleCarrier))
	if err != nil {
		return domainagg.SubmitBidResult{}, err
	}
	in.CarrierID = actor.PartyID
	return s.agg.SubmitBid(ctx, in)
}

func (s *quoteService) AcceptBid(ctx context.Context, quoteID, responseID uuid.UUID) (*types.Quote, error) {
	actor, err := requireRole(ctx, string(negotiation.RoleClient))
	if err != nil {
		return nil, err
	}
	res, err := s.agg.AcceptBid(ctx, domainagg.AcceptBidInput{QuoteID: quoteID, ClientID: actor.PartyID, ResponseID: responseID})
	if err != nil {
		return nil, err
	}
	s.log.Info("Bid accepted", "quote_id", quoteID, "response_id", responseID)
	return s.load(ctx, res.QuoteID)
}

func (s *quoteService) MarkAwaitingPickup(ctx context.Context, quoteID uuid.UUID) (*types.Quote, error) {
	actor, err := requireRole(ctx, string(negotiation.RoleCarrier))
	if err != nil {
		return nil, err
	}
	res, err := s.agg.MarkAwaitingPickup(ctx, domainagg.CarrierQuoteInput{QuoteID: quoteID, CarrierID: actor.PartyID})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, res.QuoteID)
}

func (s *quoteService) MarkDelivered(ctx context.Context, quoteID uuid.UUID) (*types.Quote, error) {
	actor, err := requireRole(ctx, string(negotiation.RoleCarrier))
	if err != nil {
		return nil, err
	}
	res, err := s.agg.MarkDelivered(ctx, domainagg.CarrierQuoteInput{QuoteID: quoteID, CarrierID: actor.PartyID})
	if err != nil {
		return nil, err
	}
	s.log.Info("Quote settled", "quote_id", quoteID, "settlement_event_id", res.SettlementEventID)
	return s.load(ctx, res.QuoteID)
}

func (s *quoteService) load(ctx context.Context, id uuid.UUID) (*types.Quote, error) {
	q, err := s.quotes.GetByID(dbctx.New(ctx), id)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "QuoteService.load", err)
	}
	if q == nil {
		return nil, quoteNotFound("QuoteService.load")
	}
	return q, nil
}

// canViewQuote: the owning client always; carriers while the quote is
// still collecting bids, then only the winning carrier.
func canViewQuote(q *types.Quote, role string, partyID uuid.UUID) bool {
	switch role {
	case string(negotiation.RoleSystem):
		return true
	case string(negotiation.RoleClient):
		return q.ClientID == partyID
	case string(negotiation.RoleCarrier):
		if q.Status == freight.QuoteStatusOpen || q.Status == freight.QuoteStatusBidding {
			return true
		}
		return q.IsCarrier(partyID)
	}
	return false
}

func quoteNotFound(op string) error {
	return domainagg.NewError(domainagg.CodeNotFound, op, "quote not found", nil)
}
