package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/freightquote-backend/internal/data/repos"
	types "github.com/yungbote/freightquote-backend/internal/domain"
	domainagg "github.com/yungbote/freightquote-backend/internal/domain/aggregates"
	domneg "github.com/yungbote/freightquote-backend/internal/domain/negotiation"
	"github.com/yungbote/freightquote-backend/internal/modules/negotiation"
	"github.com/yungbote/freightquote-backend/internal/observability"
	"github.com/yungbote/freightquote-backend/internal/platform/apierr"
	"github.com/yungbote/freightquote-backend/internal/platform/dbctx"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

// DecisionInput is one client or carrier decision on a thread. Sequence is
// the thread version the caller last read.
type DecisionInput struct {
	ThreadID uuid.UUID
	Decision string
	Sequence int
	Value    *decimal.Decimal
	Reason   string
}

type NegotiationService interface {
	DeclareValue(ctx context.Context, in domainagg.DeclareValueInput) (domainagg.DeclareValueResult, error)
	GetThread(ctx context.Context, threadID uuid.UUID) (*ThreadView, error)
	GetThreadByQuote(ctx context.Context, quoteID uuid.UUID) (*ThreadView, error)
	// ListThreads is the caller's inbox. An empty status lists every thread.
	ListThreads(ctx context.Context, status string, limit int) ([]*ThreadSummary, error)
	SubmitClientDecision(ctx context.Context, in DecisionInput) (domainagg.ApplyActionResult, error)
	SubmitCarrierDecision(ctx context.Context, in DecisionInput) (domainagg.ApplyActionResult, error)
	MarkRead(ctx context.Context, threadID uuid.UUID) error
}

type negotiationService struct {
	log      *logger.Logger
	threads  repos.NegotiationThreadRepo
	messages repos.NegotiationMessageRepo
	agg      domainagg.NegotiationAggregate
	cache    ThreadCache
	verifier DocumentVerifier
	policy   negotiation.Policy
	tracer   trace.Tracer
	now      func() time.Time
}

func NewNegotiationService(
	log *logger.Logger,
	threads repos.NegotiationThreadRepo,
	messages repos.NegotiationMessageRepo,
	agg domainagg.NegotiationAggregate,
	cache ThreadCache,
	verifier DocumentVerifier,
	policy negotiation.Policy,
) NegotiationService {
	if cache == nil {
		cache = NewNoopThreadCache()
	}
	if verifier == nil {
		verifier = NewDocumentVerifier(log, nil)
	}
	return &negotiationService{
		log:      log.With("service", "NegotiationService"),
		threads:  threads,
		messages: messages,
		agg:      agg,
		cache:    cache,
		verifier: verifier,
		policy:   policy,
		tracer:   observability.Tracer("negotiation"),
		now:      time.Now,
	}
}

func (s *negotiationService) DeclareValue(ctx context.Context, in domainagg.DeclareValueInput) (domainagg.DeclareValueResult, error) {
	actor, err := requireRole(ctx, string(negotiation.RoleCarrier))
	if err != nil {
		return domainagg.DeclareValueResult{}, err
	}
	ctx, span := s.tracer.Start(ctx, "negotiation.DeclareValue", trace.WithAttributes(
		attribute.String("quote.id", in.QuoteID.String()),
	))
	defer span.End()

	if err := s.verifier.Verify(ctx, in.DocumentRef); err != nil {
		endSpan(span, err)
		return domainagg.DeclareValueResult{}, err
	}
	in.CarrierID = actor.PartyID
	res, err := s.agg.DeclareValue(ctx, in)
	if err != nil {
		endSpan(span, err)
		return res, err
	}
	span.SetAttributes(
		attribute.String("quote.status", res.QuoteStatus),
		attribute.Bool("negotiation.replayed", res.Replayed),
	)
	if res.ThreadID != nil {
		s.cache.Invalidate(ctx, *res.ThreadID)
	}
	if !res.Replayed {
		s.log.Info("Carrier value declared",
			"quote_id", res.QuoteID,
			"carrier_id", actor.PartyID,
			"quote_status", res.QuoteStatus,
			"opened_thread", res.ThreadID != nil,
		)
	}
	return res, nil
}

func (s *negotiationService) SubmitClientDecision(ctx context.Context, in DecisionInput) (domainagg.ApplyActionResult, error) {
	return s.apply(ctx, negotiation.RoleClient, in)
}

func (s *negotiationService) SubmitCarrierDecision(ctx context.Context, in DecisionInput) (domainagg.ApplyActionResult, error) {
	return s.apply(ctx, negotiation.RoleCarrier, in)
}

func (s *negotiationService) apply(ctx context.Context, role negotiation.Role, in DecisionInput) (domainagg.ApplyActionResult, error) {
	actor, err := requireRole(ctx, string(role))
	if err != nil {
		return domainagg.ApplyActionResult{}, err
	}
	ctx, span := s.tracer.Start(ctx, "negotiation.ApplyAction", trace.WithAttributes(
		attribute.String("negotiation.thread_id", in.ThreadID.String()),
		attribute.String("negotiation.role", string(role)),
		attribute.String("negotiation.action", in.Decision),
		attribute.Int("negotiation.sequence", in.Sequence),
	))
	defer span.End()

	res, err := s.agg.ApplyAction(ctx, domainagg.ApplyActionInput{
		ThreadID:  in.ThreadID,
		ActorID:   actor.PartyID,
		ActorRole: string(role),
		Action:    in.Decision,
		Sequence:  in.Sequence,
		Value:     in.Value,
		Reason:    in.Reason,
	})
	if err != nil {
		endSpan(span, err)
		s.log.Debug("Negotiation action refused",
			"thread_id", in.ThreadID,
			"actor_id", actor.PartyID,
			"action", in.Decision,
			"code", string(domainagg.CodeOf(err)),
		)
		return res, err
	}
	span.SetAttributes(
		attribute.String("negotiation.from", res.FromStatus),
		attribute.String("negotiation.to", res.ToStatus),
		attribute.Bool("negotiation.replayed", res.Replayed),
	)
	s.cache.Invalidate(ctx, res.ThreadID)
	if !res.Replayed {
		s.log.Info("Negotiation action applied",
			"thread_id", res.ThreadID,
			"quote_id", res.QuoteID,
			"action", res.Action,
			"from", res.FromStatus,
			"to", res.ToStatus,
			"version", res.Version,
			"carrier_retry_count", res.CarrierRetryCount,
		)
	}
	return res, nil
}

func (s *negotiationService) GetThread(ctx context.Context, threadID uuid.UUID) (*ThreadView, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if v, ok := s.cache.Get(ctx, threadID); ok {
		if !viewVisibleTo(v, actor.Role, actor.PartyID) {
			return nil, threadNotFound("NegotiationService.GetThread")
		}
		v.refresh(s.now(), s.policy.PollInterval)
		return v, nil
	}
	th, err := s.threads.GetByID(dbctx.New(ctx), threadID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "NegotiationService.GetThread", err)
	}
	return s.view(ctx, th, actor.Role, actor.PartyID)
}

func (s *negotiationService) GetThreadByQuote(ctx context.Context, quoteID uuid.UUID) (*ThreadView, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	th, err := s.threads.GetByQuote(dbctx.New(ctx), quoteID, domneg.KindValueNegotiation)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "NegotiationService.GetThreadByQuote", err)
	}
	return s.view(ctx, th, actor.Role, actor.PartyID)
}

func (s *negotiationService) ListThreads(ctx context.Context, status string, limit int) ([]*ThreadSummary, error) {
	const op = "NegotiationService.ListThreads"
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Role != string(negotiation.RoleClient) && actor.Role != string(negotiation.RoleCarrier) {
		return nil, apierr.Forbidden("only clients and carriers have a negotiation inbox")
	}
	var statuses []string
	if status = strings.TrimSpace(status); status != "" {
		if !domneg.IsStatus(status) {
			return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown status %q", status), nil)
		}
		statuses = []string{status}
	}
	threads, err := s.threads.ListByParty(dbctx.New(ctx), actor.PartyID, actor.Role, statuses, limit)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	now := s.now()
	out := make([]*ThreadSummary, 0, len(threads))
	for _, th := range threads {
		out = append(out, newThreadSummary(th, actor.Role, now))
	}
	return out, nil
}

func (s *negotiationService) view(ctx context.Context, th *types.NegotiationThread, role string, partyID uuid.UUID) (*ThreadView, error) {
	if th == nil {
		return nil, threadNotFound("NegotiationService.GetThread")
	}
	msgs, err := s.messages.ListByThread(dbctx.New(ctx), th.ID, 0, 0)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "NegotiationService.GetThread", err)
	}
	// Messages committed after the thread row was read belong to a later version.
	visible := msgs[:0]
	for _, m := range msgs {
		if m.Seq <= th.NextSeq {
			visible = append(visible, m)
		}
	}
	v := newThreadView(th, visible)
	if !viewVisibleTo(v, role, partyID) {
		return nil, threadNotFound("NegotiationService.GetThread")
	}
	s.cache.Set(ctx, v)
	v.refresh(s.now(), s.policy.PollInterval)
	return v, nil
}

func (s *negotiationService) MarkRead(ctx context.Context, threadID uuid.UUID) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	if err := s.agg.MarkRead(ctx, domainagg.MarkReadInput{ThreadID: threadID, ActorID: actor.PartyID, ActorRole: actor.Role}); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, threadID)
	return nil
}

func viewVisibleTo(v *ThreadView, role string, partyID uuid.UUID) bool {
	switch role {
	case string(negotiation.RoleSystem):
		return true
	case string(negotiation.RoleClient):
		return v.ClientID == partyID
	case string(negotiation.RoleCarrier):
		return v.CarrierID == partyID
	}
	return false
}

func threadNotFound(op string) error {
	return domainagg.NewError(domainagg.CodeNotFound, op, "negotiation thread not found", nil)
}

func endSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, string(domainagg.CodeOf(err)))
}
