package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	domainagg "github.com/yungbote/freightquote-backend/internal/domain/aggregates"
	"github.com/yungbote/freightquote-backend/internal/http/response"
	"github.com/yungbote/freightquote-backend/internal/services"
)

type NegotiationHandler struct {
	neg services.NegotiationService
}

func NewNegotiationHandler(neg services.NegotiationService) *NegotiationHandler {
	return &NegotiationHandler{neg: neg}
}

type declareValueRequest struct {
	Value        decimal.Decimal `json:"value"`
	Reason       string          `json:"reason"`
	DocumentRef  string          `json:"document_ref"`
	CTeKey       string          `json:"cte_key"`
	TrackingCode string          `json:"tracking_code"`
	TrackingURL  string          `json:"tracking_url"`
}

// POST /api/quotes/:id/declared-value
func (h *NegotiationHandler) DeclareValue(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req declareValueRequest
	if !bindBody(c, &req) {
		return
	}
	res, err := h.neg.DeclareValue(c.Request.Context(), domainagg.DeclareValueInput{
		QuoteID:      id,
		Value:        req.Value,
		Reason:       req.Reason,
		DocumentRef:  req.DocumentRef,
		CTeKey:       req.CTeKey,
		TrackingCode: req.TrackingCode,
		TrackingURL:  req.TrackingURL,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	status := http.StatusOK
	if res.ThreadID != nil && !res.Replayed {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"quote_id":            res.QuoteID,
		"quote_status":        res.QuoteStatus,
		"thread_id":           res.ThreadID,
		"thread_version":      res.ThreadVersion,
		"settlement_event_id": res.SettlementEventID,
		"replayed":            res.Replayed,
	})
}

// GET /api/quotes/:id/negotiation
func (h *NegotiationHandler) GetThreadByQuote(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	v, err := h.neg.GetThreadByQuote(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"thread": v})
}

// GET /api/negotiations?status=&limit=
func (h *NegotiationHandler) ListThreads(c *gin.Context) {
	limit, ok := limitQuery(c)
	if !ok {
		return
	}
	threads, err := h.neg.ListThreads(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"threads": threads})
}

// GET /api/negotiations/:id
func (h *NegotiationHandler) GetThread(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	v, err := h.neg.GetThread(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"thread": v})
}

type decisionRequest struct {
	Decision string           `json:"decision"`
	Sequence int              `json:"sequence"`
	Value    *decimal.Decimal `json:"value"`
	Reason   string           `json:"reason"`
}

// POST /api/negotiations/:id/client-decision
func (h *NegotiationHandler) SubmitClientDecision(c *gin.Context) {
	h.decide(c, h.neg.SubmitClientDecision)
}

// POST /api/negotiations/:id/carrier-decision
func (h *NegotiationHandler) SubmitCarrierDecision(c *gin.Context) {
	h.decide(c, h.neg.SubmitCarrierDecision)
}

type decideFunc func(ctx context.Context, in services.DecisionInput) (domainagg.ApplyActionResult, error)

func (h *NegotiationHandler) decide(c *gin.Context, submit decideFunc) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req decisionRequest
	if !bindBody(c, &req) {
		return
	}
	seq, ok := sequenceFrom(c, req.Sequence)
	if !ok {
		return
	}
	res, err := submit(c.Request.Context(), services.DecisionInput{
		ThreadID: id,
		Decision: req.Decision,
		Sequence: seq,
		Value:    req.Value,
		Reason:   req.Reason,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"result": res})
}

// POST /api/negotiations/:id/read
func (h *NegotiationHandler) MarkRead(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.neg.MarkRead(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
