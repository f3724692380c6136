package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	domainagg "github.com/yungbote/freightquote-backend/internal/domain/aggregates"
	"github.com/yungbote/freightquote-backend/internal/http/response"
	"github.com/yungbote/freightquote-backend/internal/services"
)

type QuoteHandler struct {
	quotes services.QuoteService
}

func NewQuoteHandler(quotes services.QuoteService) *QuoteHandler {
	return &QuoteHandler{quotes: quotes}
}

type createQuoteRequest struct {
	ProductInfo          string          `json:"product_info"`
	Weight               decimal.Decimal `json:"weight"`
	DeclaredInvoiceValue decimal.Decimal `json:"declared_invoice_value"`
	Origin               string          `json:"origin"`
	Destination          string          `json:"destination"`
}

// POST /api/quotes
func (h *QuoteHandler) CreateQuote(c *gin.Context) {
	var req createQuoteRequest
	if !bindBody(c, &req) {
		return
	}
	q, err := h.quotes.CreateQuote(c.Request.Context(), domainagg.CreateQuoteInput{
		ProductInfo:          req.ProductInfo,
		Weight:               req.Weight,
		DeclaredInvoiceValue: req.DeclaredInvoiceValue,
		Origin:               req.Origin,
		Destination:          req.Destination,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"quote": q})
}

// GET /api/quotes/:id
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	q, err := h.quotes.GetQuote(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"quote": q})
}

type surchargeRequest struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

type submitBidRequest struct {
	BaseValue    decimal.Decimal    `json:"base_value"`
	Surcharges   []surchargeRequest `json:"surcharges"`
	LeadTimeDays int                `json:"lead_time_days"`
	Notes        string             `json:"notes"`
}

// POST /api/quotes/:id/responses
func (h *QuoteHandler) SubmitBid(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req submitBidRequest
	if !bindBody(c, &req) {
		return
	}
	in := domainagg.SubmitBidInput{
		QuoteID:      id,
		BaseValue:    req.BaseValue,
		LeadTimeDays: req.LeadTimeDays,
		Notes:        req.Notes,
	}
	for _, s := range req.Surcharges {
		in.Surcharges = append(in.Surcharges, domainagg.SurchargeInput{Label: s.Label, Amount: s.Amount})
	}
	res, err := h.quotes.SubmitBid(c.Request.Context(), in)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{
		"quote_id":     res.QuoteID,
		"response_id":  res.ResponseID,
		"total_value":  res.TotalValue,
		"quote_status": res.QuoteStatus,
	})
}

// GET /api/quotes/:id/responses
func (h *QuoteHandler) ListResponses(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	rs, err := h.quotes.ListResponses(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"responses": rs})
}

// POST /api/quotes/:id/responses/:responseId/accept
func (h *QuoteHandler) AcceptBid(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	responseID, ok := uuidParam(c, "responseId")
	if !ok {
		return
	}
	q, err := h.quotes.AcceptBid(c.Request.Context(), id, responseID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"quote": q})
}

// POST /api/quotes/:id/pickup
func (h *QuoteHandler) MarkAwaitingPickup(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	q, err := h.quotes.MarkAwaitingPickup(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"quote": q})
}

// POST /api/quotes/:id/deliver
func (h *QuoteHandler) MarkDelivered(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	q, err := h.quotes.MarkDelivered(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"quote": q})
}
