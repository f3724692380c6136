package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/freightquote-backend/internal/http/handlers"
	httpMW "github.com/yungbote/freightquote-backend/internal/http/middleware"
	"github.com/yungbote/freightquote-backend/internal/observability"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	CORSOrigins    []string
	RequestTimeout time.Duration

	AuthMiddleware *httpMW.AuthMiddleware
	RateLimits     *httpMW.LimiterStore

	HealthHandler      *httpH.HealthHandler
	QuoteHandler       *httpH.QuoteHandler
	NegotiationHandler *httpH.NegotiationHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.RequestTimeout(cfg.RequestTimeout))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	protected := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}
	// Write endpoints share one per-actor bucket.
	actions := protected.Group("/")
	actions.Use(httpMW.RateLimit(cfg.RateLimits, cfg.Metrics))

	// Quotes
	if h := cfg.QuoteHandler; h != nil {
		protected.GET("/quotes/:id", h.GetQuote)
		protected.GET("/quotes/:id/responses", h.ListResponses)
		actions.POST("/quotes", h.CreateQuote)
		actions.POST("/quotes/:id/responses", h.SubmitBid)
		actions.POST("/quotes/:id/responses/:responseId/accept", h.AcceptBid)
		actions.POST("/quotes/:id/pickup", h.MarkAwaitingPickup)
		actions.POST("/quotes/:id/deliver", h.MarkDelivered)
	}

	// Negotiation
	if h := cfg.NegotiationHandler; h != nil {
		protected.GET("/quotes/:id/negotiation", h.GetThreadByQuote)
		protected.GET("/negotiations", h.ListThreads)
		protected.GET("/negotiations/:id", h.GetThread)
		protected.POST("/negotiations/:id/read", h.MarkRead)
		actions.POST("/quotes/:id/declared-value", h.DeclareValue)
		actions.POST("/negotiations/:id/client-decision", h.SubmitClientDecision)
		actions.POST("/negotiations/:id/carrier-decision", h.SubmitCarrierDecision)
	}

	return r
}
