package app

import (
	"time"

	"gorm.io/gorm"

	apphttp "github.com/yungbote/freightquote-backend/internal/http"
	httpH "github.com/yungbote/freightquote-backend/internal/http/handlers"
	httpMW "github.com/yungbote/freightquote-backend/internal/http/middleware"
	"github.com/yungbote/freightquote-backend/internal/observability"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

// limiterIdleTTL bounds how long an idle actor keeps its token bucket.
const limiterIdleTTL = 10 * time.Minute

func wireHTTP(db *gorm.DB, log *logger.Logger, cfg Config, svcs Services, metrics *observability.Metrics) (*apphttp.Server, *httpMW.LimiterStore) {
	log.Info("Wiring HTTP...")
	limits := httpMW.NewLimiterStore(cfg.RateLimitRPS, cfg.RateLimitBurst, limiterIdleTTL)
	server := apphttp.NewServer(apphttp.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    cfg.ServiceName,
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,

		AuthMiddleware: httpMW.NewAuthMiddleware(log, svcs.Auth),
		RateLimits:     limits,

		HealthHandler:      httpH.NewHealthHandler(db),
		QuoteHandler:       httpH.NewQuoteHandler(svcs.Quotes),
		NegotiationHandler: httpH.NewNegotiationHandler(svcs.Negotiation),
	})
	return server, limits
}
