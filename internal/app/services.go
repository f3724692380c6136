package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/freightquote-backend/internal/observability"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
	"github.com/yungbote/freightquote-backend/internal/services"
	"github.com/yungbote/freightquote-backend/internal/temporalx/settlement"
)

type Services struct {
	Auth        services.AuthService
	Quotes      services.QuoteService
	Negotiation services.NegotiationService
	Dispatcher  *services.SettlementDispatcher
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	cache := services.NewNoopThreadCache()
	if clients.Redis != nil {
		cache = services.NewRedisThreadCache(log, clients.Redis, cfg.ThreadCacheTTL)
	}

	// Settlement events go to Temporal when a client is up; otherwise the
	// outbox is drained into the log so local runs still reach delivered.
	gateway := services.NewLogSettlementGateway(log)
	if clients.Temporal != nil {
		gateway = settlement.NewGateway(log, clients.Temporal, cfg.Temporal.TaskQueue)
	}

	return Services{
		Auth:   services.NewAuthService(log, cfg.JWTSecretKey, cfg.JWTIssuer),
		Quotes: services.NewQuoteService(log, repos.Quotes, repos.Responses, repos.QuoteAgg),
		Negotiation: services.NewNegotiationService(
			log,
			repos.Threads,
			repos.Messages,
			repos.NegotiationAgg,
			cache,
			services.NewDocumentVerifier(log, clients.Documents),
			cfg.Policy,
		),
		Dispatcher: services.NewSettlementDispatcher(db, log, repos.Settlements, gateway, metrics, cfg.Settlement),
	}
}
