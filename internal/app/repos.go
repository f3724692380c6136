package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/freightquote-backend/internal/data/aggregates"
	"github.com/yungbote/freightquote-backend/internal/data/repos"
	domainagg "github.com/yungbote/freightquote-backend/internal/domain/aggregates"
	"github.com/yungbote/freightquote-backend/internal/modules/negotiation"
	"github.com/yungbote/freightquote-backend/internal/observability"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

type Repos struct {
	repos.Set

	QuoteAgg       domainagg.QuoteAggregate
	NegotiationAgg domainagg.NegotiationAggregate
}

func wireRepos(db *gorm.DB, log *logger.Logger, metrics *observability.Metrics, policy negotiation.Policy) Repos {
	log.Info("Wiring repos...")
	set := repos.NewSet(db, log)
	base := aggregates.BaseDeps{
		DB:          db,
		Log:         log,
		Runner:      aggregates.NewGormTxRunner(db),
		Hooks:       aggregates.NewObservabilityHooks(metrics),
		CASGuard:    aggregates.NewCASGuard(db),
		MaxAttempts: 3,
	}
	return Repos{
		Set: set,
		QuoteAgg: aggregates.NewQuoteAggregate(aggregates.QuoteAggregateDeps{
			Base:        base,
			Quotes:      set.Quotes,
			Responses:   set.Responses,
			Settlements: set.Settlements,
		}),
		NegotiationAgg: aggregates.NewNegotiationAggregate(aggregates.NegotiationAggregateDeps{
			Base:        base,
			Quotes:      set.Quotes,
			Threads:     set.Threads,
			Messages:    set.Messages,
			Receipts:    set.Receipts,
			Settlements: set.Settlements,
			Policy:      policy,
		}),
	}
}
