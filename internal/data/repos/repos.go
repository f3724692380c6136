package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/freightquote-backend/internal/data/repos/freight"
	"github.com/yungbote/freightquote-backend/internal/data/repos/negotiation"
	"github.com/yungbote/freightquote-backend/internal/data/repos/settlement"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

type QuoteRepo = freight.QuoteRepo
type CarrierResponseRepo = freight.CarrierResponseRepo

type NegotiationThreadRepo = negotiation.ThreadRepo
type NegotiationMessageRepo = negotiation.MessageRepo
type ActionReceiptRepo = negotiation.ActionReceiptRepo

type SettlementEventRepo = settlement.EventRepo

// Set is every table repo, built over one *gorm.DB.
type Set struct {
	Quotes      QuoteRepo
	Responses   CarrierResponseRepo
	Threads     NegotiationThreadRepo
	Messages    NegotiationMessageRepo
	Receipts    ActionReceiptRepo
	Settlements SettlementEventRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Quotes:      freight.NewQuoteRepo(db, log),
		Responses:   freight.NewCarrierResponseRepo(db, log),
		Threads:     negotiation.NewThreadRepo(db, log),
		Messages:    negotiation.NewMessageRepo(db, log),
		Receipts:    negotiation.NewActionReceiptRepo(db, log),
		Settlements: settlement.NewEventRepo(db, log),
	}
}
