package domain

import (
	"github.com/yungbote/freightquote-backend/internal/domain/freight"
	"github.com/yungbote/freightquote-backend/internal/domain/negotiation"
	"github.com/yungbote/freightquote-backend/internal/domain/settlement"
)

type (
	Quote           = freight.Quote
	CarrierResponse = freight.CarrierResponse
	Surcharge       = freight.Surcharge

	NegotiationThread  = negotiation.Thread
	NegotiationMessage = negotiation.Message
	ActionReceipt      = negotiation.ActionReceipt

	SettlementEvent = settlement.Event
)

// Models lists every persisted type, in migration order.
func Models() []any {
	return []any{
		&freight.Quote{},
		&freight.CarrierResponse{},
		&negotiation.Thread{},
		&negotiation.Message{},
		&negotiation.ActionReceipt{},
		&settlement.Event{},
	}
}
