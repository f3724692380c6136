package negotiation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SenderClient  = "client"
	SenderCarrier = "carrier"
	SenderSystem  = "system"
)

const (
	MessageInitialProposal = "initial_proposal"
	MessageCounterProposal = "counter_proposal"
	MessageApproval        = "approval"
	MessageRejection       = "rejection"
	MessageGiveUp          = "give_up"
)

// Message is one immutable entry of a thread's log. Seq and CreatedAt are
// assigned by the server inside the committing transaction.
type Message struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	ThreadID      uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_negotiation_message_seq" json:"thread_id"`
	Seq           int64               `gorm:"column:seq;not null;uniqueIndex:idx_negotiation_message_seq" json:"seq"`
	Sender        string              `gorm:"column:sender;not null" json:"sender"`
	Kind          string              `gorm:"column:kind;not null;index" json:"kind"`
	ProposedValue decimal.NullDecimal `gorm:"column:proposed_value;type:numeric(14,2)" json:"proposed_value"`
	Reason        *string             `gorm:"column:reason" json:"reason,omitempty"`
	Text          string              `gorm:"column:text;not null" json:"text"`
	Metadata      datatypes.JSON      `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt     time.Time           `gorm:"column:created_at;not null" json:"timestamp"`
}

func (Message) TableName() string { return "negotiation_messages" }

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
