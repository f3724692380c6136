package negotiation

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActionReceipt records an applied action under its idempotency key
// (thread, actor role, sequence) so a replay returns the stored outcome.
type ActionReceipt struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ThreadID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_action_receipt_key" json:"thread_id"`
	ActorRole   string         `gorm:"column:actor_role;not null;uniqueIndex:idx_action_receipt_key" json:"actor_role"`
	Sequence    int            `gorm:"column:sequence;not null;uniqueIndex:idx_action_receipt_key" json:"sequence"`
	ActorID     uuid.UUID      `gorm:"type:uuid;not null" json:"actor_id"`
	Action      string         `gorm:"column:action;not null" json:"action"`
	Fingerprint string         `gorm:"column:fingerprint;not null" json:"fingerprint"`
	Outcome     datatypes.JSON `gorm:"column:outcome" json:"outcome"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
}

func (ActionReceipt) TableName() string { return "negotiation_action_receipts" }

func (r *ActionReceipt) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
