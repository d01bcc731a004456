package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventRecord is the durable archive row for an enriched event. The archive
// is best-effort: the in-memory history is authoritative for the pipeline
// and a failed insert never fails event processing.
type EventRecord struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	EventID    string         `gorm:"column:event_id;not null;uniqueIndex" json:"event_id"`
	UserID     string         `gorm:"column:user_id;not null;index" json:"user_id"`
	SessionID  string         `gorm:"column:session_id;index" json:"session_id"`
	EventType  string         `gorm:"column:event_type;not null;index" json:"event_type"`
	OccurredAt int64          `gorm:"column:occurred_at;not null;index" json:"occurred_at"` // ms since epoch
	Payload    datatypes.JSON `gorm:"type:jsonb;column:payload" json:"payload"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (EventRecord) TableName() string { return "user_event" }
