package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EventLevel string

const (
	EventLevelInfo  EventLevel = "info"
	EventLevelWarn  EventLevel = "warn"
	EventLevelError EventLevel = "error"
)

// EventLogEntry is an append-only record of a notable occurrence
// (upload outcomes, deletions, auth failures). Write-only from the
// system's perspective; read by operators via the admin API.
type EventLogEntry struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Level     EventLevel `gorm:"type:varchar(16);not null;index" json:"level"`
	Message   string     `gorm:"type:varchar(500);not null" json:"message"`
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Metadata  string     `gorm:"type:text" json:"metadata,omitempty"` // JSON string with additional info
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName specifies the table name for EventLogEntry
func (EventLogEntry) TableName() string {
	return "event_logs"
}

func (e *EventLogEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
