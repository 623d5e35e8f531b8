package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Backup struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Filename     string     `gorm:"not null" json:"filename"`
	S3Key        string     `gorm:"not null" json:"s3_key"`
	SizeBytes    int64      `json:"size_bytes"`
	Status       string     `gorm:"not null;default:'completed'" json:"status"` // completed, failed, in_progress
	Type         string     `gorm:"not null;default:'automatic'" json:"type"`   // automatic, manual
	StartedAt    time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedBy    *uuid.UUID `gorm:"type:uuid" json:"created_by,omitempty"` // admin id when manual
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (b *Backup) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.StartedAt.IsZero() {
		b.StartedAt = time.Now()
	}
	return nil
}
