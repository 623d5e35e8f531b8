package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CustomDomain is a user-owned delivery hostname. Until verified, image
// URLs keep using the default CDN base.
type CustomDomain struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Hostname          string     `gorm:"size:253;uniqueIndex;not null" json:"hostname"`
	VerificationToken string     `gorm:"size:64;not null" json:"verification_token"`
	Verified          bool       `gorm:"default:false" json:"verified"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (d *CustomDomain) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
