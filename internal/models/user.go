package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PlanTier string

const (
	PlanFree     PlanTier = "free"
	PlanPro      PlanTier = "pro"
	PlanBusiness PlanTier = "business"
)

type User struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email            string    `gorm:"uniqueIndex;not null" json:"email"`
	Password         string    `gorm:"not null" json:"-"`
	Name             string    `gorm:"not null" json:"name"`
	EmailVerified    bool      `gorm:"default:false" json:"email_verified"`
	IsAdmin          bool      `gorm:"default:false" json:"is_admin"`
	IsActive         bool      `gorm:"default:true" json:"is_active"`
	Plan             PlanTier  `gorm:"size:16;default:'free'" json:"plan"`
	StorageUsedBytes int64     `gorm:"default:0" json:"storage_used_bytes"`
	StorageQuota     int64     `gorm:"default:0" json:"storage_quota_bytes"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Relations
	Images []Image `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null"`
	Token     string    `gorm:"uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time

	// Relations
	User User `gorm:"foreignKey:UserID"`
}

func (r *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
