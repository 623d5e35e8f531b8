package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ImageVisibility string

const (
	ImageVisibilityPrivate ImageVisibility = "private"
	ImageVisibilityPublic  ImageVisibility = "public"
)

// Image represents one stored object: the durable record of an uploaded
// image, its object-storage reference and its delivery URL.
// StorageKey is unique and immutable after creation; UserID never changes.
type Image struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	StorageKey    string          `gorm:"size:512;uniqueIndex;not null" json:"storage_key"`
	StorageFileID string          `gorm:"size:255" json:"storage_file_id,omitempty"`
	Filename      string          `gorm:"size:255" json:"filename"`
	MimeType      string          `gorm:"size:120" json:"mime_type"`
	SizeBytes     int64           `json:"size_bytes"`
	Width         *int            `json:"width,omitempty"`
	Height        *int            `json:"height,omitempty"`
	Visibility    ImageVisibility `gorm:"size:16;default:'private'" json:"visibility"`
	Description   string          `gorm:"size:1000" json:"description"`
	AltText       string          `gorm:"size:500" json:"alt_text"`
	Tags          string          `gorm:"size:512" json:"tags"` // CSV tags
	Folder        string          `gorm:"size:255;index" json:"folder"`
	URL           string          `gorm:"size:1024" json:"url"`
	ViewCount     int64           `gorm:"default:0" json:"view_count"`
	DownloadCount int64           `gorm:"default:0" json:"download_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (i *Image) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
