package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/snapvault/backend/internal/config"
	"github.com/snapvault/backend/internal/models"
	"github.com/snapvault/backend/pkg/validation"
	"gorm.io/gorm"
)

// ImageService is the metadata store: owner-scoped CRUD over Image rows.
// Metadata is authoritative over storage: a row delete always completes even
// when the storage delete attempt fails.
type ImageService struct {
	db       *gorm.DB
	cfg      *config.Config
	storage  ObjectStorage
	eventLog *EventLogService
}

func NewImageService(db *gorm.DB, cfg *config.Config, storage ObjectStorage, eventLog *EventLogService) *ImageService {
	return &ImageService{
		db:       db,
		cfg:      cfg,
		storage:  storage,
		eventLog: eventLog,
	}
}

// ListImages returns the caller's images with optional folder and search filters
func (s *ImageService) ListImages(userID uuid.UUID, folder, search string, limit, offset int) ([]models.Image, int64, error) {
	var images []models.Image
	var total int64

	query := s.db.Model(&models.Image{}).Where("user_id = ?", userID)
	if folder != "" {
		query = query.Where("folder = ?", folder)
	}
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(filename) LIKE LOWER(?) OR LOWER(description) LIKE LOWER(?) OR LOWER(tags) LIKE LOWER(?)", like, like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&images).Error; err != nil {
		return nil, 0, err
	}

	return images, total, nil
}

// GetImage returns one image scoped to its owner
func (s *ImageService) GetImage(userID, imageID uuid.UUID) (*models.Image, error) {
	var img models.Image
	if err := s.db.Where("id = ? AND user_id = ?", imageID, userID).First(&img).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "image"}
		}
		return nil, err
	}
	return &img, nil
}

// GetPublicImage returns one image only if it is publicly visible
func (s *ImageService) GetPublicImage(imageID uuid.UUID) (*models.Image, error) {
	var img models.Image
	if err := s.db.Where("id = ? AND visibility = ?", imageID, models.ImageVisibilityPublic).First(&img).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "image"}
		}
		return nil, err
	}
	return &img, nil
}

// GetPublicImages lists publicly visible images across all owners
func (s *ImageService) GetPublicImages(limit, offset int) ([]models.Image, int64, error) {
	var images []models.Image
	var total int64

	query := s.db.Model(&models.Image{}).Where("visibility = ?", models.ImageVisibilityPublic)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&images).Error; err != nil {
		return nil, 0, err
	}

	return images, total, nil
}

// GetAllImages lists every image for admins
func (s *ImageService) GetAllImages(limit, offset int) ([]models.Image, int64, error) {
	var images []models.Image
	var total int64

	if err := s.db.Model(&models.Image{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := s.db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&images).Error; err != nil {
		return nil, 0, err
	}

	return images, total, nil
}

// MetadataUpdate carries the optional fields of a partial metadata edit.
// Nil pointers leave the stored value untouched.
type MetadataUpdate struct {
	Description *string
	AltText     *string
	Tags        []string
	Folder      *string
}

// UpdateMetadata applies a partial edit without touching storage
func (s *ImageService) UpdateMetadata(userID, imageID uuid.UUID, update MetadataUpdate) error {
	updates := map[string]interface{}{}
	if update.Description != nil {
		updates["description"] = validation.SanitizeString(*update.Description)
	}
	if update.AltText != nil {
		updates["alt_text"] = validation.SanitizeString(*update.AltText)
	}
	if update.Tags != nil {
		updates["tags"] = validation.NormalizeTags(update.Tags)
	}
	if update.Folder != nil {
		updates["folder"] = validation.SanitizeString(*update.Folder)
	}
	if len(updates) == 0 {
		return nil
	}

	result := s.db.Model(&models.Image{}).Where("id = ? AND user_id = ?", imageID, userID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{Resource: "image"}
	}
	return nil
}

// UpdateVisibility flips an image between private and public
func (s *ImageService) UpdateVisibility(userID, imageID uuid.UUID, visibility models.ImageVisibility) error {
	if visibility != models.ImageVisibilityPrivate && visibility != models.ImageVisibilityPublic {
		return &ValidationError{Reason: fmt.Sprintf("invalid visibility: %s", visibility)}
	}

	result := s.db.Model(&models.Image{}).Where("id = ? AND user_id = ?", imageID, userID).Update("visibility", visibility)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{Resource: "image"}
	}
	return nil
}

// DeleteImage removes an image. The storage delete is attempted first and is
// best-effort; the metadata row is removed regardless of its outcome, and the
// owner's quota is released with the row.
func (s *ImageService) DeleteImage(ctx context.Context, userID, imageID uuid.UUID) error {
	img, err := s.GetImage(userID, imageID)
	if err != nil {
		return err
	}

	if ok := s.storage.Delete(ctx, img.StorageFileID, img.StorageKey); !ok {
		s.eventLog.Record(models.EventLevelWarn, "storage delete failed, removing metadata anyway", &userID, map[string]interface{}{
			"image_id": img.ID.String(),
			"key":      img.StorageKey,
		})
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Image{}, "id = ?", img.ID).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).
			UpdateColumn("storage_used_bytes", gorm.Expr("storage_used_bytes - ?", img.SizeBytes)).Error
	})
	if err != nil {
		return &PersistenceError{Err: err}
	}

	s.eventLog.Record(models.EventLevelInfo, "image deleted", &userID, map[string]interface{}{
		"image_id": img.ID.String(),
		"key":      img.StorageKey,
	})
	return nil
}

// IncrementViewCount bumps the view counter
func (s *ImageService) IncrementViewCount(imageID uuid.UUID) {
	s.db.Model(&models.Image{}).Where("id = ?", imageID).
		UpdateColumn("view_count", gorm.Expr("view_count + 1"))
}

// IncrementDownloadCount bumps the download counter
func (s *ImageService) IncrementDownloadCount(imageID uuid.UUID) {
	s.db.Model(&models.Image{}).Where("id = ?", imageID).
		UpdateColumn("download_count", gorm.Expr("download_count + 1"))
}
