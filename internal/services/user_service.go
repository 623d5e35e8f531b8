package services

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/snapvault/backend/internal/models"
	"gorm.io/gorm"
)

type UserService struct {
	db      *gorm.DB
	storage ObjectStorage
}

func NewUserService(db *gorm.DB, storage ObjectStorage) *UserService {
	return &UserService{db: db, storage: storage}
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "user"}
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUserProfile updates profile information; only the name is editable
func (s *UserService) UpdateUserProfile(userID uuid.UUID, updates map[string]interface{}) error {
	allowedFields := map[string]bool{
		"name": true,
	}

	filteredUpdates := make(map[string]interface{})
	for key, value := range updates {
		if allowedFields[key] {
			filteredUpdates[key] = value
		}
	}

	if len(filteredUpdates) == 0 {
		return &ValidationError{Reason: "no valid fields to update"}
	}

	result := s.db.Model(&models.User{}).Where("id = ?", userID).Updates(filteredUpdates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{Resource: "user"}
	}
	return nil
}

// GetUsage returns the user's storage consumption and plan limits
func (s *UserService) GetUsage(userID uuid.UUID) (map[string]interface{}, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	var imageCount int64
	if err := s.db.Model(&models.Image{}).Where("user_id = ?", userID).Count(&imageCount).Error; err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"plan":                user.Plan,
		"storage_used_bytes":  user.StorageUsedBytes,
		"storage_quota_bytes": user.StorageQuota,
		"image_count":         imageCount,
	}, nil
}

// GetAllUsers retrieves all users with pagination
func (s *UserService) GetAllUsers(offset, limit int) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	if err := s.db.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := s.db.Offset(offset).Limit(limit).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// SearchUsers searches for users by name or email
func (s *UserService) SearchUsers(query string, offset, limit int) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	searchQuery := "%" + query + "%"
	where := "LOWER(email) LIKE LOWER(?) OR LOWER(name) LIKE LOWER(?)"

	if err := s.db.Model(&models.User{}).Where(where, searchQuery, searchQuery).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := s.db.Where(where, searchQuery, searchQuery).
		Offset(offset).Limit(limit).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// UpdateUserActive sets is_active
func (s *UserService) UpdateUserActive(userID uuid.UUID, isActive bool) error {
	result := s.db.Model(&models.User{}).Where("id = ?", userID).Update("is_active", isActive)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{Resource: "user"}
	}
	return nil
}

// DeleteUser removes an account and all owned assets. Storage deletes are
// best-effort; the rows go regardless (metadata is authoritative).
func (s *UserService) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	var images []models.Image
	if err := s.db.Where("user_id = ?", userID).Find(&images).Error; err != nil {
		return err
	}

	for _, img := range images {
		if ok := s.storage.Delete(ctx, img.StorageFileID, img.StorageKey); !ok {
			log.Printf("WARN: storage delete of %s failed during account deletion", img.StorageKey)
		}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.Image{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.APIKey{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.CustomDomain{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.User{}, "id = ?", userID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return &NotFoundError{Resource: "user"}
		}
		return nil
	})
}
