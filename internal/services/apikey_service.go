package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/snapvault/backend/internal/models"
	"gorm.io/gorm"
)

// apiKeyPrefix marks SnapVault API keys so the auth middleware can tell
// them apart from JWTs.
const apiKeyPrefix = "sv_"

type APIKeyService struct {
	db *gorm.DB
}

func NewAPIKeyService(db *gorm.DB) *APIKeyService {
	return &APIKeyService{db: db}
}

// CreateKey mints a new API key for the user. The plaintext secret is
// returned exactly once; only its hash is stored.
func (s *APIKeyService) CreateKey(userID uuid.UUID, name string) (*models.APIKey, string, error) {
	if strings.TrimSpace(name) == "" {
		return nil, "", &ValidationError{Reason: "key name is required"}
	}

	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", err
	}
	secret := apiKeyPrefix + hex.EncodeToString(raw)

	key := &models.APIKey{
		UserID:  userID,
		Name:    strings.TrimSpace(name),
		KeyHash: hashKey(secret),
		Prefix:  secret[:10],
	}

	if err := s.db.Create(key).Error; err != nil {
		return nil, "", err
	}

	return key, secret, nil
}

// ListKeys returns the user's keys, newest first
func (s *APIKeyService) ListKeys(userID uuid.UUID) ([]models.APIKey, error) {
	var keys []models.APIKey
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

// RevokeKey deletes one of the user's keys
func (s *APIKeyService) RevokeKey(userID, keyID uuid.UUID) error {
	result := s.db.Where("id = ? AND user_id = ?", keyID, userID).Delete(&models.APIKey{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{Resource: "api key"}
	}
	return nil
}

// Authenticate resolves a presented API key secret to its owning user and
// stamps last_used_at.
func (s *APIKeyService) Authenticate(secret string) (*models.User, error) {
	if !IsAPIKey(secret) {
		return nil, &AuthenticationError{Reason: "invalid credentials"}
	}

	var key models.APIKey
	if err := s.db.Where("key_hash = ?", hashKey(secret)).First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &AuthenticationError{Reason: "invalid credentials"}
		}
		return nil, err
	}

	var user models.User
	if err := s.db.First(&user, "id = ?", key.UserID).Error; err != nil {
		return nil, &AuthenticationError{Reason: "invalid credentials"}
	}
	if !user.IsActive {
		return nil, &AuthenticationError{Reason: "account is deactivated"}
	}

	now := time.Now()
	s.db.Model(&models.APIKey{}).Where("id = ?", key.ID).Update("last_used_at", &now)

	return &user, nil
}

// IsAPIKey reports whether a bearer credential looks like an API key
func IsAPIKey(credential string) bool {
	return strings.HasPrefix(credential, apiKeyPrefix)
}

func hashKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return fmt.Sprintf("%x", sum)
}
