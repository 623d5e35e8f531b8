package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/snapvault/backend/internal/models"
	"github.com/snapvault/backend/pkg/validation"
	"gorm.io/gorm"
)

// DomainService manages custom delivery domains. Verification expects a TXT
// record `snapvault-verify=<token>` on the hostname.
type DomainService struct {
	db *gorm.DB

	// lookupTXT is swappable for tests
	lookupTXT func(name string) ([]string, error)
}

func NewDomainService(db *gorm.DB) *DomainService {
	return &DomainService{
		db:        db,
		lookupTXT: net.LookupTXT,
	}
}

// AddDomain registers an unverified custom domain for the user
func (s *DomainService) AddDomain(userID uuid.UUID, hostname string) (*models.CustomDomain, error) {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	if !validation.ValidateHostname(hostname) {
		return nil, &ValidationError{Reason: "invalid hostname"}
	}

	var existing models.CustomDomain
	if err := s.db.Where("hostname = ?", hostname).First(&existing).Error; err == nil {
		return nil, &ValidationError{Reason: "hostname already registered"}
	}

	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}

	domain := &models.CustomDomain{
		UserID:            userID,
		Hostname:          hostname,
		VerificationToken: hex.EncodeToString(raw),
	}

	if err := s.db.Create(domain).Error; err != nil {
		return nil, err
	}
	return domain, nil
}

// ListDomains returns the user's domains
func (s *DomainService) ListDomains(userID uuid.UUID) ([]models.CustomDomain, error) {
	var domains []models.CustomDomain
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&domains).Error; err != nil {
		return nil, err
	}
	return domains, nil
}

// RemoveDomain deletes one of the user's domains
func (s *DomainService) RemoveDomain(userID, domainID uuid.UUID) error {
	result := s.db.Where("id = ? AND user_id = ?", domainID, userID).Delete(&models.CustomDomain{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{Resource: "domain"}
	}
	return nil
}

// VerifyDomain checks the DNS TXT record and marks the domain verified
func (s *DomainService) VerifyDomain(userID, domainID uuid.UUID) (*models.CustomDomain, error) {
	var domain models.CustomDomain
	if err := s.db.Where("id = ? AND user_id = ?", domainID, userID).First(&domain).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "domain"}
		}
		return nil, err
	}

	if domain.Verified {
		return &domain, nil
	}

	records, err := s.lookupTXT(domain.Hostname)
	if err != nil {
		return nil, &ValidationError{Reason: "DNS lookup failed: " + err.Error()}
	}

	expected := "snapvault-verify=" + domain.VerificationToken
	found := false
	for _, r := range records {
		if strings.TrimSpace(r) == expected {
			found = true
			break
		}
	}
	if !found {
		return nil, &ValidationError{Reason: "verification TXT record not found"}
	}

	now := time.Now()
	domain.Verified = true
	domain.VerifiedAt = &now
	if err := s.db.Save(&domain).Error; err != nil {
		return nil, err
	}
	return &domain, nil
}
