package services

import (
	"errors"
	"log"

	"github.com/snapvault/backend/internal/config"
	"github.com/snapvault/backend/internal/models"
	"github.com/snapvault/backend/pkg/crypto"
	"gorm.io/gorm"
)

type AdminService struct {
	db       *gorm.DB
	cfg      *config.Config
	eventLog *EventLogService
}

func NewAdminService(db *gorm.DB, cfg *config.Config, eventLog *EventLogService) *AdminService {
	return &AdminService{
		db:       db,
		cfg:      cfg,
		eventLog: eventLog,
	}
}

// CreateDefaultAdmin provisions the configured admin account on startup
// if it does not exist yet.
func (s *AdminService) CreateDefaultAdmin() error {
	if s.cfg.AdminEmail == "" || s.cfg.AdminPassword == "" {
		log.Println("WARN: admin credentials not configured, skipping default admin setup")
		return nil
	}

	var existing models.User
	err := s.db.Where("email = ?", s.cfg.AdminEmail).First(&existing).Error
	if err == nil {
		if !existing.IsAdmin {
			return s.db.Model(&existing).Update("is_admin", true).Error
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := crypto.HashPassword(s.cfg.AdminPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
	}

	admin := &models.User{
		Email:         s.cfg.AdminEmail,
		Password:      hashed,
		Name:          s.cfg.AdminName,
		EmailVerified: true,
		IsAdmin:       true,
		IsActive:      true,
		Plan:          models.PlanBusiness,
		StorageQuota:  s.cfg.BusinessQuotaBytes,
	}
	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("Default admin account created: %s", s.cfg.AdminEmail)
	return nil
}

// GetDashboardStats aggregates platform-wide figures for the admin dashboard
func (s *AdminService) GetDashboardStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalUsers int64
	if err := s.db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return nil, err
	}
	stats["total_users"] = totalUsers

	var activeUsers int64
	if err := s.db.Model(&models.User{}).Where("is_active = ?", true).Count(&activeUsers).Error; err != nil {
		return nil, err
	}
	stats["active_users"] = activeUsers

	var usersByPlan []struct {
		Plan  string
		Count int64
	}
	if err := s.db.Model(&models.User{}).
		Select("plan, COUNT(*) as count").
		Group("plan").
		Scan(&usersByPlan).Error; err != nil {
		return nil, err
	}
	planCounts := make(map[string]int64)
	for _, row := range usersByPlan {
		planCounts[row.Plan] = row.Count
	}
	stats["users_by_plan"] = planCounts

	var totalImages int64
	if err := s.db.Model(&models.Image{}).Count(&totalImages).Error; err != nil {
		return nil, err
	}
	stats["total_images"] = totalImages

	var publicImages int64
	if err := s.db.Model(&models.Image{}).
		Where("visibility = ?", models.ImageVisibilityPublic).
		Count(&publicImages).Error; err != nil {
		return nil, err
	}
	stats["public_images"] = publicImages

	var storedBytes struct{ Total int64 }
	if err := s.db.Model(&models.Image{}).
		Select("COALESCE(SUM(size_bytes), 0) as total").
		Scan(&storedBytes).Error; err != nil {
		return nil, err
	}
	stats["stored_bytes"] = storedBytes.Total

	eventStats, err := s.eventLog.GetStats()
	if err != nil {
		return nil, err
	}
	stats["events"] = eventStats

	return stats, nil
}
