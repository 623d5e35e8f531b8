package services

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/snapvault/backend/internal/models"
	"gorm.io/gorm"
)

// EventLogService appends pipeline outcomes to the event log. Writes are
// fire-and-forget: a failed append only reaches the operator console and is
// never surfaced to the end user.
type EventLogService struct {
	db *gorm.DB
}

func NewEventLogService(db *gorm.DB) *EventLogService {
	return &EventLogService{db: db}
}

// Record appends one entry. Swallows write errors by design.
func (s *EventLogService) Record(level models.EventLevel, message string, userID *uuid.UUID, metadata map[string]interface{}) {
	metadataJSON := ""
	if metadata != nil {
		if jsonBytes, err := json.Marshal(metadata); err == nil {
			metadataJSON = string(jsonBytes)
		}
	}

	entry := &models.EventLogEntry{
		Level:    level,
		Message:  message,
		UserID:   userID,
		Metadata: metadataJSON,
	}

	if err := s.db.Create(entry).Error; err != nil {
		log.Printf("WARN: failed to write event log entry: %v", err)
	}
}

// GetRecentEntries retrieves entries with pagination and optional filters
func (s *EventLogService) GetRecentEntries(page, limit int, userID *uuid.UUID, level string) ([]*models.EventLogEntry, int64, error) {
	var entries []*models.EventLogEntry
	var total int64

	query := s.db.Model(&models.EventLogEntry{})

	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	if level != "" {
		query = query.Where("level = ?", level)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// CleanupOlderThan deletes entries past the retention horizon and returns
// how many were removed.
func (s *EventLogService) CleanupOlderThan(retentionDays int) (int64, error) {
	horizon := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", horizon).Delete(&models.EventLogEntry{})
	return result.RowsAffected, result.Error
}

// GetStats returns event counts grouped by level for the admin dashboard
func (s *EventLogService) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int64
	if err := s.db.Model(&models.EventLogEntry{}).Count(&total).Error; err != nil {
		return nil, err
	}
	stats["total_entries"] = total

	var levelCounts []struct {
		Level string
		Count int64
	}
	if err := s.db.Model(&models.EventLogEntry{}).
		Select("level, COUNT(*) as count").
		Group("level").
		Order("count DESC").
		Scan(&levelCounts).Error; err != nil {
		return nil, err
	}
	stats["entries_by_level"] = levelCounts

	twentyFourHoursAgo := time.Now().Add(-24 * time.Hour)
	var recentCount int64
	if err := s.db.Model(&models.EventLogEntry{}).
		Where("created_at > ?", twentyFourHoursAgo).
		Count(&recentCount).Error; err != nil {
		return nil, err
	}
	stats["entries_last_24h"] = recentCount

	return stats, nil
}
