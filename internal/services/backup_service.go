package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/snapvault/backend/internal/config"
	"github.com/snapvault/backend/internal/models"
	"gorm.io/gorm"
)

type BackupService struct {
	db    *gorm.DB
	cfg   *config.Config
	s3Svc *S3Service
}

func NewBackupService(db *gorm.DB, cfg *config.Config, s3Svc *S3Service) *BackupService {
	return &BackupService{
		db:    db,
		cfg:   cfg,
		s3Svc: s3Svc,
	}
}

// ListBackups retrieves all backups with pagination, most recent first
func (s *BackupService) ListBackups(offset, limit int) ([]*models.Backup, int64, error) {
	var backups []*models.Backup
	var total int64

	if err := s.db.Model(&models.Backup{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := s.db.Offset(offset).Limit(limit).Order("created_at DESC").Find(&backups).Error; err != nil {
		return nil, 0, err
	}

	return backups, total, nil
}

// RunBackup dumps the database with pg_dump, gzips it and uploads the
// archive to the backup bucket.
func (s *BackupService) RunBackup(ctx context.Context, backupType string, createdBy *uuid.UUID) (*models.Backup, error) {
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05Z")
	filename := fmt.Sprintf("%s_%s.sql.gz", s.cfg.DBName, stamp)
	key := fmt.Sprintf("db/%s/%s", s.cfg.DBName, filename)

	backup := &models.Backup{
		Filename:  filename,
		S3Key:     key,
		Status:    "in_progress",
		Type:      backupType,
		CreatedBy: createdBy,
	}
	if err := s.db.Create(backup).Error; err != nil {
		return nil, err
	}

	dump, err := s.dumpDatabase(ctx)
	if err != nil {
		s.markFailed(backup, err)
		return nil, err
	}

	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(dump); err != nil {
		s.markFailed(backup, err)
		return nil, err
	}
	if err := gz.Close(); err != nil {
		s.markFailed(backup, err)
		return nil, err
	}

	if err := s.s3Svc.UploadBackup(ctx, key, bytes.NewReader(compressed.Bytes()), "application/gzip"); err != nil {
		s.markFailed(backup, err)
		return nil, err
	}

	now := time.Now()
	backup.Status = "completed"
	backup.SizeBytes = int64(compressed.Len())
	backup.CompletedAt = &now
	if err := s.db.Save(backup).Error; err != nil {
		return nil, err
	}

	return backup, nil
}

func (s *BackupService) dumpDatabase(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "pg_dump",
		"-h", s.cfg.DBHost,
		"-p", s.cfg.DBPort,
		"-U", s.cfg.DBUser,
		"-d", s.cfg.DBName,
		"--no-password",
	)
	cmd.Env = append(cmd.Environ(), "PGPASSWORD="+s.cfg.DBPassword)

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pg_dump failed: %w: %s", err, errBuf.String())
	}
	return out.Bytes(), nil
}

func (s *BackupService) markFailed(backup *models.Backup, cause error) {
	backup.Status = "failed"
	backup.ErrorMessage = cause.Error()
	_ = s.db.Save(backup).Error
}

// SyncBackupsFromS3 fetches backup objects from the bucket and creates
// missing database records for them.
func (s *BackupService) SyncBackupsFromS3() (int, error) {
	if s.cfg.BackupBucket == "" {
		return 0, errors.New("backup bucket not configured")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("db/%s/", s.cfg.DBName)

	objects, err := s.s3Svc.ListBackupObjects(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list backup objects: %w", err)
	}

	synced := 0
	for _, obj := range objects {
		if obj.Key == nil || obj.Size == nil || obj.LastModified == nil {
			continue
		}
		key := *obj.Key
		if !strings.HasSuffix(key, ".sql.gz") {
			continue
		}

		var existing models.Backup
		if err := s.db.Where("s3_key = ?", key).First(&existing).Error; err == nil {
			continue
		}

		completedAt := *obj.LastModified
		backup := &models.Backup{
			Filename:    path.Base(key),
			S3Key:       key,
			SizeBytes:   *obj.Size,
			Status:      "completed",
			Type:        "automatic",
			StartedAt:   completedAt,
			CompletedAt: &completedAt,
		}
		if err := s.db.Create(backup).Error; err != nil {
			continue
		}
		synced++
	}

	return synced, nil
}

// GetBackupStats returns aggregate backup figures for monitoring
func (s *BackupService) GetBackupStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int64
	if err := s.db.Model(&models.Backup{}).Count(&total).Error; err != nil {
		return nil, err
	}
	stats["total_backups"] = total

	var failed int64
	if err := s.db.Model(&models.Backup{}).Where("status = ?", "failed").Count(&failed).Error; err != nil {
		return nil, err
	}
	stats["failed_backups"] = failed

	var latest models.Backup
	if err := s.db.Where("status = ?", "completed").Order("created_at DESC").First(&latest).Error; err == nil {
		stats["latest_backup_at"] = latest.CreatedAt
		stats["latest_backup_size"] = latest.SizeBytes
	}

	return stats, nil
}
