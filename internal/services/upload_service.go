package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net/http"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
	"github.com/snapvault/backend/internal/config"
	"github.com/snapvault/backend/internal/models"
	"github.com/snapvault/backend/pkg/validation"
	"gorm.io/gorm"

	_ "golang.org/x/image/webp"
)

// ObjectStorage is the slice of the storage backend the pipeline needs.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (fileID string, url string, err error)
	Delete(ctx context.Context, fileID, key string) bool
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var extensionByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// UploadOptions are the recognized per-upload fields, validated once at the
// boundary before the pipeline runs.
type UploadOptions struct {
	Visibility  models.ImageVisibility
	Description string
	AltText     string
	Tags        []string
	Folder      string
}

// UploadService orchestrates one upload attempt:
// validate, derive key, store, persist, log. Steps before the storage call
// are pure; the storage write and the metadata write are the only durable
// side effects and are not transactional with each other.
type UploadService struct {
	db       *gorm.DB
	cfg      *config.Config
	storage  ObjectStorage
	eventLog *EventLogService
}

func NewUploadService(db *gorm.DB, cfg *config.Config, storage ObjectStorage, eventLog *EventLogService) *UploadService {
	return &UploadService{
		db:       db,
		cfg:      cfg,
		storage:  storage,
		eventLog: eventLog,
	}
}

// Submit runs the pipeline for one inbound file and returns the created
// Image. Terminal outcomes: completed, rejected (ValidationError, no side
// effects), failed (StorageError or PersistenceError). Not retried; the
// caller must resubmit.
func (s *UploadService) Submit(ctx context.Context, user *models.User, data []byte, filename, declaredContentType string, opts UploadOptions) (*models.Image, error) {
	// Step 1: validate. Nothing is written anywhere on rejection.
	mimeType, err := s.validate(user, data, filename, declaredContentType, &opts)
	if err != nil {
		s.eventLog.Record(models.EventLevelWarn, "upload rejected: "+err.Error(), &user.ID, map[string]interface{}{
			"filename": filename,
		})
		return nil, err
	}

	// Step 2: derive a globally unique storage key. Pure computation;
	// per-request randomness guarantees no collision under concurrency.
	key := BuildStorageKey(s.cfg.B2KeyPrefix, filename, mimeType)

	// Best-effort pixel dimensions; failures leave them unset.
	width, height := decodeDimensions(data)

	// Step 3: persist to object storage, bounded by a deadline.
	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StorageTimeout)
	defer cancel()

	fileID, deliveryURL, err := s.storage.Upload(storeCtx, key, data, mimeType)
	if err != nil {
		if !s.cfg.StorageFallback {
			s.eventLog.Record(models.EventLevelError, "upload failed: storage write error", &user.ID, map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
			return nil, err
		}
		// Degraded mode: accepted but not externally hosted. The image row
		// is created with a locally derived URL and no storage file id.
		fileID = ""
		deliveryURL = strings.TrimRight(s.cfg.APIUrl, "/") + "/" + key
		s.eventLog.Record(models.EventLevelWarn, "upload degraded: storage write failed, local URL substituted", &user.ID, map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	// Step 4: persist metadata. Quota moves with the row in one transaction.
	img := &models.Image{
		UserID:        user.ID,
		StorageKey:    key,
		StorageFileID: fileID,
		Filename:      filename,
		MimeType:      mimeType,
		SizeBytes:     int64(len(data)),
		Width:         width,
		Height:        height,
		Visibility:    opts.Visibility,
		Description:   opts.Description,
		AltText:       opts.AltText,
		Tags:          validation.NormalizeTags(opts.Tags),
		Folder:        opts.Folder,
		URL:           deliveryURL,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(img).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).
			UpdateColumn("storage_used_bytes", gorm.Expr("storage_used_bytes + ?", img.SizeBytes)).Error
	})
	if err != nil {
		// Compensate: best-effort delete of the now-orphaned stored object.
		// The reconciliation sweep covers anything this misses.
		stored := fileID != ""
		if stored {
			_ = s.storage.Delete(context.Background(), fileID, key)
		}
		s.eventLog.Record(models.EventLevelError, "upload failed: metadata write error", &user.ID, map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return nil, &PersistenceError{Err: err, Stored: stored}
	}

	// Step 5: record the outcome. Fire-and-forget.
	s.eventLog.Record(models.EventLevelInfo, "image uploaded", &user.ID, map[string]interface{}{
		"image_id":   img.ID.String(),
		"key":        key,
		"size_bytes": img.SizeBytes,
	})

	return img, nil
}

// validate enforces content type, size and quota limits. Pure; returns the
// effective MIME type on success.
func (s *UploadService) validate(user *models.User, data []byte, filename, declaredContentType string, opts *UploadOptions) (string, error) {
	if len(data) == 0 {
		return "", &ValidationError{Reason: "empty file"}
	}

	if int64(len(data)) > s.cfg.UploadMaxImageSize {
		return "", &ValidationError{Reason: fmt.Sprintf("image too large: %d bytes (max: %d)", len(data), s.cfg.UploadMaxImageSize)}
	}

	// Prefer content sniffing over the declared type
	mimeType := http.DetectContentType(data)
	if !allowedImageTypes[mimeType] {
		// Sniffing can miss some encoders; fall back to the declared type
		// only when it names an allowed image kind.
		declared := strings.ToLower(strings.TrimSpace(strings.Split(declaredContentType, ";")[0]))
		if !allowedImageTypes[declared] {
			return "", &ValidationError{Reason: fmt.Sprintf("unsupported content type: %s", mimeType)}
		}
		mimeType = declared
	}

	if user.StorageQuota > 0 && user.StorageUsedBytes+int64(len(data)) > user.StorageQuota {
		return "", &ValidationError{Reason: "storage quota exceeded"}
	}

	switch opts.Visibility {
	case "":
		opts.Visibility = models.ImageVisibilityPrivate
	case models.ImageVisibilityPrivate, models.ImageVisibilityPublic:
	default:
		return "", &ValidationError{Reason: fmt.Sprintf("invalid privacy value: %s", opts.Visibility)}
	}

	return mimeType, nil
}

// BuildStorageKey derives a globally unique storage key from per-request
// randomness plus the original extension.
func BuildStorageKey(prefix, filename, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = extensionByType[mimeType]
	}
	return fmt.Sprintf("%s%s%s", prefix, uuid.New().String(), ext)
}

// decodeDimensions extracts pixel dimensions from the encoded image.
// Best-effort: undecodable input leaves both unset.
func decodeDimensions(data []byte) (*int, *int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, nil
	}
	w, h := cfg.Width, cfg.Height
	return &w, &h
}
