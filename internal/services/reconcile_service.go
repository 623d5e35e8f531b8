package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/snapvault/backend/internal/config"
	"github.com/snapvault/backend/internal/models"
	"gorm.io/gorm"
)

// ListingStorage extends ObjectStorage with bucket enumeration, which the
// reconciliation sweep needs to find objects no metadata row points at.
type ListingStorage interface {
	ObjectStorage
	ListKeys(ctx context.Context, prefix string, max int) ([]StoredFile, error)
}

// ReconcileService removes orphaned objects from the bucket. An object is
// an orphan when no image row references its key and it is older than the
// configured grace period, so uploads still in flight are left alone.
type ReconcileService struct {
	db       *gorm.DB
	cfg      *config.Config
	storage  ListingStorage
	eventLog *EventLogService
}

func NewReconcileService(db *gorm.DB, cfg *config.Config, storage ListingStorage, eventLog *EventLogService) *ReconcileService {
	return &ReconcileService{
		db:       db,
		cfg:      cfg,
		storage:  storage,
		eventLog: eventLog,
	}
}

// Sweep lists stored objects under the image prefix and deletes every
// orphan past the grace period. It returns the number of objects removed.
func (s *ReconcileService) Sweep(ctx context.Context) (int, error) {
	files, err := s.storage.ListKeys(ctx, s.cfg.B2KeyPrefix, 10000)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-s.cfg.ReconcileGracePeriod)
	removed := 0

	for _, f := range files {
		if f.UploadedAt.After(cutoff) {
			continue
		}

		var img models.Image
		err := s.db.Where("storage_key = ?", f.Key).First(&img).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return removed, err
		}

		if !s.storage.Delete(ctx, f.FileID, f.Key) {
			log.Printf("WARN: reconcile could not delete orphaned object %s", f.Key)
			continue
		}
		removed++
		s.eventLog.Record(models.EventLevelWarn, "reconcile removed orphaned object", nil, map[string]interface{}{
			"storage_key": f.Key,
			"file_id":     f.FileID,
		})
	}

	return removed, nil
}
