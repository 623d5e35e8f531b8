package services

import (
	"context"
	"testing"
	"time"

	"github.com/snapvault/backend/internal/models"
)

func TestSweepRemovesOnlyStaleOrphans(t *testing.T) {
	db := setupTestDB(t)
	cfg := newTestConfig()
	storage := newFakeStorage()
	svc := NewReconcileService(db, cfg, storage, NewEventLogService(db))
	user := createTestUser(t, db, "sweep@example.com")

	// Referenced object, old enough to be eligible
	createTestImage(t, db, user, "images/kept.png", models.ImageVisibilityPrivate)
	storage.objects = []StoredFile{
		{FileID: "id-kept", Key: "images/kept.png", UploadedAt: time.Now().Add(-48 * time.Hour)},
		// Orphan past the grace period
		{FileID: "id-stale", Key: "images/stale.png", UploadedAt: time.Now().Add(-48 * time.Hour)},
		// Orphan still inside the grace period, likely an in-flight upload
		{FileID: "id-fresh", Key: "images/fresh.png", UploadedAt: time.Now().Add(-1 * time.Hour)},
	}

	removed, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if len(storage.deletedKeys) != 1 || storage.deletedKeys[0] != "images/stale.png" {
		t.Fatalf("deleted keys = %v, want only the stale orphan", storage.deletedKeys)
	}
}

func TestSweepCountsOnlySuccessfulDeletes(t *testing.T) {
	db := setupTestDB(t)
	cfg := newTestConfig()
	storage := newFakeStorage()
	storage.deleteOK = false
	svc := NewReconcileService(db, cfg, storage, NewEventLogService(db))

	storage.objects = []StoredFile{
		{FileID: "id-stale", Key: "images/stale.png", UploadedAt: time.Now().Add(-48 * time.Hour)},
	}

	removed, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0 when backend delete fails", removed)
	}
}
