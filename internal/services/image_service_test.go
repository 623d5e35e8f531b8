package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/snapvault/backend/internal/models"
	"gorm.io/gorm"
)

func newImageFixture(t *testing.T) (*ImageService, *fakeStorage, *gorm.DB) {
	t.Helper()

	db := setupTestDB(t)
	storage := newFakeStorage()
	svc := NewImageService(db, newTestConfig(), storage, NewEventLogService(db))
	return svc, storage, db
}

func createTestImage(t *testing.T, db *gorm.DB, user *models.User, key string, visibility models.ImageVisibility) *models.Image {
	t.Helper()

	img := &models.Image{
		UserID:        user.ID,
		StorageKey:    key,
		StorageFileID: "file-" + key,
		Filename:      "photo.png",
		MimeType:      "image/png",
		SizeBytes:     1024,
		Visibility:    visibility,
		URL:           "https://cdn.example.com/" + key,
	}
	if err := db.Create(img).Error; err != nil {
		t.Fatalf("create image: %v", err)
	}
	return img
}

func TestDeleteImageRemovesRowWhenStorageDeleteFails(t *testing.T) {
	svc, storage, db := newImageFixture(t)
	storage.deleteOK = false

	user := createTestUser(t, db, "owner@example.com")
	db.Model(user).UpdateColumn("storage_used_bytes", 1024)
	img := createTestImage(t, db, user, "images/a.png", models.ImageVisibilityPrivate)

	if err := svc.DeleteImage(context.Background(), user.ID, img.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var n int64
	db.Model(&models.Image{}).Where("id = ?", img.ID).Count(&n)
	if n != 0 {
		t.Errorf("image row still present after delete")
	}

	var fresh models.User
	if err := db.First(&fresh, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if fresh.StorageUsedBytes != 0 {
		t.Errorf("quota not released: %d", fresh.StorageUsedBytes)
	}
	if storage.deleteCount() != 1 {
		t.Errorf("storage delete not attempted")
	}
}

func TestGetImageScopedToOwner(t *testing.T) {
	svc, _, db := newImageFixture(t)

	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")
	img := createTestImage(t, db, owner, "images/b.png", models.ImageVisibilityPrivate)

	if _, err := svc.GetImage(owner.ID, img.ID); err != nil {
		t.Fatalf("owner lookup: %v", err)
	}

	_, err := svc.GetImage(other.ID, img.ID)
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError for non-owner, got %v", err)
	}
}

func TestVisibilityControlsPublicListing(t *testing.T) {
	svc, _, db := newImageFixture(t)

	user := createTestUser(t, db, "owner@example.com")
	img := createTestImage(t, db, user, "images/c.png", models.ImageVisibilityPrivate)

	images, total, err := svc.GetPublicImages(10, 0)
	if err != nil {
		t.Fatalf("public list: %v", err)
	}
	if total != 0 || len(images) != 0 {
		t.Fatalf("private image visible in public list")
	}

	if err := svc.UpdateVisibility(user.ID, img.ID, models.ImageVisibilityPublic); err != nil {
		t.Fatalf("flip visibility: %v", err)
	}

	images, total, err = svc.GetPublicImages(10, 0)
	if err != nil {
		t.Fatalf("public list: %v", err)
	}
	if total != 1 || len(images) != 1 {
		t.Fatalf("public image missing from public list")
	}

	if err := svc.UpdateVisibility(user.ID, img.ID, models.ImageVisibilityPrivate); err != nil {
		t.Fatalf("flip back: %v", err)
	}
	_, total, _ = svc.GetPublicImages(10, 0)
	if total != 0 {
		t.Fatalf("image still public after flipping back to private")
	}
}

func TestUpdateVisibilityRejectsUnknownValue(t *testing.T) {
	svc, _, db := newImageFixture(t)

	user := createTestUser(t, db, "owner@example.com")
	img := createTestImage(t, db, user, "images/d.png", models.ImageVisibilityPrivate)

	err := svc.UpdateVisibility(user.ID, img.ID, "unlisted")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUpdateMetadataPartial(t *testing.T) {
	svc, _, db := newImageFixture(t)

	user := createTestUser(t, db, "owner@example.com")
	img := createTestImage(t, db, user, "images/e.png", models.ImageVisibilityPrivate)
	db.Model(img).Updates(map[string]interface{}{"description": "before", "alt_text": "alt before"})

	desc := "after"
	if err := svc.UpdateMetadata(user.ID, img.ID, MetadataUpdate{Description: &desc}); err != nil {
		t.Fatalf("update: %v", err)
	}

	var fresh models.Image
	if err := db.First(&fresh, "id = ?", img.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if fresh.Description != "after" {
		t.Errorf("description = %q", fresh.Description)
	}
	if fresh.AltText != "alt before" {
		t.Errorf("alt text touched by partial update: %q", fresh.AltText)
	}
}

func TestUpdateMetadataUnknownImage(t *testing.T) {
	svc, _, db := newImageFixture(t)

	user := createTestUser(t, db, "owner@example.com")
	desc := "whatever"
	err := svc.UpdateMetadata(user.ID, uuid.New(), MetadataUpdate{Description: &desc})
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestListImagesFilters(t *testing.T) {
	svc, _, db := newImageFixture(t)

	user := createTestUser(t, db, "owner@example.com")
	a := createTestImage(t, db, user, "images/f.png", models.ImageVisibilityPrivate)
	db.Model(a).Updates(map[string]interface{}{"filename": "Sunset-Beach.png", "folder": "vacation"})
	b := createTestImage(t, db, user, "images/g.png", models.ImageVisibilityPrivate)
	db.Model(b).Updates(map[string]interface{}{"filename": "invoice.png", "folder": "work"})

	images, total, err := svc.ListImages(user.ID, "vacation", "", 10, 0)
	if err != nil {
		t.Fatalf("list by folder: %v", err)
	}
	if total != 1 || len(images) != 1 || images[0].ID != a.ID {
		t.Fatalf("folder filter returned wrong rows: total=%d", total)
	}

	images, total, err = svc.ListImages(user.ID, "", "sunset", 10, 0)
	if err != nil {
		t.Fatalf("list by search: %v", err)
	}
	if total != 1 || len(images) != 1 || images[0].ID != a.ID {
		t.Fatalf("case-insensitive search failed: total=%d", total)
	}
}
