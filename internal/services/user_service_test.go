package services

import (
	"context"
	"errors"
	"testing"

	"github.com/snapvault/backend/internal/models"
)

func TestUpdateUserProfileAllowsOnlyName(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, newFakeStorage())
	user := createTestUser(t, db, "profile@example.com")

	err := svc.UpdateUserProfile(user.ID, map[string]interface{}{
		"name":     "New Name",
		"is_admin": true,
		"plan":     "business",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	var fresh models.User
	if err := db.First(&fresh, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if fresh.Name != "New Name" {
		t.Errorf("name = %q", fresh.Name)
	}
	if fresh.IsAdmin {
		t.Error("is_admin escalated through profile update")
	}
	if fresh.Plan != models.PlanFree {
		t.Errorf("plan changed through profile update: %s", fresh.Plan)
	}

	err = svc.UpdateUserProfile(user.ID, map[string]interface{}{"is_admin": true})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for no editable fields, got %v", err)
	}
}

func TestGetUsage(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, newFakeStorage())
	user := createTestUser(t, db, "usage@example.com")
	db.Model(user).UpdateColumn("storage_used_bytes", 2048)
	createTestImage(t, db, user, "images/u1.png", models.ImageVisibilityPrivate)
	createTestImage(t, db, user, "images/u2.png", models.ImageVisibilityPublic)

	usage, err := svc.GetUsage(user.ID)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage["storage_used_bytes"].(int64) != 2048 {
		t.Errorf("used = %v", usage["storage_used_bytes"])
	}
	if usage["image_count"].(int64) != 2 {
		t.Errorf("count = %v", usage["image_count"])
	}
}

func TestDeleteUserRemovesAllOwnedData(t *testing.T) {
	db := setupTestDB(t)
	storage := newFakeStorage()
	svc := NewUserService(db, storage)
	user := createTestUser(t, db, "gone@example.com")
	keeper := createTestUser(t, db, "keeper@example.com")

	createTestImage(t, db, user, "images/del1.png", models.ImageVisibilityPrivate)
	createTestImage(t, db, user, "images/del2.png", models.ImageVisibilityPrivate)
	kept := createTestImage(t, db, keeper, "images/keep.png", models.ImageVisibilityPrivate)

	keySvc := NewAPIKeyService(db)
	if _, _, err := keySvc.CreateKey(user.ID, "doomed"); err != nil {
		t.Fatalf("create key: %v", err)
	}

	if err := svc.DeleteUser(context.Background(), user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	if storage.deleteCount() != 2 {
		t.Errorf("storage deletes = %d, want 2", storage.deleteCount())
	}

	var users, images, keys int64
	db.Model(&models.User{}).Count(&users)
	db.Model(&models.Image{}).Count(&images)
	db.Model(&models.APIKey{}).Count(&keys)
	if users != 1 {
		t.Errorf("users = %d, want only the keeper", users)
	}
	if images != 1 {
		t.Errorf("images = %d, want only the keeper's", images)
	}
	if keys != 0 {
		t.Errorf("api keys = %d, want 0", keys)
	}

	var stillThere models.Image
	if err := db.First(&stillThere, "id = ?", kept.ID).Error; err != nil {
		t.Errorf("keeper's image removed: %v", err)
	}
}

func TestSearchUsersCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, newFakeStorage())
	createTestUser(t, db, "alice@example.com")
	createTestUser(t, db, "bob@example.com")

	users, total, err := svc.SearchUsers("ALICE", 0, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || len(users) != 1 || users[0].Email != "alice@example.com" {
		t.Fatalf("search returned wrong rows: total=%d", total)
	}
}
