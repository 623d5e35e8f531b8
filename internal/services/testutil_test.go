package services

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/snapvault/backend/internal/config"
	"github.com/snapvault/backend/internal/models"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "snapvault.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.APIKey{},
		&models.Image{},
		&models.EventLogEntry{},
		&models.CustomDomain{},
		&models.Backup{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Env:                  "test",
		APIUrl:               "http://localhost:8080",
		B2KeyPrefix:          "images/",
		StorageTimeout:       5 * time.Second,
		UploadMaxImageSize:   5 * 1024 * 1024,
		FreeQuotaBytes:       1 * 1024 * 1024 * 1024,
		ProQuotaBytes:        50 * 1024 * 1024 * 1024,
		BusinessQuotaBytes:   500 * 1024 * 1024 * 1024,
		ReconcileGracePeriod: 24 * time.Hour,
		BcryptCost:           4,
	}
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		Email:        email,
		Password:     "not-a-real-hash",
		Name:         "Test User",
		IsActive:     true,
		Plan:         models.PlanFree,
		StorageQuota: 1 * 1024 * 1024 * 1024,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// pngBytes encodes a real PNG of the given dimensions so content sniffing
// and dimension decoding both work.
func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// fakeStorage records calls instead of talking to a real bucket.
type fakeStorage struct {
	mu          sync.Mutex
	uploads     int
	deletes     int
	deletedKeys []string
	objects     []StoredFile
	uploadErr   error
	deleteOK    bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{deleteOK: true}
}

func (f *fakeStorage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", "", f.uploadErr
	}
	f.uploads++
	f.objects = append(f.objects, StoredFile{FileID: "file-" + key, Key: key, UploadedAt: time.Now()})
	return "file-" + key, "https://cdn.example.com/" + key, nil
}

func (f *fakeStorage) Delete(ctx context.Context, fileID, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	f.deletedKeys = append(f.deletedKeys, key)
	return f.deleteOK
}

func (f *fakeStorage) ListKeys(ctx context.Context, prefix string, max int) ([]StoredFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]StoredFile, len(f.objects))
	copy(out, f.objects)
	return out, nil
}

func (f *fakeStorage) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads
}

func (f *fakeStorage) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deletes
}
