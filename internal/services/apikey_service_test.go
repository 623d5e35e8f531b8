package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/snapvault/backend/internal/models"
)

func TestCreateKeyReturnsSecretOnce(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAPIKeyService(db)
	user := createTestUser(t, db, "keys@example.com")

	key, secret, err := svc.CreateKey(user.ID, "ci uploader")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	if !strings.HasPrefix(secret, "sv_") {
		t.Errorf("secret missing prefix: %q", secret)
	}
	if key.KeyHash == secret || strings.Contains(key.KeyHash, secret) {
		t.Errorf("plaintext secret stored")
	}
	if key.Prefix != secret[:10] {
		t.Errorf("display prefix = %q", key.Prefix)
	}

	var stored models.APIKey
	if err := db.First(&stored, "id = ?", key.ID).Error; err != nil {
		t.Fatalf("reload key: %v", err)
	}
	if stored.KeyHash != key.KeyHash {
		t.Errorf("hash not persisted")
	}
}

func TestCreateKeyRequiresName(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAPIKeyService(db)
	user := createTestUser(t, db, "keys@example.com")

	_, _, err := svc.CreateKey(user.ID, "   ")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestAuthenticateResolvesOwner(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAPIKeyService(db)
	user := createTestUser(t, db, "keys@example.com")

	_, secret, err := svc.CreateKey(user.ID, "ci uploader")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	resolved, err := svc.Authenticate(secret)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if resolved.ID != user.ID {
		t.Errorf("resolved wrong user")
	}

	var stored models.APIKey
	if err := db.First(&stored, "user_id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload key: %v", err)
	}
	if stored.LastUsedAt == nil {
		t.Errorf("last_used_at not stamped")
	}
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAPIKeyService(db)

	for _, secret := range []string{"", "sv_0000000000000000", "not-a-key"} {
		_, err := svc.Authenticate(secret)
		var aErr *AuthenticationError
		if !errors.As(err, &aErr) {
			t.Errorf("Authenticate(%q): expected AuthenticationError, got %v", secret, err)
		}
	}
}

func TestAuthenticateRejectsDeactivatedAccount(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAPIKeyService(db)
	user := createTestUser(t, db, "keys@example.com")

	_, secret, err := svc.CreateKey(user.ID, "ci uploader")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if err := db.Model(user).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err = svc.Authenticate(secret)
	var aErr *AuthenticationError
	if !errors.As(err, &aErr) {
		t.Fatalf("expected AuthenticationError for deactivated account, got %v", err)
	}
}

func TestRevokeKey(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAPIKeyService(db)
	user := createTestUser(t, db, "keys@example.com")
	other := createTestUser(t, db, "other@example.com")

	key, secret, err := svc.CreateKey(user.ID, "ci uploader")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	// Another user cannot revoke someone else's key
	err = svc.RevokeKey(other.ID, key.ID)
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError for foreign key, got %v", err)
	}

	if err := svc.RevokeKey(user.ID, key.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if _, err := svc.Authenticate(secret); err == nil {
		t.Error("revoked key still authenticates")
	}
}
