package services

import (
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/snapvault/backend/internal/config"
	"github.com/snapvault/backend/internal/models"
	jwtpkg "github.com/snapvault/backend/pkg/jwt"
	"gorm.io/gorm"
)

func newAuthFixture(t *testing.T) (*AuthService, *gorm.DB, *config.Config) {
	t.Helper()

	db := setupTestDB(t)
	cfg := newTestConfig()
	cfg.JWTSecret = "test-secret"
	cfg.JWTAccessTokenDuration = time.Hour
	cfg.JWTRefreshTokenDuration = 24 * time.Hour
	cfg.EmailVerifyTokenDuration = 48 * time.Hour

	// Unreachable redis; blacklist checks degrade gracefully
	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 10 * time.Millisecond})
	return NewAuthService(db, redisClient, cfg), db, cfg
}

func TestRegisterAndLogin(t *testing.T) {
	svc, db, _ := newAuthFixture(t)

	user, err := svc.Register("new@example.com", "Sup3rSecret", "New User")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Plan != models.PlanFree {
		t.Errorf("plan = %s, want free", user.Plan)
	}
	if user.StorageQuota != svc.cfg.FreeQuotaBytes {
		t.Errorf("quota = %d", user.StorageQuota)
	}
	if user.Password == "Sup3rSecret" {
		t.Error("password stored as plaintext")
	}

	// Duplicate email is rejected
	if _, err := svc.Register("new@example.com", "Sup3rSecret", "Clone"); err == nil {
		t.Error("duplicate registration accepted")
	}

	access, refresh, loggedIn, err := svc.Login("new@example.com", "Sup3rSecret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Error("login resolved wrong user")
	}
	if access == "" || refresh == "" {
		t.Error("tokens missing")
	}

	var stored models.RefreshToken
	if err := db.Where("user_id = ?", user.ID).First(&stored).Error; err != nil {
		t.Errorf("refresh token row not created: %v", err)
	}
}

func TestLoginRejectsBadPasswordAndInactive(t *testing.T) {
	svc, db, _ := newAuthFixture(t)

	user, err := svc.Register("locked@example.com", "Sup3rSecret", "Locked")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	_, _, _, err = svc.Login("locked@example.com", "WrongPass1")
	var aErr *AuthenticationError
	if !errors.As(err, &aErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}

	_, _, _, err = svc.Login("nobody@example.com", "Sup3rSecret")
	if !errors.As(err, &aErr) {
		t.Fatalf("expected AuthenticationError for unknown email, got %v", err)
	}

	db.Model(user).Update("is_active", false)
	_, _, _, err = svc.Login("locked@example.com", "Sup3rSecret")
	if !errors.As(err, &aErr) {
		t.Fatalf("expected AuthenticationError for deactivated account, got %v", err)
	}
}

func TestRefreshTokenFlow(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	if _, err := svc.Register("refresh@example.com", "Sup3rSecret", "R"); err != nil {
		t.Fatalf("register: %v", err)
	}
	access, refresh, _, err := svc.Login("refresh@example.com", "Sup3rSecret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	newAccess, err := svc.RefreshToken(refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := svc.ValidateAccessToken(newAccess); err != nil {
		t.Errorf("refreshed access token invalid: %v", err)
	}

	// An access token cannot be used as a refresh token
	if _, err := svc.RefreshToken(access); err == nil {
		t.Error("access token accepted for refresh")
	}
}

func TestValidateAccessTokenRejectsRefreshToken(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	if _, err := svc.Register("types@example.com", "Sup3rSecret", "T"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, refresh, _, err := svc.Login("types@example.com", "Sup3rSecret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	_, err = svc.ValidateAccessToken(refresh)
	var aErr *AuthenticationError
	if !errors.As(err, &aErr) {
		t.Fatalf("expected AuthenticationError for wrong token type, got %v", err)
	}
}

func TestVerifyEmail(t *testing.T) {
	svc, db, cfg := newAuthFixture(t)

	user, err := svc.Register("verify@example.com", "Sup3rSecret", "V")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.EmailVerified {
		t.Fatal("account starts verified")
	}

	token, err := jwtpkg.GenerateToken(user.ID.String(), jwtpkg.EmailVerifyToken, cfg.JWTSecret, cfg.EmailVerifyTokenDuration)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if err := svc.VerifyEmail(token); err != nil {
		t.Fatalf("verify: %v", err)
	}

	var fresh models.User
	if err := db.First(&fresh, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !fresh.EmailVerified {
		t.Error("email not marked verified")
	}

	// An access token is not a verification token
	access, _, _, err := svc.Login("verify@example.com", "Sup3rSecret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.VerifyEmail(access); err == nil {
		t.Error("access token accepted for email verification")
	}
}

func TestLogoutDeletesRefreshTokens(t *testing.T) {
	svc, db, _ := newAuthFixture(t)

	user, err := svc.Register("bye@example.com", "Sup3rSecret", "B")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, _, err := svc.Login("bye@example.com", "Sup3rSecret"); err != nil {
		t.Fatalf("login: %v", err)
	}

	// Redis is unreachable here; logout still clears the refresh tokens
	if err := svc.Logout(user.ID, "some-access-token"); err != nil {
		t.Fatalf("logout: %v", err)
	}

	var remaining int64
	db.Model(&models.RefreshToken{}).Where("user_id = ?", user.ID).Count(&remaining)
	if remaining != 0 {
		t.Errorf("refresh tokens remaining = %d", remaining)
	}
}
