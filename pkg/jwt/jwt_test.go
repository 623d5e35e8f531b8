package jwt

import (
	"testing"
	"time"
)

const testSecret = "test-secret"

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("user-123", AccessToken, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ValidateToken(token, testSecret)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("user id = %q", claims.UserID)
	}
	if claims.TokenType != AccessToken {
		t.Errorf("token type = %q", claims.TokenType)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("user-123", AccessToken, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ValidateToken(token, "another-secret"); err == nil {
		t.Error("token accepted with wrong secret")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	token, err := GenerateToken("user-123", AccessToken, testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ValidateToken(token, testSecret); err == nil {
		t.Error("expired token accepted")
	}
}

func TestIsTokenValidChecksType(t *testing.T) {
	token, err := GenerateToken("user-123", RefreshToken, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if !IsTokenValid(token, testSecret, RefreshToken) {
		t.Error("refresh token not valid as refresh")
	}
	if IsTokenValid(token, testSecret, AccessToken) {
		t.Error("refresh token accepted as access token")
	}
}
