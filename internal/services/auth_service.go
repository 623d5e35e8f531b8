package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/snapvault/backend/internal/config"
	"github.com/snapvault/backend/internal/models"
	"github.com/snapvault/backend/pkg/crypto"
	jwtpkg "github.com/snapvault/backend/pkg/jwt"
	"gorm.io/gorm"
)

type AuthService struct {
	db           *gorm.DB
	redis        *redis.Client
	cfg          *config.Config
	emailService *EmailService
}

func NewAuthService(db *gorm.DB, redis *redis.Client, cfg *config.Config) *AuthService {
	return &AuthService{
		db:    db,
		redis: redis,
		cfg:   cfg,
	}
}

// AttachEmailService wires the email sender used for verification mail
func (s *AuthService) AttachEmailService(es *EmailService) {
	s.emailService = es
}

// Register creates a new user account on the free plan
func (s *AuthService) Register(email, password, name string) (*models.User, error) {
	var existingUser models.User
	if err := s.db.Where("email = ?", email).First(&existingUser).Error; err == nil {
		return nil, errors.New("email already registered")
	}

	hashedPassword, err := crypto.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		Password:     hashedPassword,
		Name:         name,
		Plan:         models.PlanFree,
		StorageQuota: s.cfg.FreeQuotaBytes,
	}

	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}

	// Send verification email in the background
	if s.emailService != nil {
		verifyToken, terr := jwtpkg.GenerateToken(user.ID.String(), jwtpkg.EmailVerifyToken, s.cfg.JWTSecret, s.cfg.EmailVerifyTokenDuration)
		if terr == nil {
			verifyURL := fmt.Sprintf("%s/verify-email?token=%s", s.cfg.FrontendURL, verifyToken)
			go func() {
				if err := s.emailService.SendVerificationEmail(user.Email, user.Name, verifyURL); err != nil {
					log.Printf("WARN: failed to send verification email to %s: %v", user.Email, err)
				}
			}()
		}
	}

	return user, nil
}

// Login authenticates a user and returns tokens
func (s *AuthService) Login(email, password string) (string, string, *models.User, error) {
	var user models.User

	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", nil, &AuthenticationError{Reason: "invalid credentials"}
		}
		return "", "", nil, err
	}

	if !user.IsActive {
		return "", "", nil, &AuthenticationError{Reason: "account is deactivated"}
	}

	if !crypto.CheckPassword(password, user.Password) {
		return "", "", nil, &AuthenticationError{Reason: "invalid credentials"}
	}

	accessToken, err := jwtpkg.GenerateToken(user.ID.String(), jwtpkg.AccessToken, s.cfg.JWTSecret, s.cfg.JWTAccessTokenDuration)
	if err != nil {
		return "", "", nil, err
	}

	refreshToken, err := jwtpkg.GenerateToken(user.ID.String(), jwtpkg.RefreshToken, s.cfg.JWTSecret, s.cfg.JWTRefreshTokenDuration)
	if err != nil {
		return "", "", nil, err
	}

	refreshTokenModel := &models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: time.Now().Add(s.cfg.JWTRefreshTokenDuration),
	}

	if err := s.db.Create(refreshTokenModel).Error; err != nil {
		return "", "", nil, err
	}

	return accessToken, refreshToken, &user, nil
}

// RefreshToken generates new access token from refresh token
func (s *AuthService) RefreshToken(refreshToken string) (string, error) {
	claims, err := jwtpkg.ValidateToken(refreshToken, s.cfg.JWTSecret)
	if err != nil {
		return "", &AuthenticationError{Reason: "invalid refresh token"}
	}

	if claims.TokenType != jwtpkg.RefreshToken {
		return "", &AuthenticationError{Reason: "invalid token type"}
	}

	var tokenModel models.RefreshToken
	if err := s.db.Where("token = ?", refreshToken).First(&tokenModel).Error; err != nil {
		return "", &AuthenticationError{Reason: "refresh token not found"}
	}

	if time.Now().After(tokenModel.ExpiresAt) {
		return "", &AuthenticationError{Reason: "refresh token expired"}
	}

	accessToken, err := jwtpkg.GenerateToken(claims.UserID, jwtpkg.AccessToken, s.cfg.JWTSecret, s.cfg.JWTAccessTokenDuration)
	if err != nil {
		return "", err
	}

	return accessToken, nil
}

// Logout invalidates the refresh tokens and blacklists the access token
func (s *AuthService) Logout(userID uuid.UUID, accessToken string) error {
	if accessToken != "" {
		ctx := context.Background()
		blacklistKey := fmt.Sprintf("blacklist:token:%s", accessToken)
		if err := s.redis.Set(ctx, blacklistKey, 1, s.cfg.JWTAccessTokenDuration).Err(); err != nil {
			log.Printf("WARN: could not blacklist access token: %v", err)
		}
	}
	return s.db.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error
}

// ValidateAccessToken validates an access token and returns claims
func (s *AuthService) ValidateAccessToken(token string) (*jwtpkg.Claims, error) {
	claims, err := jwtpkg.ValidateToken(token, s.cfg.JWTSecret)
	if err != nil {
		return nil, &AuthenticationError{Reason: "invalid or expired token"}
	}

	if claims.TokenType != jwtpkg.AccessToken {
		return nil, &AuthenticationError{Reason: "invalid token type"}
	}

	// If redis is down, the request is allowed to proceed
	ctx := context.Background()
	blacklistKey := fmt.Sprintf("blacklist:token:%s", token)
	exists, err := s.redis.Exists(ctx, blacklistKey).Result()
	if err != nil {
		log.Printf("WARN: could not connect to Redis to check token blacklist: %v", err)
	} else if exists > 0 {
		return nil, &AuthenticationError{Reason: "token is revoked"}
	}

	return claims, nil
}

// VerifyEmail marks the account of a valid verification token as verified
func (s *AuthService) VerifyEmail(token string) error {
	claims, err := jwtpkg.ValidateToken(token, s.cfg.JWTSecret)
	if err != nil {
		return &AuthenticationError{Reason: "invalid or expired verification token"}
	}
	if claims.TokenType != jwtpkg.EmailVerifyToken {
		return &AuthenticationError{Reason: "invalid token type"}
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return &AuthenticationError{Reason: "invalid verification token"}
	}

	result := s.db.Model(&models.User{}).Where("id = ?", userID).Update("email_verified", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{Resource: "user"}
	}
	return nil
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "user"}
		}
		return nil, err
	}
	return &user, nil
}

// CleanupExpiredTokens removes expired refresh tokens
func (s *AuthService) CleanupExpiredTokens() error {
	return s.db.Where("expires_at < ?", time.Now()).Delete(&models.RefreshToken{}).Error
}
