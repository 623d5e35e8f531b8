package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/snapvault/backend/internal/services"
)

// Auth validates the bearer credential on the request. Both JWT access
// tokens and API keys are accepted; API keys carry the "sv_" prefix.
// On success the user ID and admin flag are stored in the gin context.
func Auth(authService *services.AuthService, apiKeyService *services.APIKeyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := extractBearer(c)
		if credential == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			c.Abort()
			return
		}

		if services.IsAPIKey(credential) {
			user, err := apiKeyService.Authenticate(credential)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
				c.Abort()
				return
			}
			c.Set("userID", user.ID)
			c.Set("isAdmin", user.IsAdmin)
			c.Next()
			return
		}

		claims, err := authService.ValidateAccessToken(credential)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		user, err := authService.GetUserByID(userID)
		if err != nil || !user.IsActive {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Account not available"})
			c.Abort()
			return
		}

		c.Set("userID", user.ID)
		c.Set("isAdmin", user.IsAdmin)
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	// SSE and direct download links cannot set headers
	return c.Query("token")
}
