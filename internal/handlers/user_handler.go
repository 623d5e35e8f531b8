package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/snapvault/backend/internal/services"
)

type UserHandler struct {
	userService  *services.UserService
	shareService *services.ShareService
}

func NewUserHandler(userService *services.UserService, shareService *services.ShareService) *UserHandler {
	return &UserHandler{
		userService:  userService,
		shareService: shareService,
	}
}

// GetProfile returns the caller's account
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfile updates the caller's editable account fields
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.userService.UpdateUserProfile(userID, map[string]interface{}{"name": req.Name}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Profile updated"})
}

// GetUsage returns storage consumption against the plan quota
func (h *UserHandler) GetUsage(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	usage, err := h.userService.GetUsage(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch usage"})
		return
	}

	c.JSON(http.StatusOK, usage)
}

// GetUsageStatement renders the monthly usage statement as a PDF
func (h *UserHandler) GetUsageStatement(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	pdf, err := h.shareService.GenerateUsageStatementPDF(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate statement"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=snapvault-statement-%s.pdf", userID.String()[:8]))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
