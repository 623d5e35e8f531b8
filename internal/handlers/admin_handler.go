package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/snapvault/backend/internal/services"
)

type AdminHandler struct {
	adminService    *services.AdminService
	userService     *services.UserService
	imageService    *services.ImageService
	eventLogService *services.EventLogService
	backupService   *services.BackupService
}

func NewAdminHandler(adminService *services.AdminService, userService *services.UserService, imageService *services.ImageService, eventLogService *services.EventLogService, backupService *services.BackupService) *AdminHandler {
	return &AdminHandler{
		adminService:    adminService,
		userService:     userService,
		imageService:    imageService,
		eventLogService: eventLogService,
		backupService:   backupService,
	}
}

// GetStats returns platform-wide dashboard figures
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListUsers returns users with pagination and optional search
func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, offset := paginationParams(c, 50, 200)

	query := c.Query("search")
	if query != "" {
		users, total, err := h.userService.SearchUsers(query, offset, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search users"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users, "total": total})
		return
	}

	users, total, err := h.userService.GetAllUsers(offset, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users, "total": total})
}

// SetUserActive activates or deactivates an account
func (h *AdminHandler) SetUserActive(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.userService.UpdateUserActive(userID, *req.IsActive); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User updated"})
}

// DeleteUser removes an account and all its data
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	if err := h.userService.DeleteUser(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

// ListImages returns all images across tenants
func (h *AdminHandler) ListImages(c *gin.Context) {
	limit, offset := paginationParams(c, 50, 200)

	images, total, err := h.imageService.GetAllImages(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list images"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"images": images, "total": total})
}

// ListEventLogs returns event log entries with optional level and user filters
func (h *AdminHandler) ListEventLogs(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, _ := paginationParams(c, 50, 200)

	var userID *uuid.UUID
	if raw := c.Query("user_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
			return
		}
		userID = &parsed
	}

	entries, total, err := h.eventLogService.GetRecentEntries(page, limit, userID, c.Query("level"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list event logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// ListBackups returns database backups, newest first
func (h *AdminHandler) ListBackups(c *gin.Context) {
	limit, offset := paginationParams(c, 50, 200)

	backups, total, err := h.backupService.ListBackups(offset, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list backups"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"backups": backups, "total": total})
}

// CreateBackup starts a manual database backup
func (h *AdminHandler) CreateBackup(c *gin.Context) {
	adminID := c.MustGet("userID").(uuid.UUID)

	backup, err := h.backupService.RunBackup(c.Request.Context(), "manual", &adminID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Backup failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"backup": backup})
}

// SyncBackups reconciles backup records with the backup bucket
func (h *AdminHandler) SyncBackups(c *gin.Context) {
	synced, err := h.backupService.SyncBackupsFromS3()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sync backups"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"synced": synced})
}
