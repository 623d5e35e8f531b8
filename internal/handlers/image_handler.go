package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/snapvault/backend/internal/models"
	"github.com/snapvault/backend/internal/services"
)

type ImageHandler struct {
	uploadService *services.UploadService
	imageService  *services.ImageService
	userService   *services.UserService
}

func NewImageHandler(uploadService *services.UploadService, imageService *services.ImageService, userService *services.UserService) *ImageHandler {
	return &ImageHandler{
		uploadService: uploadService,
		imageService:  imageService,
		userService:   userService,
	}
}

// Upload accepts a multipart image and runs it through the pipeline
func (h *ImageHandler) Upload(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Account not available"})
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image file"})
		return
	}

	opts := services.UploadOptions{
		Visibility:  models.ImageVisibility(c.PostForm("privacy")),
		Description: c.PostForm("description"),
		AltText:     c.PostForm("altText"),
		Folder:      c.PostForm("folder"),
	}
	if tags := c.PostForm("tags"); tags != "" {
		opts.Tags = strings.Split(tags, ",")
	}

	img, err := h.uploadService.Submit(
		c.Request.Context(),
		user,
		data,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		opts,
	)
	if err != nil {
		respondUploadError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"image":   img,
	})
}

// respondUploadError maps pipeline failures onto HTTP statuses
func respondUploadError(c *gin.Context, err error) {
	var vErr *services.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
		return
	}

	var sErr *services.StorageError
	if errors.As(err, &sErr) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Storage backend unavailable"})
		return
	}

	var pErr *services.PersistenceError
	if errors.As(err, &pErr) {
		// stored tells clients whether bytes reached storage before the
		// metadata write failed, so they know a retry may duplicate.
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to save image metadata",
			"stored": pErr.Stored,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
}

// List returns the caller's images with optional folder and search filters
func (h *ImageHandler) List(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	folder := c.Query("folder")
	search := c.Query("search")
	limit, offset := paginationParams(c, 50, 200)

	images, total, err := h.imageService.ListImages(userID, folder, search, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list images"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"images": images,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// Get returns a single image owned by the caller
func (h *ImageHandler) Get(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	imageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image ID"})
		return
	}

	img, err := h.imageService.GetImage(userID, imageID)
	if err != nil {
		var nfErr *services.NotFoundError
		if errors.As(err, &nfErr) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch image"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"image": img})
}

// UpdateMetadata applies a partial edit to an image's descriptive fields
func (h *ImageHandler) UpdateMetadata(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	imageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image ID"})
		return
	}

	var req struct {
		Description *string  `json:"description"`
		AltText     *string  `json:"altText"`
		Tags        []string `json:"tags"`
		Folder      *string  `json:"folder"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update := services.MetadataUpdate{
		Description: req.Description,
		AltText:     req.AltText,
		Tags:        req.Tags,
		Folder:      req.Folder,
	}
	if err := h.imageService.UpdateMetadata(userID, imageID, update); err != nil {
		var nfErr *services.NotFoundError
		if errors.As(err, &nfErr) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update image"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Image updated"})
}

// UpdateVisibility flips an image between private and public
func (h *ImageHandler) UpdateVisibility(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	imageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image ID"})
		return
	}

	var req struct {
		Visibility string `json:"visibility" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.imageService.UpdateVisibility(userID, imageID, models.ImageVisibility(req.Visibility))
	if err != nil {
		var vErr *services.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}
		var nfErr *services.NotFoundError
		if errors.As(err, &nfErr) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update visibility"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Visibility updated"})
}

// Delete removes an image's metadata and its stored object
func (h *ImageHandler) Delete(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	imageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image ID"})
		return
	}

	if err := h.imageService.DeleteImage(c.Request.Context(), userID, imageID); err != nil {
		var nfErr *services.NotFoundError
		if errors.As(err, &nfErr) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete image"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Image deleted"})
}

// paginationParams reads limit/offset query params with bounds
func paginationParams(c *gin.Context, defaultLimit, maxLimit int) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	return limit, offset
}
