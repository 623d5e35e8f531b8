package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/snapvault/backend/internal/services"
)

type PublicHandler struct {
	imageService *services.ImageService
	shareService *services.ShareService
}

func NewPublicHandler(imageService *services.ImageService, shareService *services.ShareService) *PublicHandler {
	return &PublicHandler{
		imageService: imageService,
		shareService: shareService,
	}
}

// ListImages returns the gallery of public images
func (h *PublicHandler) ListImages(c *gin.Context) {
	limit, offset := paginationParams(c, 50, 200)

	images, total, err := h.imageService.GetPublicImages(limit, offset)
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

// GetImage returns a single public image and counts the view
func (h *PublicHandler) GetImage(c *gin.Context) {
	imageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image ID"})
		return
	}

	img, err := h.imageService.GetPublicImage(imageID)
	if err != nil {
		var nfErr *services.NotFoundError
		if errors.As(err, &nfErr) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch image"})
		return
	}

	h.imageService.IncrementViewCount(img.ID)

	c.JSON(http.StatusOK, gin.H{"image": img})
}

// GetImageQR renders a QR code PNG pointing at the image's delivery URL
func (h *PublicHandler) GetImageQR(c *gin.Context) {
	imageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image ID"})
		return
	}

	img, err := h.imageService.GetPublicImage(imageID)
	if err != nil {
		var nfErr *services.NotFoundError
		if errors.As(err, &nfErr) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch image"})
		return
	}

	png, err := h.shareService.GenerateShareQR(img)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate QR code"})
		return
	}

	h.imageService.IncrementDownloadCount(img.ID)

	c.Data(http.StatusOK, "image/png", png)
}
