package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/snapvault/backend/internal/services"
)

type DomainHandler struct {
	domainService *services.DomainService
}

func NewDomainHandler(domainService *services.DomainService) *DomainHandler {
	return &DomainHandler{domainService: domainService}
}

// Add registers a custom domain and returns its DNS verification token
func (h *DomainHandler) Add(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	var req struct {
		Hostname string `json:"hostname" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	domain, err := h.domainService.AddDomain(userID, req.Hostname)
	if err != nil {
		var vErr *services.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add domain"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"domain":     domain,
		"txt_record": "snapvault-verify=" + domain.VerificationToken,
	})
}

// List returns the caller's custom domains
func (h *DomainHandler) List(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	domains, err := h.domainService.ListDomains(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list domains"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"domains": domains})
}

// Verify checks the DNS TXT record and marks the domain verified
func (h *DomainHandler) Verify(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	domainID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid domain ID"})
		return
	}

	domain, err := h.domainService.VerifyDomain(userID, domainID)
	if err != nil {
		var nfErr *services.NotFoundError
		if errors.As(err, &nfErr) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Domain not found"})
			return
		}
		var vErr *services.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify domain"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"domain": domain})
}

// Remove deletes a custom domain
func (h *DomainHandler) Remove(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	domainID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid domain ID"})
		return
	}

	if err := h.domainService.RemoveDomain(userID, domainID); err != nil {
		var nfErr *services.NotFoundError
		if errors.As(err, &nfErr) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Domain not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove domain"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Domain removed"})
}
