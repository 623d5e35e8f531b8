package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/snapvault/backend/internal/config"
	"github.com/snapvault/backend/internal/models"
	"github.com/snapvault/backend/internal/services"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

type BillingHandler struct {
	billingService *services.BillingService
	userService    *services.UserService
	cfg            *config.Config
}

func NewBillingHandler(billingService *services.BillingService, userService *services.UserService, cfg *config.Config) *BillingHandler {
	return &BillingHandler{
		billingService: billingService,
		userService:    userService,
		cfg:            cfg,
	}
}

// CreateCheckout starts a Stripe checkout session for a plan upgrade
func (h *BillingHandler) CreateCheckout(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	var req struct {
		Plan string `json:"plan" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Account not available"})
		return
	}

	checkoutURL, err := h.billingService.CreatePlanCheckout(user, models.PlanTier(req.Plan))
	if err != nil {
		var vErr *services.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}
		log.Printf("ERROR: Failed to create checkout session for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"checkout_url": checkoutURL})
}

// HandleWebhook handles Stripe webhook events
func (h *BillingHandler) HandleWebhook(c *gin.Context) {
	const MaxBodyBytes = int64(65536)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Printf("ERROR: Failed to read Stripe webhook request body: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	signatureHeader := c.GetHeader("Stripe-Signature")

	event, err := webhook.ConstructEvent(payload, signatureHeader, h.cfg.StripeWebhookSecret)
	if err != nil {
		log.Printf("ERROR: Webhook signature verification failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	log.Printf("INFO: Received Stripe event type: %s, ID: %s", event.Type, event.ID)

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			log.Printf("ERROR: Failed to parse webhook JSON for checkout.session.completed: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Error parsing webhook JSON"})
			return
		}

		userIDStr, ok := session.Metadata["user_id"]
		if !ok {
			log.Printf("ERROR: user_id not found in metadata for session %s", session.ID)
			c.JSON(http.StatusBadRequest, gin.H{"error": "User ID not found in metadata"})
			return
		}
		planStr, ok := session.Metadata["plan"]
		if !ok {
			log.Printf("ERROR: plan not found in metadata for session %s", session.ID)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Plan not found in metadata"})
			return
		}

		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			log.Printf("ERROR: Invalid user_id format in metadata: %s", userIDStr)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
			return
		}

		if err := h.billingService.ApplyPlan(userID, models.PlanTier(planStr)); err != nil {
			log.Printf("ERROR: Failed to apply plan %s for user %s: %v", planStr, userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply plan"})
			return
		}

		log.Printf("INFO: Plan %s applied for user %s", planStr, userID)
		c.JSON(http.StatusOK, gin.H{"status": "success"})
		return

	default:
		log.Printf("INFO: Unhandled Stripe event type: %s", event.Type)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
