package services

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/snapvault/backend/internal/config"
	"github.com/snapvault/backend/internal/models"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"gorm.io/gorm"
)

// BillingService creates plan-upgrade checkout sessions and applies plan
// changes confirmed by the payment provider's webhook.
type BillingService struct {
	db           *gorm.DB
	cfg          *config.Config
	emailService *EmailService
}

func NewBillingService(db *gorm.DB, cfg *config.Config) *BillingService {
	stripe.Key = cfg.StripeSecretKey
	return &BillingService{
		db:  db,
		cfg: cfg,
	}
}

// AttachEmailService wires the sender used for plan-change confirmations
func (s *BillingService) AttachEmailService(es *EmailService) {
	s.emailService = es
}

func (s *BillingService) priceIDForPlan(plan models.PlanTier) (string, error) {
	switch plan {
	case models.PlanPro:
		return s.cfg.StripeProPriceID, nil
	case models.PlanBusiness:
		return s.cfg.StripeBusinessPriceID, nil
	default:
		return "", &ValidationError{Reason: fmt.Sprintf("plan %s cannot be purchased", plan)}
	}
}

// CreatePlanCheckout creates a Stripe checkout session for a plan upgrade
// and returns the hosted payment URL.
func (s *BillingService) CreatePlanCheckout(user *models.User, plan models.PlanTier) (string, error) {
	priceID, err := s.priceIDForPlan(plan)
	if err != nil {
		return "", err
	}

	successURL := fmt.Sprintf("%s?user_id=%s&session_id={CHECKOUT_SESSION_ID}", s.cfg.StripeSuccessURL, user.ID.String())
	cancelURL := fmt.Sprintf("%s?user_id=%s", s.cfg.StripeCancelURL, user.ID.String())

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail: stripe.String(user.Email),
		SuccessURL:    stripe.String(successURL),
		CancelURL:     stripe.String(cancelURL),
	}
	params.AddMetadata("user_id", user.ID.String())
	params.AddMetadata("plan", string(plan))

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	return sess.URL, nil
}

// ApplyPlan sets the user's plan and the matching storage quota. Called from
// the webhook handler after a completed checkout.
func (s *BillingService) ApplyPlan(userID uuid.UUID, plan models.PlanTier) error {
	switch plan {
	case models.PlanFree, models.PlanPro, models.PlanBusiness:
	default:
		return &ValidationError{Reason: fmt.Sprintf("unknown plan: %s", plan)}
	}

	quota := s.cfg.QuotaForPlan(string(plan))

	result := s.db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"plan":          plan,
		"storage_quota": quota,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{Resource: "user"}
	}

	if s.emailService != nil {
		var user models.User
		if err := s.db.First(&user, "id = ?", userID).Error; err == nil {
			go func() {
				if err := s.emailService.SendPlanChanged(user.Email, user.Name, string(plan)); err != nil {
					log.Printf("WARN: failed to send plan change email: %v", err)
				}
			}()
		}
	}

	return nil
}
