package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/snapvault/backend/internal/config"
	"github.com/snapvault/backend/internal/models"
	"gorm.io/gorm"
)

// ShareService renders share QR codes for public images and monthly usage
// statements as PDF.
type ShareService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewShareService(db *gorm.DB, cfg *config.Config) *ShareService {
	return &ShareService{db: db, cfg: cfg}
}

// GenerateShareQR encodes the delivery URL of a public image as a QR PNG
func (s *ShareService) GenerateShareQR(img *models.Image) ([]byte, error) {
	if img.URL == "" {
		return nil, &ValidationError{Reason: "image has no delivery URL"}
	}
	return qrcode.Encode(img.URL, qrcode.Medium, 512)
}

// GenerateUsageStatementPDF produces a simple A4 usage statement for the
// user's current billing period.
func (s *ShareService) GenerateUsageStatementPDF(user *models.User) ([]byte, error) {
	var imageCount int64
	if err := s.db.Model(&models.Image{}).Where("user_id = ?", user.ID).Count(&imageCount).Error; err != nil {
		return nil, err
	}

	monthStart := time.Now().UTC().Truncate(24 * time.Hour)
	monthStart = time.Date(monthStart.Year(), monthStart.Month(), 1, 0, 0, 0, 0, time.UTC)

	var uploadsThisMonth int64
	if err := s.db.Model(&models.Image{}).
		Where("user_id = ? AND created_at >= ?", user.ID, monthStart).
		Count(&uploadsThisMonth).Error; err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, "SnapVault Usage Statement")
	pdf.Ln(12)
	pdf.SetFont("Arial", "", 12)
	pdf.MultiCell(0, 6, fmt.Sprintf(
		"Account: %s\nPlan: %s\nPeriod: %s\n\nImages stored: %d\nUploads this month: %d\nStorage used: %.2f MB of %.2f MB",
		user.Email,
		user.Plan,
		monthStart.Format("January 2006"),
		imageCount,
		uploadsThisMonth,
		float64(user.StorageUsedBytes)/(1024*1024),
		float64(user.StorageQuota)/(1024*1024),
	), "", "L", false)

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
