package services

import (
	"crypto/tls"
	"fmt"
	"net/smtp"

	"github.com/snapvault/backend/internal/config"
)

// EmailService sends transactional notifications. Plain-text mail only; the
// rendering of rich templates lives with the frontend.
type EmailService struct {
	cfg *config.Config
}

func NewEmailService(cfg *config.Config) *EmailService {
	return &EmailService{cfg: cfg}
}

// SendVerificationEmail sends the email-verification link
func (s *EmailService) SendVerificationEmail(to, name, verifyURL string) error {
	subject := "Verify your SnapVault email address"
	body := fmt.Sprintf("Hi %s,\n\nplease confirm your email address by opening the link below:\n\n%s\n\nThe link expires in 48 hours. If you did not create a SnapVault account, you can ignore this message.\n", name, verifyURL)
	return s.SendGenericTextEmail(to, subject, body)
}

// SendQuotaWarning notifies a user who is close to their storage limit
func (s *EmailService) SendQuotaWarning(to, name string, usedBytes, quotaBytes int64) error {
	subject := "Your SnapVault storage is almost full"
	body := fmt.Sprintf("Hi %s,\n\nyou have used %d of %d bytes of your storage quota. Uploads will be rejected once the limit is reached.\n\nYou can upgrade your plan in the account settings.\n", name, usedBytes, quotaBytes)
	return s.SendGenericTextEmail(to, subject, body)
}

// SendPlanChanged confirms a plan upgrade or downgrade
func (s *EmailService) SendPlanChanged(to, name, plan string) error {
	subject := "Your SnapVault plan has changed"
	body := fmt.Sprintf("Hi %s,\n\nyour account is now on the %s plan. The new storage quota is active immediately.\n", name, plan)
	return s.SendGenericTextEmail(to, subject, body)
}

// SendGenericTextEmail sends a plain text email
func (s *EmailService) SendGenericTextEmail(to, subject, body string) error {
	from := fmt.Sprintf("%s <%s>", s.cfg.SMTPFromName, s.cfg.SMTPFrom)

	message := fmt.Sprintf("From: %s\r\n", from)
	message += fmt.Sprintf("To: %s\r\n", to)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "MIME-Version: 1.0\r\n"
	message += "Content-Type: text/plain; charset=\"UTF-8\"\r\n"
	message += "\r\n"
	message += body

	return s.sendSMTP(to, []byte(message))
}

// sendSMTP sends an email via SMTP over implicit TLS (port 465)
func (s *EmailService) sendSMTP(to string, message []byte) error {
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	tlsConfig := &tls.Config{
		ServerName: s.cfg.SMTPHost,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.SMTPHost)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth failed: %w", err)
	}
	if err := client.Mail(s.cfg.SMTPFrom); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(message); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return client.Quit()
}
