package notify

import (
	"fmt"
	"log/slog"
	"time"

	gomail "gopkg.in/mail.v2"

	"growthwatch/internal/types"
)

// EmailConfig holds SMTP settings for the optional e-mail copy of each
// notification.
type EmailConfig struct {
	SMTPServer string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	FromEmail  string
	ToEmail    string
}

// Enabled reports whether the config is complete enough to send.
func (c EmailConfig) Enabled() bool {
	return c.SMTPServer != "" && c.SMTPUser != "" && c.SMTPPass != "" && c.ToEmail != ""
}

// EmailSender delivers notification text over SMTP.
type EmailSender struct {
	cfg EmailConfig
}

// NewEmailSender returns a sender, or nil when the config is incomplete.
func NewEmailSender(cfg EmailConfig) *EmailSender {
	if !cfg.Enabled() {
		return nil
	}
	if cfg.FromEmail == "" {
		cfg.FromEmail = cfg.SMTPUser
	}
	return &EmailSender{cfg: cfg}
}

// Send mails one finding, reporting whether delivery happened. Failures are
// logged, never raised.
func (s *EmailSender) Send(item types.Item, body string) bool {
	message := gomail.NewMessage()
	message.SetHeader("From", s.cfg.FromEmail)
	message.SetHeader("To", s.cfg.ToEmail)
	message.SetHeader("Subject", fmt.Sprintf("Growth Alert: %s", item.Title))
	message.SetBody("text/plain", body)

	dialer := gomail.NewDialer(s.cfg.SMTPServer, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPass)
	dialer.Timeout = 10 * time.Second

	if err := dialer.DialAndSend(message); err != nil {
		slog.Error("email send failed", slog.String("to", s.cfg.ToEmail), slog.Any("error", err))
		return false
	}
	slog.Info("email sent", slog.String("title", item.Title))
	return true
}
