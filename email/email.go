package email

import (
	"fmt"
	"net/smtp"
	"os"
)

// ModerationMailer sends plain-text alerts to the moderation inbox when a
// report is filed. A mailer with no configured recipient is valid and sends
// nothing.
type ModerationMailer struct {
	host     string
	port     string
	user     string
	password string
	from     string
	to       string
}

func NewModerationMailer() *ModerationMailer {
	return &ModerationMailer{
		host:     os.Getenv("SMTP_HOST"),
		port:     os.Getenv("SMTP_PORT"),
		user:     os.Getenv("SMTP_USER"),
		password: os.Getenv("SMTP_PASSWORD"),
		from:     os.Getenv("SMTP_FROM"),
		to:       os.Getenv("MODERATION_EMAIL"),
	}
}

// Enabled reports whether alerts are configured.
func (e *ModerationMailer) Enabled() bool {
	return e.to != "" && e.host != ""
}

// SendReportAlert notifies the moderation inbox about a new or updated
// report on the given target.
func (e *ModerationMailer) SendReportAlert(target, reason string) error {
	if !e.Enabled() {
		return nil
	}

	subject := "New content report - Quorum"
	body := fmt.Sprintf(`A report was filed.

Target: %s
Reason: %s

Review it in the moderation queue.
`, target, reason)

	message := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", e.from, e.to, subject, body)

	auth := smtp.PlainAuth("", e.user, e.password, e.host)
	addr := fmt.Sprintf("%s:%s", e.host, e.port)

	if err := smtp.SendMail(addr, auth, e.from, []string{e.to}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send report alert: %v", err)
	}
	return nil
}
