package mailer

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/vedantsingh72/Gatepass/config"
)

// Mailer delivers verification codes. The notification channel is a
// collaborator; only this boundary is specified.
type Mailer interface {
	SendOTP(email, code string) error
}

// SMTPMailer sends the code over plain SMTP with auth.
type SMTPMailer struct {
	cfg *config.Config
}

// LogMailer prints the code to the server log — dev fallback when SMTP is
// not configured.
type LogMailer struct{}

// New picks SMTP when configured, otherwise the log fallback.
func New(cfg *config.Config) Mailer {
	if cfg.SMTPHost != "" && cfg.SMTPFrom != "" {
		return &SMTPMailer{cfg: cfg}
	}
	return &LogMailer{}
}

func (m *SMTPMailer) SendOTP(email, code string) error {
	addr := m.cfg.SMTPHost + ":" + m.cfg.SMTPPort
	auth := smtp.PlainAuth("", m.cfg.SMTPFrom, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Gatepass verification code\r\n\r\n"+
			"Your verification code is %s. It expires in %d minutes.\r\n",
		m.cfg.SMTPFrom, email, code, m.cfg.OTPTTLMinutes))
	return smtp.SendMail(addr, auth, m.cfg.SMTPFrom, []string{email}, msg)
}

func (m *LogMailer) SendOTP(email, code string) error {
	log.Printf("[mailer] OTP for %s: %s", email, code)
	return nil
}
