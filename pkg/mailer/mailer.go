package mailer

import (
	"fmt"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/studyhive/studyhive-api/pkg/config"
)

// Mailer sends transactional mail over SMTP. When disabled it logs the
// message instead of dialing, which keeps development setups mail-free.
type Mailer struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
}

// New constructs a Mailer from SMTP configuration.
func New(cfg config.SMTPConfig, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{cfg: cfg, logger: logger}
}

// Send delivers an HTML email to a single recipient.
func (m *Mailer) Send(to, subject, body string) error {
	if !m.cfg.Enabled {
		m.logger.Info("mail delivery disabled, skipping send",
			zap.String("to", to),
			zap.String("subject", subject),
		)
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// SendOTP delivers the verification code issued at signup.
func (m *Mailer) SendOTP(to, fullName, code string) error {
	subject := "Verify your StudyHive account"
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your verification code is <b>%s</b>. It expires shortly, so enter it soon.</p>",
		fullName, code,
	)
	return m.Send(to, subject, body)
}
