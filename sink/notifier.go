package sink

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/strahe/pgreplay-sentinel/pgerr"
)

// Notifier delivers a short human-readable message when a sink gives
// up on an event after exhausting retries. It is a deliberately
// minimal, out-of-band capability, not a general mail client.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// EmailConfig configures SMTPNotifier, sourced from the EMAIL_* env
// vars.
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string
	To           string
}

// SMTPNotifier sends a plain-text email per notification. It is built
// on net/smtp rather than a third-party mail library: the contract it
// implements is "send this subject and body", nothing more, and
// net/smtp's PlainAuth + SendMail already cover it in a few lines.
type SMTPNotifier struct {
	cfg EmailConfig
}

func NewSMTPNotifier(cfg EmailConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

func (n *SMTPNotifier) Notify(_ context.Context, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPHost, n.cfg.SMTPPort)
	auth := smtp.PlainAuth("", n.cfg.SMTPUsername, n.cfg.SMTPPassword, n.cfg.SMTPHost)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", n.cfg.From, n.cfg.To, subject, body)

	if err := smtp.SendMail(addr, auth, n.cfg.From, []string{n.cfg.To}, []byte(msg)); err != nil {
		return pgerr.NewNotifierError("send email", err)
	}
	return nil
}

var _ Notifier = (*SMTPNotifier)(nil)
