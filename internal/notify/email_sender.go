package notify

import (
	"context"
	"fmt"
	"time"

	gomail "gopkg.in/mail.v2"
)

const defaultDialTimeout = 10 * time.Second

// EmailConfig holds SMTP configuration for sending emails.
// Title is the report title carried by message headers, if any; it decides the subject.
type EmailConfig struct {
	SMTPServer string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	FromEmail  string
	Title      string
}

// EmailSender delivers messages via SMTP. The destination passed to Send is the recipient address.
type EmailSender struct {
	cfg      EmailConfig
	renderer *HTMLEmailRenderer
	send     func(ctx context.Context, m *gomail.Message) error
}

// NewEmailSender creates a sender with the given SMTP configuration.
func NewEmailSender(cfg EmailConfig) *EmailSender {
	if cfg.FromEmail == "" {
		cfg.FromEmail = cfg.SMTPUser
	}
	s := &EmailSender{
		cfg:      cfg,
		renderer: NewHTMLEmailRenderer(),
	}
	s.send = s.dialAndSend
	return s
}

// Send renders text as an HTML email with plain text fallback and delivers it to destination.
func (s *EmailSender) Send(ctx context.Context, destination, text string) error {
	msg, err := s.renderer.Render(NewNotificationData(text, s.cfg.Title))
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.FromEmail)
	m.SetHeader("To", destination)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)

	if err := s.send(ctx, m); err != nil {
		return fmt.Errorf("failed to send to %s (Subject: %s): %w", destination, msg.Subject, err)
	}
	return nil
}

func (s *EmailSender) dialAndSend(ctx context.Context, m *gomail.Message) error {
	dialer := gomail.NewDialer(s.cfg.SMTPServer, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPass)
	dialer.Timeout = defaultDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Timeout = time.Until(deadline)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return dialer.DialAndSend(m)
}
