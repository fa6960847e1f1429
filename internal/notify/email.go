package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

var ErrNotConfigured = errors.New("email sender not configured (missing RESEND_API_KEY)")

// Message is one outgoing email. HTML is optional.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a single message. Implementations must honour ctx.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type EmailSender struct {
	client    *resend.Client
	fromEmail string
	isDev     bool
	log       *slog.Logger
}

// NewEmailSender returns a Resend backed sender. In development mode
// messages are only logged.
func NewEmailSender(apiKey, fromEmail string, isDev bool, log *slog.Logger) *EmailSender {
	var client *resend.Client
	if apiKey != "" && !isDev {
		client = resend.NewClient(apiKey)
	}

	return &EmailSender{
		client:    client,
		fromEmail: fromEmail,
		isDev:     isDev,
		log:       log,
	}
}

func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	if s.isDev {
		s.log.Info("email sent (dev mode)", "to", msg.To, "subject", msg.Subject)
		s.log.Debug("email body", "text", msg.Text)
		return nil
	}

	if s.client == nil {
		return ErrNotConfigured
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
		Html:    msg.HTML,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err == nil {
		s.log.Info("email sent", "to", msg.To, "subject", msg.Subject)
	}
	return err
}
