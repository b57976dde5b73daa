package service

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"peer-rental-core/internal/logger"
)

const emailSignature = "\n\nBest regards,\nThe Peer Rental Team"

type sendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

// NewEmailSender returns a SendGrid backed sender, or a sender that only
// logs when no API key is configured.
func NewEmailSender(apiKey, fromEmail, fromName string) EmailSender {
	if apiKey == "" {
		logger.Warn("SendGrid API key not set, emails will only be logged")
		return logEmailSender{}
	}
	return &sendGridSender{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *sendGridSender) Send(ctx context.Context, to, subject, body string) error {
	logger.ExternalServiceCall("sendgrid", "send", "to", to, "subject", subject)

	from := mail.NewEmail(s.fromName, s.fromEmail)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), body+emailSignature, "")
	response, err := s.client.SendWithContext(ctx, message)
	if err == nil && response.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	logger.ExternalServiceResult("sendgrid", "send", err, "to", to)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

type logEmailSender struct{}

func (logEmailSender) Send(ctx context.Context, to, subject, body string) error {
	logger.Info("Email (not sent)", "to", to, "subject", subject)
	return nil
}
