package service

import (
	"context"
	"fmt"
	"strings"

	"reservas-backend/internal/domain"
	"reservas-backend/internal/logger"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// mailSender is satisfied by *sendgrid.Client.
type mailSender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

type emailService struct {
	client    mailSender
	fromEmail string
	fromName  string
	opsEmail  string
}

func NewEmailService(apiKey, fromEmail, fromName, opsEmail string) EmailService {
	return newEmailService(sendgrid.NewSendClient(apiKey), fromEmail, fromName, opsEmail)
}

func newEmailService(client mailSender, fromEmail, fromName, opsEmail string) *emailService {
	return &emailService{
		client:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
		opsEmail:  opsEmail,
	}
}

func (s *emailService) SendReconciliationAlert(ctx context.Context, item *domain.ReconciliationItem) error {
	if s.opsEmail == "" {
		logger.Warn("Ops email not configured, skipping reconciliation alert", "kind", item.Kind)
		return nil
	}

	subject := fmt.Sprintf("[reconciliation] %s at %s", item.Kind, item.Step)

	var b strings.Builder
	fmt.Fprintf(&b, "Kind: %s\n", item.Kind)
	fmt.Fprintf(&b, "Step: %s\n", item.Step)
	if item.ReservationID != nil {
		fmt.Fprintf(&b, "Reservation: %s\n", *item.ReservationID)
	}
	if item.PaymentID != nil {
		fmt.Fprintf(&b, "Payment: %s\n", *item.PaymentID)
	}
	if item.UserID != nil {
		fmt.Fprintf(&b, "User: %s\n", *item.UserID)
	}
	fmt.Fprintf(&b, "Processor reference: %s\n", item.ProviderRef)
	fmt.Fprintf(&b, "Detail: %s\n", item.Detail)
	plainText := b.String()
	htmlContent := "<pre>" + plainText + "</pre>"

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail("Operations", s.opsEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)

	logger.ExternalServiceCall("sendgrid", "send", "to", s.opsEmail, "kind", item.Kind)
	response, err := s.client.Send(message)
	if err != nil {
		logger.ExternalServiceResult("sendgrid", "send", err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		err := fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
		logger.ExternalServiceResult("sendgrid", "send", err)
		return err
	}

	logger.ExternalServiceResult("sendgrid", "send", nil, "status", response.StatusCode)
	return nil
}
