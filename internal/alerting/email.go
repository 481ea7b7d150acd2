package alerting

import (
	"context"
	"fmt"
	"net/smtp"

	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

// Mailer sends a rendered alert notification. Separated from EmailHandler so
// tests can substitute a fake without dialing a real SMTP server.
type Mailer interface {
	Send(to []string, subject, body string) error
}

// SMTPMailer is the default Mailer, grounded on the standard library's
// net/smtp: the example pack carries no third-party mail client, so this is
// the one ambient concern left on the standard library (see DESIGN.md).
type SMTPMailer struct {
	Addr string
	From string
	Auth smtp.Auth
}

func (m SMTPMailer) Send(to []string, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.From, to[0], subject, body)
	return smtp.SendMail(m.Addr, m.Auth, m.From, to, []byte(msg))
}

// EmailHandler delivers alerts to a fixed recipient list via Mailer.
type EmailHandler struct {
	mailer     Mailer
	recipients []string
}

// NewEmailHandler constructs an EmailHandler.
func NewEmailHandler(mailer Mailer, recipients []string) *EmailHandler {
	return &EmailHandler{mailer: mailer, recipients: recipients}
}

func (h *EmailHandler) Name() string { return "email" }

func (h *EmailHandler) Send(ctx context.Context, alert domain.Alert) error {
	subject := fmt.Sprintf("[%s] %s", alert.Severity, alert.Title)
	if err := h.mailer.Send(h.recipients, subject, alert.Description); err != nil {
		return errs.Wrap(errs.CodeNetwork, "email delivery failed", err)
	}
	return nil
}

func (h *EmailHandler) List(ctx context.Context, filter Filter) ([]domain.Alert, error) {
	return nil, nil
}

func (h *EmailHandler) ListActive(ctx context.Context, org domain.OrganizationID) ([]domain.Alert, error) {
	return nil, nil
}

func (h *EmailHandler) CountActive(ctx context.Context, org domain.OrganizationID) (int, error) {
	return 0, nil
}

func (h *EmailHandler) Stats(ctx context.Context, org domain.OrganizationID) (Stats, error) {
	return Stats{}, nil
}

func (h *EmailHandler) Resolve(ctx context.Context, id domain.AlertID, by string, data map[string]any) error {
	return nil
}

func (h *EmailHandler) Acknowledge(ctx context.Context, id domain.AlertID, by string) error {
	return nil
}

func (h *EmailHandler) Dismiss(ctx context.Context, id domain.AlertID, by string) error {
	return nil
}
