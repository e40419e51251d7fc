package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// DefaultFailureRatio is the share of dispatched items that may fail before
// operators are alerted.
const DefaultFailureRatio = 0.5

// Alerter decides whether a finished run deserves operator attention.
type Alerter interface {
	Notify(ctx context.Context, summary *Summary, runErr error) error
}

// EmailSender is satisfied by EmailService.
type EmailSender interface {
	SendEmail(ctx context.Context, to []string, subject, htmlBody string) error
}

// EmailService handles sending emails via Resend
type EmailService struct {
	client    *resend.Client
	fromEmail string
}

func NewEmailService(apiKey, from string) *EmailService {
	if from == "" {
		from = "onboarding@resend.dev"
	}
	return &EmailService{
		client:    resend.NewClient(apiKey),
		fromEmail: from,
	}
}

func (s *EmailService) SendEmail(ctx context.Context, to []string, subject, htmlBody string) error {
	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      to,
		Subject: subject,
		Html:    htmlBody,
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send email via Resend: %w", err)
	}
	return nil
}

// EmailAlerter mails the operators when a run errors out or when the failure
// ratio of dispatched items reaches the threshold.
type EmailAlerter struct {
	sender     EmailSender
	recipients []string
	threshold  float64
	logger     *slog.Logger
}

func NewEmailAlerter(sender EmailSender, recipients []string, threshold float64, logger *slog.Logger) *EmailAlerter {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultFailureRatio
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailAlerter{sender: sender, recipients: recipients, threshold: threshold, logger: logger}
}

// ShouldAlert reports whether the run warrants an email. Skipped items do not
// count toward the ratio.
func (a *EmailAlerter) ShouldAlert(summary *Summary, runErr error) bool {
	if runErr != nil {
		return true
	}
	if summary == nil {
		return false
	}
	dispatched := summary.Sent + summary.Failed
	if dispatched == 0 {
		return false
	}
	return float64(summary.Failed)/float64(dispatched) >= a.threshold
}

func (a *EmailAlerter) Notify(ctx context.Context, summary *Summary, runErr error) error {
	if a == nil || a.sender == nil || len(a.recipients) == 0 {
		return nil
	}
	if !a.ShouldAlert(summary, runErr) {
		return nil
	}

	subject, body, err := RenderAlert(summary, runErr)
	if err != nil {
		return fmt.Errorf("render alert: %w", err)
	}
	if err := a.sender.SendEmail(ctx, a.recipients, subject, body); err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "operator alert sent", "recipients", len(a.recipients))
	return nil
}
