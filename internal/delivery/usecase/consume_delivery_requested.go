package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
)

const emailBodyTemplate = `<p>Hello,</p>
<p>Your one-time code is <strong>{{.code}}</strong>.</p>
<p>It expires at {{.expires_at}}. If you did not request this code, ignore this email.</p>
<p>{{.company_name}}</p>`

type ConsumeDeliveryRequestedInput struct {
	Subject   string `validate:"required,subject"`
	Method    string `validate:"required,oneof=sms whatsapp email"`
	Code      string `validate:"required,otpcode"`
	ExpiresAt time.Time
}

// ConsumeDeliveryRequested fans a code out to the channel named in the
// event. Malformed or stale events are dropped, transport failures are
// returned so the broker redelivers.
func (s *Usecase) ConsumeDeliveryRequested(ctx context.Context, in ConsumeDeliveryRequestedInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeDeliveryRequested")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "error", err)
		return nil
	}

	if !s.clock.Now().Before(in.ExpiresAt) {
		slog.WarnContext(ctx, "dropping delivery for already expired code", "method", in.Method)
		return nil
	}

	if in.Method == "email" {
		return s.deliverEmail(ctx, in)
	}

	return s.deliverWebhook(ctx, in)
}

func (s *Usecase) deliverEmail(ctx context.Context, in ConsumeDeliveryRequestedInput) error {
	body, err := s.renderTemplate("otp_email", emailBodyTemplate, map[string]any{
		"code":         in.Code,
		"expires_at":   in.ExpiresAt.UTC().Format(time.RFC1123),
		"company_name": s.cfg.GetString("app.name"),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to render otp email body", "error", err)
		return nil
	}

	err = s.sendWithRetry(ctx, func(ctx context.Context) error {
		return s.repoMail.Send(ctx, mail.Message{
			To:       []string{in.Subject},
			Subject:  "Your one-time code",
			HTMLBody: body,
		})
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to send otp email", "error", err)
		return err
	}

	return nil
}

func (s *Usecase) deliverWebhook(ctx context.Context, in ConsumeDeliveryRequestedInput) error {
	url := s.cfg.GetString("modules.delivery.webhook_url")
	if url == "" {
		slog.WarnContext(ctx, "no delivery webhook configured, dropping message", "method", in.Method)
		return nil
	}

	payload := WebhookPayload{
		Subject:   in.Subject,
		Channel:   in.Method,
		Message:   fmt.Sprintf("Your one-time code is %s", in.Code),
		ExpiresAt: in.ExpiresAt.UnixMilli(),
	}

	err := s.sendWithRetry(ctx, func(ctx context.Context) error {
		return s.repoWebhook.Send(ctx, url, payload)
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to post otp to delivery webhook", "method", in.Method, "error", err)
		return err
	}

	return nil
}
