package usecase

import (
	"bytes"
	"context"
	"html/template"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/trace"

	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

type repoMail interface {
	Send(ctx context.Context, msg mail.Message) error
}

type repoWebhook interface {
	Send(ctx context.Context, url string, payload WebhookPayload) error
}

// WebhookPayload is the body posted to the SMS / WhatsApp gateway.
type WebhookPayload struct {
	Subject   string `json:"subject"`
	Channel   string `json:"channel"`
	Message   string `json:"message"`
	ExpiresAt int64  `json:"expires_at"`
}

type Usecase struct {
	cfg         config.Config
	validator   validator.Validator
	clock       clock.Clocker
	repoMail    repoMail
	repoWebhook repoWebhook
	ins         instrument.Instrumentation
}

type Dependency struct {
	Config      config.Config
	Validator   validator.Validator
	Clock       clock.Clocker
	RepoMail    repoMail
	RepoWebhook repoWebhook
	Instrument  instrument.Instrumentation
}

func NewDelivery(dep Dependency) *Usecase {
	return &Usecase{
		cfg:         dep.Config,
		validator:   dep.Validator,
		clock:       dep.Clock,
		repoMail:    dep.RepoMail,
		repoWebhook: dep.RepoWebhook,
		ins:         dep.Instrument,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("delivery.usecase").Start(ctx, name)
}

func (s *Usecase) renderTemplate(name, tpl string, data map[string]any) (string, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(tpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// sendWithRetry wraps a single send attempt with fibonacci backoff. Every
// error from fn is treated as retryable; the cap and attempt budget come
// from module config.
func (s *Usecase) sendWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	maxRetries := s.cfg.GetInt("modules.delivery.send_max_retries")
	if maxRetries <= 0 {
		maxRetries = 3
	}

	b := retry.NewFibonacci(200 * time.Millisecond)
	b = retry.WithCappedDuration(5*time.Second, b)
	b = retry.WithMaxRetries(uint64(maxRetries), b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
