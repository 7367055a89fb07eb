package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

const deliveryTestConfig = `
app:
  name: OTPGate
modules:
  delivery:
    send_max_retries: 1
    webhook_url: https://gateway.test/otp
`

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

type fakeMail struct {
	sent     []mail.Message
	failures int
}

func (f *fakeMail) Send(_ context.Context, msg mail.Message) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeWebhook struct {
	urls     []string
	payloads []WebhookPayload
	failures int
}

func (f *fakeWebhook) Send(_ context.Context, url string, payload WebhookPayload) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("gateway unavailable")
	}
	f.urls = append(f.urls, url)
	f.payloads = append(f.payloads, payload)
	return nil
}

type noopInstrument struct{}

func (noopInstrument) Tracer(name string) trace.Tracer {
	return tracenoop.NewTracerProvider().Tracer(name)
}

func (noopInstrument) Meter(name string) metric.Meter {
	return metricnoop.NewMeterProvider().Meter(name)
}

func (noopInstrument) Shutdown(context.Context) error {
	return nil
}

type harness struct {
	uc      *Usecase
	clk     *fakeClock
	mail    *fakeMail
	webhook *fakeWebhook
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithConfig(t, deliveryTestConfig)
}

func newHarnessWithConfig(t *testing.T, cfgYAML string) *harness {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(cfgYAML))
	if err != nil {
		t.Fatalf("failed to build config: %v", err)
	}

	v10, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("failed to build validator: %v", err)
	}

	clk := &fakeClock{now: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)}
	fm := &fakeMail{}
	fw := &fakeWebhook{}

	uc := NewDelivery(Dependency{
		Config:      cfg,
		Validator:   v10,
		Clock:       clk,
		RepoMail:    fm,
		RepoWebhook: fw,
		Instrument:  noopInstrument{},
	})

	return &harness{uc: uc, clk: clk, mail: fm, webhook: fw}
}

func liveInput(method string) ConsumeDeliveryRequestedInput {
	return ConsumeDeliveryRequestedInput{
		Subject:   "alice@example.com",
		Method:    method,
		Code:      "392048",
		ExpiresAt: time.Date(2026, 8, 1, 10, 5, 0, 0, time.UTC),
	}
}

func TestConsumeEmail(t *testing.T) {
	h := newHarness(t)

	if err := h.uc.ConsumeDeliveryRequested(context.Background(), liveInput("email")); err != nil {
		t.Fatalf("ConsumeDeliveryRequested returned error: %v", err)
	}

	if len(h.mail.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(h.mail.sent))
	}
	msg := h.mail.sent[0]
	if len(msg.To) != 1 || msg.To[0] != "alice@example.com" {
		t.Errorf("To = %v, want the event subject", msg.To)
	}
	if !strings.Contains(msg.HTMLBody, "392048") {
		t.Error("email body does not carry the code")
	}
	if !strings.Contains(msg.HTMLBody, "OTPGate") {
		t.Error("email body does not carry the configured app name")
	}
	if len(h.webhook.payloads) != 0 {
		t.Errorf("posted %d webhooks for an email event, want 0", len(h.webhook.payloads))
	}
}

func TestConsumeWebhookChannels(t *testing.T) {
	h := newHarness(t)

	for _, method := range []string{"sms", "whatsapp"} {
		if err := h.uc.ConsumeDeliveryRequested(context.Background(), liveInput(method)); err != nil {
			t.Fatalf("ConsumeDeliveryRequested(%s) returned error: %v", method, err)
		}
	}

	if len(h.webhook.payloads) != 2 {
		t.Fatalf("posted %d webhooks, want 2", len(h.webhook.payloads))
	}
	for i, channel := range []string{"sms", "whatsapp"} {
		p := h.webhook.payloads[i]
		if h.webhook.urls[i] != "https://gateway.test/otp" {
			t.Errorf("posted to %q, want the configured gateway", h.webhook.urls[i])
		}
		if p.Channel != channel {
			t.Errorf("Channel = %q, want %q", p.Channel, channel)
		}
		if !strings.Contains(p.Message, "392048") {
			t.Errorf("Message %q does not carry the code", p.Message)
		}
		if p.ExpiresAt != liveInput(channel).ExpiresAt.UnixMilli() {
			t.Errorf("ExpiresAt = %d, want the event expiry in millis", p.ExpiresAt)
		}
	}
}

func TestConsumeDropsStaleEvent(t *testing.T) {
	h := newHarness(t)

	in := liveInput("sms")
	in.ExpiresAt = h.clk.now.Add(-time.Second)

	if err := h.uc.ConsumeDeliveryRequested(context.Background(), in); err != nil {
		t.Fatalf("stale event returned error %v, want nil so the broker acks it", err)
	}
	if len(h.webhook.payloads) != 0 {
		t.Error("stale event still reached the gateway")
	}
}

func TestConsumeDropsInvalidEvent(t *testing.T) {
	h := newHarness(t)

	cases := []ConsumeDeliveryRequestedInput{
		{Subject: "", Method: "sms", Code: "392048", ExpiresAt: h.clk.now.Add(time.Minute)},
		{Subject: "alice@example.com", Method: "carrier-pigeon", Code: "392048", ExpiresAt: h.clk.now.Add(time.Minute)},
		{Subject: "alice@example.com", Method: "sms", Code: "not-a-code", ExpiresAt: h.clk.now.Add(time.Minute)},
	}
	for _, in := range cases {
		if err := h.uc.ConsumeDeliveryRequested(context.Background(), in); err != nil {
			t.Errorf("malformed event %+v returned error %v, want nil", in, err)
		}
	}
	if len(h.mail.sent)+len(h.webhook.payloads) != 0 {
		t.Error("a malformed event reached a transport")
	}
}

func TestConsumeDropsWebhookEventWithoutURL(t *testing.T) {
	cfg := strings.Replace(deliveryTestConfig, "webhook_url: https://gateway.test/otp", `webhook_url: ""`, 1)
	h := newHarnessWithConfig(t, cfg)

	if err := h.uc.ConsumeDeliveryRequested(context.Background(), liveInput("sms")); err != nil {
		t.Fatalf("unconfigured gateway returned error %v, want nil", err)
	}
	if len(h.webhook.payloads) != 0 {
		t.Error("event posted despite an empty gateway url")
	}
}

func TestConsumeRetriesTransientFailure(t *testing.T) {
	h := newHarness(t)
	h.webhook.failures = 1

	if err := h.uc.ConsumeDeliveryRequested(context.Background(), liveInput("sms")); err != nil {
		t.Fatalf("ConsumeDeliveryRequested returned error after retry: %v", err)
	}
	if len(h.webhook.payloads) != 1 {
		t.Errorf("posted %d webhooks, want 1 after a retried attempt", len(h.webhook.payloads))
	}
}

func TestConsumeReturnsErrorWhenRetriesExhausted(t *testing.T) {
	h := newHarness(t)
	h.mail.failures = 5

	in := liveInput("email")
	if err := h.uc.ConsumeDeliveryRequested(context.Background(), in); err == nil {
		t.Error("exhausted retries returned nil, want error so the broker redelivers")
	}
	if len(h.mail.sent) != 0 {
		t.Errorf("sent %d emails, want 0", len(h.mail.sent))
	}
}
