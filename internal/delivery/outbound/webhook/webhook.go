package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/shandysiswandi/otpgate/internal/delivery/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
)

// Client posts OTP messages to an external SMS / WhatsApp gateway.
type Client struct {
	httpClient *http.Client
	ins        instrument.Instrumentation
}

func New(ins instrument.Instrumentation) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		ins:        ins,
	}
}

func (c *Client) Send(ctx context.Context, url string, payload usecase.WebhookPayload) error {
	ctx, span := c.ins.Tracer("delivery.outbound.webhook").Start(ctx, "Send")
	defer span.End()

	err := c.post(ctx, url, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}

func (c *Client) post(ctx context.Context, url string, payload usecase.WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-ID", instrument.GetCorrelationID(ctx))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("delivery webhook returned status %d", resp.StatusCode)
	}

	return nil
}
