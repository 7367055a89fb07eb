package inbound

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/delivery/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, headers []messaging.Header) context.Context {
	for i := range headers {
		if headers[i].Key == keyOfCorrelationID {
			return instrument.SetCorrelationID(ctx, string(headers[i].Value))
		}
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

func (h *MQHandler) DeliveryRequested(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg.Headers())

	ctx, span := h.ins.Tracer("delivery.inbound.mq").Start(ctx, "DeliveryRequested")
	defer span.End()

	body := msg.Body()
	slog.InfoContext(ctx, "consume: challenge delivery requested", "msg_size", len(body))

	var payload event.DeliveryRequestedMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of challenge delivery requested", "error", err)
		return nil
	}

	if err := h.uc.ConsumeDeliveryRequested(ctx, usecase.ConsumeDeliveryRequestedInput{
		Subject:   payload.Subject,
		Method:    payload.Method,
		Code:      payload.Code,
		ExpiresAt: time.UnixMilli(payload.ExpiresAt),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume challenge delivery requested", "error", err)
		return err
	}

	return nil
}
