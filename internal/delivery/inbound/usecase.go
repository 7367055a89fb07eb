package inbound

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/delivery/usecase"
)

type uc interface {
	ConsumeDeliveryRequested(ctx context.Context, in usecase.ConsumeDeliveryRequestedInput) error
}
