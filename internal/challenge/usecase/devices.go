package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
)

type TrustedDevicesInput struct {
	Subject string `validate:"required,subject"`
}

type TrustedDeviceView struct {
	Fingerprint string
	FirstSeen   time.Time
	LastSeen    time.Time
	Active      bool
}

type TrustedDevicesOutput struct {
	Devices []TrustedDeviceView
}

// TrustedDevices lists the fingerprint digests trusted for a subject.
func (s *Usecase) TrustedDevices(ctx context.Context, in TrustedDevicesInput) (*TrustedDevicesOutput, error) {
	ctx, span := s.startSpan(ctx, "TrustedDevices")
	defer span.End()

	if err := s.requireHost(ctx); err != nil {
		return nil, err
	}

	in.Subject = normalizeSubject(in.Subject)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	devs, err := s.repoDevice.ListDevices(ctx, in.Subject)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list trusted devices", "subject", in.Subject, "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	horizon := s.cfg.GetDay("modules.challenge.device_trust_horizon_days")

	return &TrustedDevicesOutput{
		Devices: lo.Map(devs, func(d entity.TrustedDevice, _ int) TrustedDeviceView {
			return TrustedDeviceView{
				Fingerprint: d.Fingerprint,
				FirstSeen:   d.FirstSeen,
				LastSeen:    d.LastSeen,
				Active:      d.ActiveAt(now, horizon),
			}
		}),
	}, nil
}

type RevokeDevicesInput struct {
	Subject string `validate:"required,subject"`
}

// RevokeDevices drops every trusted device for a subject, forcing full
// challenges on the next verification from any device.
func (s *Usecase) RevokeDevices(ctx context.Context, in RevokeDevicesInput) error {
	ctx, span := s.startSpan(ctx, "RevokeDevices")
	defer span.End()

	if err := s.requireHost(ctx); err != nil {
		return err
	}

	in.Subject = normalizeSubject(in.Subject)

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	if err := s.repoDevice.DeleteDevices(ctx, in.Subject); err != nil {
		slog.ErrorContext(ctx, "failed to revoke trusted devices", "subject", in.Subject, "error", err)
		return goerror.NewServer(err)
	}

	return nil
}

func (s *Usecase) requireHost(ctx context.Context) error {
	if jwt.GetAuth(ctx) == nil {
		return goerror.NewBusiness("Authentication required", goerror.CodeUnauthorized)
	}

	return nil
}
