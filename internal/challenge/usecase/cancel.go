package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type CancelInput struct {
	Subject string `validate:"required,subject"`
}

// Cancel destroys the live challenge for a subject. Hosts call it when code
// delivery definitely failed, so the subject can re-issue without waiting for
// expiry.
func (s *Usecase) Cancel(ctx context.Context, in CancelInput) error {
	ctx, span := s.startSpan(ctx, "Cancel")
	defer span.End()

	in.Subject = normalizeSubject(in.Subject)

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	err := s.repoChallenge.Delete(ctx, in.Subject)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "cancel without live challenge", "subject", in.Subject)
		return goerror.NewBusiness("no live challenge for subject", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete challenge", "subject", in.Subject, "error", err)
		return goerror.NewServer(err)
	}

	return nil
}
