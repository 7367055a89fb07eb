package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type RotateBackupCodesInput struct {
	Subject string `validate:"required,subject"`
}

type RotateBackupCodesOutput struct {
	// Codes is shown exactly once; only the hashes survive this call.
	Codes []string
}

// RotateBackupCodes replaces the subject's whole recovery set. Unused codes
// from the old set stop working immediately.
func (s *Usecase) RotateBackupCodes(ctx context.Context, in RotateBackupCodesInput) (*RotateBackupCodesOutput, error) {
	ctx, span := s.startSpan(ctx, "RotateBackupCodes")
	defer span.End()

	if err := s.requireHost(ctx); err != nil {
		return nil, err
	}

	in.Subject = normalizeSubject(in.Subject)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	codes, hashes, err := s.generateBackupSet(ctx, in.Subject)
	if err != nil {
		return nil, goerror.NewServer(err)
	}

	if err := s.repoVault.ReplaceBackupCodes(ctx, in.Subject, hashes); err != nil {
		slog.ErrorContext(ctx, "failed to replace backup codes", "subject", in.Subject, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &RotateBackupCodesOutput{Codes: codes}, nil
}
