package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type VerifyBackupCodeInput struct {
	Subject string `validate:"required,subject"`
	Code    string `validate:"required,len=8,hexadecimal"`
	Origin  string `validate:"required"`

	UserAgent      string
	IP             string
	AcceptLanguage string
}

// VerifyBackupCode redeems one recovery code in place of a delivered OTP.
// Codes match case-insensitively and burn on first use.
func (s *Usecase) VerifyBackupCode(ctx context.Context, in VerifyBackupCodeInput) (*VerifyOutput, error) {
	ctx, span := s.startSpan(ctx, "VerifyBackupCode")
	defer span.End()

	in.Subject = normalizeSubject(in.Subject)
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	now := s.clock.Now()
	fp := s.fingerprint(in.UserAgent, in.IP, in.AcceptLanguage)
	key := entity.FraudKey{Subject: in.Subject, Origin: in.Origin, Fingerprint: fp}

	if out := s.guardVerify(ctx, key, now); out != nil {
		return out, nil
	}

	known := s.deviceKnown(ctx, in.Subject, fp, now)

	codes, err := s.repoVault.ListBackupCodes(ctx, in.Subject)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list backup codes", "subject", in.Subject, "error", err)
		return nil, goerror.NewServer(err)
	}

	var matched *entity.BackupCode
	for i := range codes {
		if !codes[i].Used && s.argon2id.Verify(codes[i].Hash, in.Code) {
			matched = &codes[i]
			break
		}
	}

	if matched == nil {
		s.recordFailure(ctx, key, now)
		slog.WarnContext(ctx, "backup code mismatch", "subject", in.Subject)
		return &VerifyOutput{Outcome: entity.OutcomeInvalid, DeviceKnown: known}, nil
	}

	spent, err := s.repoVault.MarkBackupCodeUsed(ctx, matched.ID, in.Subject)
	if err != nil {
		slog.ErrorContext(ctx, "failed to redeem backup code", "subject", in.Subject, "error", err)
		return nil, goerror.NewServer(err)
	}
	if !spent {
		// A concurrent caller won the race for the same code.
		s.recordFailure(ctx, key, now)
		slog.WarnContext(ctx, "backup code already redeemed", "subject", in.Subject)
		return &VerifyOutput{Outcome: entity.OutcomeInvalid, DeviceKnown: known}, nil
	}

	// Redemption stands on its own: a pending delivered challenge, if any,
	// stays live and keeps its own expiry.
	return s.grantVerified(ctx, in.Subject, key, fp, now, known)
}
