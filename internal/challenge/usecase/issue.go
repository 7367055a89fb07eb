package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/mfa"
	"github.com/shandysiswandi/otpgate/internal/pkg/storage"
)

type IssueInput struct {
	Subject string        `validate:"required,subject"`
	Method  entity.Method `validate:"required"`

	// Origin identifies the caller's network source, typically the remote
	// address. It feeds a second issue window so one source cannot pump
	// deliveries across many subjects.
	Origin string `validate:"required"`
}

type IssueOutput struct {
	Outcome           entity.Outcome
	ExpiresAt         time.Time
	AttemptsRemaining int
	RetryAfter        time.Duration

	// Code carries the raw code outside production so hosts can wire up
	// end-to-end tests without a delivery channel.
	Code string

	// TOTPURI and QRURL are set only for the totp method.
	TOTPURI string
	QRURL   string

	// BackupCodes is set only when this call minted the subject's first set.
	BackupCodes []string
}

func (s *Usecase) Issue(ctx context.Context, in IssueInput) (*IssueOutput, error) {
	ctx, span := s.startSpan(ctx, "Issue")
	defer span.End()

	in.Subject = normalizeSubject(in.Subject)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	rl, err := s.limiter.Check(ctx, "otp-issue:"+in.Subject,
		s.cfg.GetInt("modules.challenge.issue_limit"),
		s.cfg.GetMinute("modules.challenge.issue_window_minutes"))
	if err != nil {
		slog.ErrorContext(ctx, "failed to check issue rate window", "subject", in.Subject, "error", err)
		return nil, goerror.NewServer(err)
	}
	if !rl.Allowed {
		slog.WarnContext(ctx, "issue rate window full", "subject", in.Subject, "retry_after", rl.RetryAfter)
		return &IssueOutput{Outcome: entity.OutcomeRateLimited, RetryAfter: rl.RetryAfter}, nil
	}

	// The origin window caps how many deliveries one source can trigger
	// across all subjects, so rotating phone numbers buys nothing.
	orl, err := s.limiter.Check(ctx, "otp-issue:"+in.Origin,
		s.cfg.GetInt("modules.challenge.issue_origin_limit"),
		s.cfg.GetMinute("modules.challenge.issue_window_minutes"))
	if err != nil {
		slog.ErrorContext(ctx, "failed to check issue origin rate window", "origin", in.Origin, "error", err)
		return nil, goerror.NewServer(err)
	}
	if !orl.Allowed {
		slog.WarnContext(ctx, "issue origin rate window full", "origin", in.Origin, "retry_after", orl.RetryAfter)
		return &IssueOutput{Outcome: entity.OutcomeRateLimited, RetryAfter: orl.RetryAfter}, nil
	}

	now := s.clock.Now()
	ch := entity.Challenge{
		Subject:     in.Subject,
		Method:      in.Method,
		MaxAttempts: s.cfg.GetInt("modules.challenge.max_attempts"),
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.GetMinute("modules.challenge.ttl_minutes")),
	}

	out := &IssueOutput{
		ExpiresAt:         ch.ExpiresAt,
		AttemptsRemaining: ch.MaxAttempts,
	}

	var rawCode string
	if in.Method == entity.MethodTOTP {
		if err := s.prepareTOTP(ctx, &ch, out); err != nil {
			return nil, err
		}
	} else {
		rawCode, err = s.prepareCode(ctx, &ch)
		if err != nil {
			return nil, err
		}
	}

	// Any previous live challenge for this subject dies here, whatever its
	// method was.
	if err := s.repoChallenge.Upsert(ctx, ch); err != nil {
		slog.ErrorContext(ctx, "failed to store challenge", "subject", in.Subject, "error", err)
		return nil, goerror.NewServer(err)
	}

	out.BackupCodes = s.mintFirstBackupCodes(ctx, in.Subject)

	if in.Method.Delivered() {
		if err := s.repoMessaging.PublishDeliveryRequested(ctx, DeliveryRequestedEvent{
			Subject:   in.Subject,
			Method:    in.Method,
			Code:      rawCode,
			ExpiresAt: ch.ExpiresAt,
		}); err != nil {
			// The challenge stays live; the host cancels it when delivery
			// definitely failed.
			slog.ErrorContext(ctx, "failed to publish delivery request", "subject", in.Subject, "method", in.Method.String(), "error", err)
		}
	}

	if s.cfg.GetString("app.env") != "production" {
		out.Code = rawCode
	}

	return out, nil
}

func (s *Usecase) prepareCode(ctx context.Context, ch *entity.Challenge) (string, error) {
	code, err := s.codeGen.Generate(s.cfg.GetInt("modules.challenge.code_length"))
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate code", "subject", ch.Subject, "error", err)
		return "", goerror.NewServer(err)
	}

	hashed, err := s.codeHash.Hash(code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash code", "subject", ch.Subject, "error", err)
		return "", goerror.NewServer(err)
	}

	ch.CodeHash = string(hashed)

	return code, nil
}

func (s *Usecase) prepareTOTP(ctx context.Context, ch *entity.Challenge, out *IssueOutput) error {
	secret, uri, qr, err := s.totp.Generate(ch.Subject)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate totp secret", "subject", ch.Subject, "error", err)
		return goerror.NewServer(err)
	}

	sealed, err := s.mfaEncryptor.Encrypt([]byte(secret), mfa.Scope{
		Subject: ch.Subject,
		Purpose: mfa.PurposeOTPSeed,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to encrypt totp secret", "subject", ch.Subject, "error", err)
		return goerror.NewServer(err)
	}
	ch.TOTPSecret = sealed

	bucket := s.cfg.GetString("modules.challenge.qr_bucket")
	key := fmt.Sprintf("totp-qr/%s.png", s.oid.Generate())

	if _, err := s.storage.PutObject(ctx, bucket, key, bytes.NewReader(qr), storage.PutOptions{
		Size:        int64(len(qr)),
		ContentType: "image/png",
	}); err != nil {
		slog.ErrorContext(ctx, "failed to upload totp qr", "subject", ch.Subject, "key", key, "error", err)
		return goerror.NewServer(err)
	}

	qrURL, err := s.storage.PresignGet(ctx, bucket, key, s.cfg.GetMinute("modules.challenge.qr_url_ttl_minutes"))
	if err != nil {
		slog.ErrorContext(ctx, "failed to presign totp qr url", "subject", ch.Subject, "key", key, "error", err)
		return goerror.NewServer(err)
	}

	out.TOTPURI = uri
	out.QRURL = qrURL

	return nil
}

// mintFirstBackupCodes creates the subject's recovery set on first issuance.
// The idempotency tracker keeps concurrent first issues from minting twice.
// Failures here never fail the issue call.
func (s *Usecase) mintFirstBackupCodes(ctx context.Context, subject string) []string {
	has, err := s.repoVault.HasBackupCodes(ctx, subject)
	if err != nil {
		slog.ErrorContext(ctx, "failed to check backup code vault", "subject", subject, "error", err)
		return nil
	}
	if has {
		return nil
	}

	var minted []string
	err = s.idemp.Exec(ctx, "backup-mint:"+subject, func(ctx context.Context) error {
		codes, hashes, err := s.generateBackupSet(ctx, subject)
		if err != nil {
			return err
		}

		if err := s.repoVault.ReplaceBackupCodes(ctx, subject, hashes); err != nil {
			return err
		}

		minted = codes
		return nil
	})
	if errors.Is(err, idempotency.ErrAlreadyInProgress) || errors.Is(err, idempotency.ErrAlreadyCompleted) {
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to mint first backup codes", "subject", subject, "error", err)
		return nil
	}

	return minted
}

func (s *Usecase) generateBackupSet(ctx context.Context, subject string) ([]string, []string, error) {
	codes, err := s.backupGen.Generate()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate backup codes", "subject", subject, "error", err)
		return nil, nil, err
	}

	hashes := make([]string, 0, len(codes))
	for _, code := range codes {
		h, err := s.argon2id.Hash(code)
		if err != nil {
			slog.ErrorContext(ctx, "failed to hash backup code", "subject", subject, "error", err)
			return nil, nil, err
		}
		hashes = append(hashes, string(h))
	}

	return codes, hashes, nil
}
