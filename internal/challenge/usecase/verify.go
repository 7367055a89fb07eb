package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/mfa"
)

type VerifyInput struct {
	Subject string `validate:"required,subject"`
	Code    string `validate:"required,otpcode"`
	Origin  string `validate:"required"`

	// Forwarded client signals, used only to derive the device fingerprint.
	UserAgent      string
	IP             string
	AcceptLanguage string
}

type VerifyOutput struct {
	Outcome           entity.Outcome
	AttemptsRemaining int
	RetryAfter        time.Duration

	// SessionSeed is an opaque one-shot token the host exchanges for a real
	// session. Set only on OutcomeVerified.
	SessionSeed string

	// DeviceKnown reports whether the device was already trusted before this
	// call. Hosts may use it to relax future challenges.
	DeviceKnown bool
}

func (s *Usecase) Verify(ctx context.Context, in VerifyInput) (*VerifyOutput, error) {
	ctx, span := s.startSpan(ctx, "Verify")
	defer span.End()

	in.Subject = normalizeSubject(in.Subject)

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

	ch, out, err := s.loadLiveChallenge(ctx, in.Subject, now)
	if err != nil {
		return nil, err
	}
	if out != nil {
		out.DeviceKnown = known
		return out, nil
	}

	// Count the attempt before looking at the code. A crash between here and
	// the comparison burns the attempt rather than granting a free retry.
	ch, err = s.repoChallenge.RecordAttempt(ctx, in.Subject, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to record attempt", "subject", in.Subject, "error", err)
		return nil, goerror.NewServer(err)
	}

	if ch.Overrun() {
		s.destroyChallenge(ctx, in.Subject)
		slog.WarnContext(ctx, "challenge attempts exhausted", "subject", in.Subject)
		return &VerifyOutput{Outcome: entity.OutcomeExhausted, DeviceKnown: known}, nil
	}

	match, err := s.compareCode(ctx, ch, in.Code, now)
	if err != nil {
		return nil, err
	}

	if !match {
		s.recordFailure(ctx, key, now)
		slog.WarnContext(ctx, "challenge code mismatch", "subject", in.Subject, "remaining", ch.Remaining())
		return &VerifyOutput{
			Outcome:           entity.OutcomeInvalid,
			AttemptsRemaining: ch.Remaining(),
			DeviceKnown:       known,
		}, nil
	}

	return s.finishVerified(ctx, in.Subject, key, fp, now, known)
}

// guardVerify applies the fraud block and the per-origin rate window. It
// returns a terminal output when the call must not reach the challenge.
func (s *Usecase) guardVerify(ctx context.Context, key entity.FraudKey, now time.Time) *VerifyOutput {
	rec, err := s.repoFraud.GetFraud(ctx, key, now)
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		// Fail open: a broken guard store must not lock every caller out.
		slog.ErrorContext(ctx, "failed to read fraud record", "fingerprint", key.Fingerprint, "error", err)
	}
	if rec != nil && rec.BlockedAt(now) {
		// No retry-after here: telling a blocked caller when the block lifts
		// hands an attacker the exact moment to resume.
		slog.WarnContext(ctx, "caller blocked by fraud guard", "fingerprint", key.Fingerprint, "blocked_until", rec.BlockedUntil)
		return &VerifyOutput{Outcome: entity.OutcomeBlocked}
	}

	rl, err := s.limiter.Check(ctx, "otp-verify:"+key.Origin,
		s.cfg.GetInt("modules.challenge.verify_limit"),
		s.cfg.GetMinute("modules.challenge.verify_window_minutes"))
	if err != nil {
		slog.ErrorContext(ctx, "failed to check verify rate window", "origin", key.Origin, "error", err)
		return nil
	}
	if !rl.Allowed {
		slog.WarnContext(ctx, "verify rate window full", "origin", key.Origin, "retry_after", rl.RetryAfter)
		return &VerifyOutput{Outcome: entity.OutcomeRateLimited, RetryAfter: rl.RetryAfter}
	}

	return nil
}

func (s *Usecase) deviceKnown(ctx context.Context, subject, fp string, now time.Time) bool {
	dev, err := s.repoDevice.GetDevice(ctx, subject, fp)
	if errors.Is(err, goerror.ErrNotFound) {
		return false
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to read trusted device", "subject", subject, "fingerprint", fp, "error", err)
		return false
	}

	if !dev.ActiveAt(now, s.cfg.GetDay("modules.challenge.device_trust_horizon_days")) {
		return false
	}

	// An active device seen again slides its trust horizon forward.
	if err := s.repoDevice.SaveDevice(ctx, entity.TrustedDevice{
		Subject:     subject,
		Fingerprint: fp,
		FirstSeen:   dev.FirstSeen,
		LastSeen:    now,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to refresh trusted device", "subject", subject, "fingerprint", fp, "error", err)
	}

	return true
}

// loadLiveChallenge fetches the challenge and applies lazy expiry. The second
// return value is a terminal output when no live challenge remains.
func (s *Usecase) loadLiveChallenge(ctx context.Context, subject string, now time.Time) (*entity.Challenge, *VerifyOutput, error) {
	ch, err := s.repoChallenge.Get(ctx, subject)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "no live challenge", "subject", subject)
		return nil, &VerifyOutput{Outcome: entity.OutcomeNotFound}, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to load challenge", "subject", subject, "error", err)
		return nil, nil, goerror.NewServer(err)
	}

	if ch.ExpiredAt(now) {
		s.destroyChallenge(ctx, subject)
		slog.WarnContext(ctx, "challenge expired", "subject", subject, "expired_at", ch.ExpiresAt)
		return nil, &VerifyOutput{Outcome: entity.OutcomeExpired}, nil
	}

	return ch, nil, nil
}

func (s *Usecase) compareCode(ctx context.Context, ch *entity.Challenge, code string, now time.Time) (bool, error) {
	if ch.Method != entity.MethodTOTP {
		return s.codeHash.Verify(ch.CodeHash, code), nil
	}

	secret, err := s.mfaEncryptor.Decrypt(ch.TOTPSecret, mfa.Scope{
		Subject: ch.Subject,
		Purpose: mfa.PurposeOTPSeed,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to decrypt totp secret", "subject", ch.Subject, "error", err)
		return false, goerror.NewServer(err)
	}

	return s.totp.Validate(code, string(secret), now), nil
}

func (s *Usecase) recordFailure(ctx context.Context, key entity.FraudKey, now time.Time) {
	_, err := s.repoFraud.RecordFailure(ctx, key, now,
		s.cfg.GetInt("modules.challenge.fraud_threshold"),
		s.cfg.GetMinute("modules.challenge.fraud_block_minutes"))
	if err != nil {
		slog.ErrorContext(ctx, "failed to record fraud failure", "fingerprint", key.Fingerprint, "error", err)
	}
}

// finishVerified consumes the challenge and grants the verified outcome. The
// backup-code path grants without consuming, since redemption never needed a
// live challenge in the first place.
func (s *Usecase) finishVerified(ctx context.Context, subject string, key entity.FraudKey, fp string, now time.Time, known bool) (*VerifyOutput, error) {
	s.destroyChallenge(ctx, subject)

	return s.grantVerified(ctx, subject, key, fp, now, known)
}

func (s *Usecase) grantVerified(ctx context.Context, subject string, key entity.FraudKey, fp string, now time.Time, known bool) (*VerifyOutput, error) {
	if err := s.repoFraud.ClearFraud(ctx, key); err != nil {
		slog.ErrorContext(ctx, "failed to clear fraud record", "fingerprint", key.Fingerprint, "error", err)
	}

	// A legitimate verification frees the subject's issue window so the next
	// enrollment is not taxed by the attempts that led here.
	if err := s.limiter.Reset(ctx, "otp-issue:"+subject); err != nil {
		slog.ErrorContext(ctx, "failed to reset issue rate window", "subject", subject, "error", err)
	}

	if err := s.repoDevice.SaveDevice(ctx, entity.TrustedDevice{
		Subject:     subject,
		Fingerprint: fp,
		FirstSeen:   now,
		LastSeen:    now,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to save trusted device", "subject", subject, "fingerprint", fp, "error", err)
	}

	return &VerifyOutput{
		Outcome:     entity.OutcomeVerified,
		SessionSeed: s.mintSeed(ctx, subject),
		DeviceKnown: known,
	}, nil
}

// mintSeed builds the one-shot token returned on success. The MAC half lets
// the host check the seed was minted here before exchanging it.
func (s *Usecase) mintSeed(ctx context.Context, subject string) string {
	id := s.oid.Generate()

	mac, err := s.seedSigner.Hash(id + "|" + subject)
	if err != nil {
		slog.ErrorContext(ctx, "failed to sign session seed", "subject", subject, "error", err)
		return id
	}

	return id + "." + string(mac)
}

func (s *Usecase) destroyChallenge(ctx context.Context, subject string) {
	if err := s.repoChallenge.Delete(ctx, subject); err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to delete challenge", "subject", subject, "error", err)
	}
}
