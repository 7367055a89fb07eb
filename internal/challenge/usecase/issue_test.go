package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/mfa"
)

func TestIssueDeliveredMethod(t *testing.T) {
	h := newHarness(t)

	out := h.issue(t, "alice@example.com")

	if len(out.Code) != 6 {
		t.Errorf("code %q has length %d, want 6", out.Code, len(out.Code))
	}
	if want := h.clk.now.Add(5 * time.Minute); !out.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", out.ExpiresAt, want)
	}
	if out.AttemptsRemaining != 5 {
		t.Errorf("AttemptsRemaining = %d, want 5", out.AttemptsRemaining)
	}

	if len(h.messaging.events) != 1 {
		t.Fatalf("published %d delivery events, want 1", len(h.messaging.events))
	}
	ev := h.messaging.events[0]
	if ev.Subject != "alice@example.com" || ev.Method != entity.MethodSMS || ev.Code != out.Code {
		t.Errorf("delivery event = %+v, want the issued subject, method and code", ev)
	}
}

func TestIssueNormalizesSubject(t *testing.T) {
	h := newHarness(t)

	out, err := h.uc.Issue(context.Background(), IssueInput{Subject: "  Alice@Example.COM ", Method: entity.MethodEmail, Origin: "login"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	res, err := h.uc.Verify(context.Background(), verifyInput("alice@example.com", out.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeVerified {
		t.Errorf("Outcome = %v, want VERIFIED after normalized issue", res.Outcome)
	}
}

func TestIssueRejectsBadInput(t *testing.T) {
	h := newHarness(t)

	cases := []IssueInput{
		{Subject: "", Method: entity.MethodSMS, Origin: "login"},
		{Subject: "not a subject", Method: entity.MethodSMS, Origin: "login"},
		{Subject: "alice@example.com", Method: entity.MethodUnknown, Origin: "login"},
		{Subject: "alice@example.com", Method: entity.MethodSMS, Origin: ""},
	}
	for _, in := range cases {
		if _, err := h.uc.Issue(context.Background(), in); err == nil {
			t.Errorf("Issue(%+v) succeeded, want validation error", in)
		}
	}
}

func TestIssueRateLimited(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 3; i++ {
		h.issue(t, "alice@example.com")
	}

	out, err := h.uc.Issue(context.Background(), IssueInput{Subject: "alice@example.com", Method: entity.MethodSMS, Origin: "login"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if out.Outcome != entity.OutcomeRateLimited {
		t.Fatalf("Outcome = %v, want RATE_LIMITED", out.Outcome)
	}
	if out.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", out.RetryAfter)
	}
}

func TestIssueRateLimitedPerOrigin(t *testing.T) {
	cfg := strings.Replace(defaultTestConfig, "issue_origin_limit: 10", "issue_origin_limit: 2", 1)
	h := newHarnessWithConfig(t, cfg)

	// distinct subjects do not help, the source itself is capped
	h.issue(t, "alice@example.com")
	h.issue(t, "bob@example.com")

	out, err := h.uc.Issue(context.Background(), IssueInput{Subject: "carol@example.com", Method: entity.MethodSMS, Origin: "login"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if out.Outcome != entity.OutcomeRateLimited {
		t.Fatalf("Outcome = %v, want RATE_LIMITED", out.Outcome)
	}
	if out.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", out.RetryAfter)
	}

	// a different source is unaffected
	res, err := h.uc.Issue(context.Background(), IssueInput{Subject: "dave@example.com", Method: entity.MethodSMS, Origin: "signup"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if res.Outcome == entity.OutcomeRateLimited {
		t.Error("Outcome = RATE_LIMITED for an untouched origin")
	}
}

func TestIssueSupersedesPreviousChallenge(t *testing.T) {
	h := newHarness(t)

	first := h.issue(t, "alice@example.com")
	second := h.issue(t, "alice@example.com")

	res, err := h.uc.Verify(context.Background(), verifyInput("alice@example.com", first.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeInvalid {
		t.Fatalf("Outcome for superseded code = %v, want INVALID", res.Outcome)
	}

	res, err = h.uc.Verify(context.Background(), verifyInput("alice@example.com", second.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeVerified {
		t.Errorf("Outcome for current code = %v, want VERIFIED", res.Outcome)
	}
}

func TestIssueMintsBackupCodesOnce(t *testing.T) {
	h := newHarness(t)

	first := h.issue(t, "alice@example.com")
	if len(first.BackupCodes) != 10 {
		t.Fatalf("first issue minted %d backup codes, want 10", len(first.BackupCodes))
	}

	second := h.issue(t, "alice@example.com")
	if len(second.BackupCodes) != 0 {
		t.Errorf("second issue minted %d backup codes, want none", len(second.BackupCodes))
	}
}

func TestIssueTOTP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.uc.Issue(ctx, IssueInput{Subject: "alice@example.com", Method: entity.MethodTOTP, Origin: "login"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if out.Code != "" {
		t.Error("totp issuance returned a raw code, nothing should be delivered")
	}
	if out.TOTPURI == "" {
		t.Error("TOTPURI is empty")
	}
	if out.QRURL == "" {
		t.Error("QRURL is empty")
	}
	if len(h.messaging.events) != 0 {
		t.Errorf("published %d delivery events for totp, want 0", len(h.messaging.events))
	}

	// the stored secret round-trips through the encryptor and verifies
	ch, err := h.store.Get(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("challenge not stored: %v", err)
	}
	secret, err := h.encryptor.Decrypt(ch.TOTPSecret, mfa.Scope{Subject: "alice@example.com", Purpose: mfa.PurposeOTPSeed})
	if err != nil {
		t.Fatalf("failed to decrypt stored totp secret: %v", err)
	}

	code, err := h.totp.GenerateCode(string(secret), h.clk.now)
	if err != nil {
		t.Fatalf("GenerateCode returned error: %v", err)
	}

	res, err := h.uc.Verify(ctx, verifyInput("alice@example.com", code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeVerified {
		t.Errorf("Outcome = %v, want VERIFIED with authenticator code", res.Outcome)
	}
}

func TestIssueSurvivesDeliveryFailure(t *testing.T) {
	h := newHarness(t)
	h.messaging.err = context.DeadlineExceeded

	out := h.issue(t, "alice@example.com")

	// the challenge stays live even though nothing was delivered
	res, err := h.uc.Verify(context.Background(), verifyInput("alice@example.com", out.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeVerified {
		t.Errorf("Outcome = %v, want VERIFIED", res.Outcome)
	}
}
