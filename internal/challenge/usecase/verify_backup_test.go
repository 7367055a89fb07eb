package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
)

func backupInput(subject, code string) VerifyBackupCodeInput {
	return VerifyBackupCodeInput{
		Subject:        subject,
		Code:           code,
		Origin:         "login",
		UserAgent:      "Mozilla/5.0 test",
		IP:             "203.0.113.9",
		AcceptLanguage: "en-US,en;q=0.9",
	}
}

func TestVerifyBackupCodeSingleUse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out := h.issue(t, "alice@example.com")
	if len(out.BackupCodes) != 10 {
		t.Fatalf("minted %d backup codes, want 10", len(out.BackupCodes))
	}

	res, err := h.uc.VerifyBackupCode(ctx, backupInput("alice@example.com", out.BackupCodes[0]))
	if err != nil {
		t.Fatalf("VerifyBackupCode returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeVerified {
		t.Fatalf("Outcome = %v, want VERIFIED", res.Outcome)
	}
	if res.SessionSeed == "" {
		t.Error("SessionSeed empty on VERIFIED")
	}

	// the code burned on first use
	res, err = h.uc.VerifyBackupCode(ctx, backupInput("alice@example.com", out.BackupCodes[0]))
	if err != nil {
		t.Fatalf("VerifyBackupCode returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeInvalid {
		t.Errorf("replayed code Outcome = %v, want INVALID", res.Outcome)
	}
}

func TestVerifyBackupCodeCaseInsensitive(t *testing.T) {
	h := newHarness(t)

	out := h.issue(t, "alice@example.com")

	lower := strings.ToLower(out.BackupCodes[1])
	res, err := h.uc.VerifyBackupCode(context.Background(), backupInput("alice@example.com", lower))
	if err != nil {
		t.Fatalf("VerifyBackupCode returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeVerified {
		t.Errorf("Outcome = %v, want VERIFIED for lowercased code", res.Outcome)
	}
}

func TestVerifyBackupCodeMismatch(t *testing.T) {
	h := newHarness(t)

	h.issue(t, "alice@example.com")

	res, err := h.uc.VerifyBackupCode(context.Background(), backupInput("alice@example.com", "00000000"))
	if err != nil {
		t.Fatalf("VerifyBackupCode returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeInvalid {
		t.Errorf("Outcome = %v, want INVALID", res.Outcome)
	}
}

func TestVerifyBackupCodeLeavesChallengeLive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out := h.issue(t, "alice@example.com")

	res, err := h.uc.VerifyBackupCode(ctx, backupInput("alice@example.com", out.BackupCodes[0]))
	if err != nil {
		t.Fatalf("VerifyBackupCode returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeVerified {
		t.Fatalf("Outcome = %v, want VERIFIED", res.Outcome)
	}

	// redemption never needed the challenge, so the delivered code survives
	vres, err := h.uc.Verify(ctx, verifyInput("alice@example.com", out.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if vres.Outcome != entity.OutcomeVerified {
		t.Errorf("Outcome = %v, want VERIFIED after backup redemption", vres.Outcome)
	}
}

func TestVerifyBackupCodeWithoutChallenge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out := h.issue(t, "alice@example.com")
	if err := h.uc.Cancel(ctx, CancelInput{Subject: "alice@example.com"}); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}

	res, err := h.uc.VerifyBackupCode(ctx, backupInput("alice@example.com", out.BackupCodes[0]))
	if err != nil {
		t.Fatalf("VerifyBackupCode returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeVerified {
		t.Errorf("Outcome = %v, want VERIFIED with no live challenge", res.Outcome)
	}
}

func TestVerifyBackupCodeRejectsBadInput(t *testing.T) {
	h := newHarness(t)

	cases := []VerifyBackupCodeInput{
		{Subject: "alice@example.com", Code: "zzzzzzzz", Origin: "login"},
		{Subject: "alice@example.com", Code: "3F09A1", Origin: "login"},
		{Subject: "alice@example.com", Code: "3F09A1CC", Origin: ""},
	}
	for _, in := range cases {
		if _, err := h.uc.VerifyBackupCode(context.Background(), in); err == nil {
			t.Errorf("VerifyBackupCode(%+v) succeeded, want validation error", in)
		}
	}
}
