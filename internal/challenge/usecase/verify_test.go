package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
)

func wrongCode(code string) string {
	if code == "000000" {
		return "000001"
	}
	return "000000"
}

func TestVerifyWrongCode(t *testing.T) {
	h := newHarness(t)

	out := h.issue(t, "alice@example.com")

	res, err := h.uc.Verify(context.Background(), verifyInput("alice@example.com", wrongCode(out.Code)))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if res.Outcome != entity.OutcomeInvalid {
		t.Fatalf("Outcome = %v, want INVALID", res.Outcome)
	}
	if res.AttemptsRemaining != 4 {
		t.Errorf("AttemptsRemaining = %d, want 4", res.AttemptsRemaining)
	}
	if res.SessionSeed != "" {
		t.Error("SessionSeed set on a failed verification")
	}
}

func TestVerifyCorrectCode(t *testing.T) {
	h := newHarness(t)

	out := h.issue(t, "alice@example.com")

	res, err := h.uc.Verify(context.Background(), verifyInput("alice@example.com", out.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if res.Outcome != entity.OutcomeVerified {
		t.Fatalf("Outcome = %v, want VERIFIED", res.Outcome)
	}
	if res.SessionSeed == "" {
		t.Error("SessionSeed empty on VERIFIED")
	}
	if !strings.Contains(res.SessionSeed, ".") {
		t.Errorf("SessionSeed %q carries no signature half", res.SessionSeed)
	}
	if res.DeviceKnown {
		t.Error("DeviceKnown true on the first verification from this device")
	}

	// the challenge is consumed, replay finds nothing
	res, err = h.uc.Verify(context.Background(), verifyInput("alice@example.com", out.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeNotFound {
		t.Errorf("replay Outcome = %v, want NOT_FOUND", res.Outcome)
	}
}

func TestVerifyNoChallenge(t *testing.T) {
	h := newHarness(t)

	res, err := h.uc.Verify(context.Background(), verifyInput("alice@example.com", "123456"))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeNotFound {
		t.Errorf("Outcome = %v, want NOT_FOUND", res.Outcome)
	}
}

func TestVerifyExpired(t *testing.T) {
	h := newHarness(t)

	out := h.issue(t, "alice@example.com")

	h.clk.now = h.clk.now.Add(5 * time.Minute)

	res, err := h.uc.Verify(context.Background(), verifyInput("alice@example.com", out.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeExpired {
		t.Fatalf("Outcome = %v, want EXPIRED", res.Outcome)
	}

	// the expired challenge was destroyed, the next call sees nothing
	res, err = h.uc.Verify(context.Background(), verifyInput("alice@example.com", out.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeNotFound {
		t.Errorf("Outcome after expiry = %v, want NOT_FOUND", res.Outcome)
	}
}

func TestVerifyExhaustionBurnsRightCode(t *testing.T) {
	h := newHarness(t)

	out := h.issue(t, "alice@example.com")
	bad := wrongCode(out.Code)

	for i := 0; i < 5; i++ {
		res, err := h.uc.Verify(context.Background(), verifyInput("alice@example.com", bad))
		if err != nil {
			t.Fatalf("Verify returned error: %v", err)
		}
		if res.Outcome != entity.OutcomeInvalid {
			t.Fatalf("attempt %d Outcome = %v, want INVALID", i+1, res.Outcome)
		}
		if res.AttemptsRemaining != 5-(i+1) {
			t.Errorf("attempt %d AttemptsRemaining = %d, want %d", i+1, res.AttemptsRemaining, 5-(i+1))
		}
	}

	// the budget is spent, even the right code fails now
	res, err := h.uc.Verify(context.Background(), verifyInput("alice@example.com", out.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeExhausted {
		t.Fatalf("Outcome = %v, want EXHAUSTED", res.Outcome)
	}

	res, err = h.uc.Verify(context.Background(), verifyInput("alice@example.com", out.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeNotFound {
		t.Errorf("Outcome after exhaustion = %v, want NOT_FOUND", res.Outcome)
	}
}

func TestVerifyDeviceKnownOnReturn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.issue(t, "alice@example.com")
	res, err := h.uc.Verify(ctx, verifyInput("alice@example.com", first.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeVerified {
		t.Fatalf("Outcome = %v, want VERIFIED", res.Outcome)
	}

	second := h.issue(t, "alice@example.com")
	res, err = h.uc.Verify(ctx, verifyInput("alice@example.com", second.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeVerified {
		t.Fatalf("Outcome = %v, want VERIFIED", res.Outcome)
	}
	if !res.DeviceKnown {
		t.Error("DeviceKnown false on a device that verified before")
	}
}

func TestVerifyDeviceTrustSlidesOnReturn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out := h.issue(t, "alice@example.com")
	res, err := h.uc.Verify(ctx, verifyInput("alice@example.com", out.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeVerified {
		t.Fatalf("Outcome = %v, want VERIFIED", res.Outcome)
	}

	// a return visit inside the horizon slides the trust window forward
	h.clk.now = h.clk.now.Add(29 * 24 * time.Hour)
	res, err = h.uc.Verify(ctx, verifyInput("alice@example.com", "123456"))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeNotFound {
		t.Fatalf("Outcome = %v, want NOT_FOUND without a live challenge", res.Outcome)
	}
	if !res.DeviceKnown {
		t.Fatal("DeviceKnown false inside the trust horizon")
	}

	// 31 days after the first visit but only 2 after the last one
	h.clk.now = h.clk.now.Add(2 * 24 * time.Hour)
	res, err = h.uc.Verify(ctx, verifyInput("alice@example.com", "123456"))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !res.DeviceKnown {
		t.Error("DeviceKnown false, the return visit did not refresh the device")
	}
}

func TestVerifySuccessResetsIssueWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var out *IssueOutput
	for i := 0; i < 3; i++ {
		out = h.issue(t, "alice@example.com")
	}

	res, err := h.uc.Verify(ctx, verifyInput("alice@example.com", out.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeVerified {
		t.Fatalf("Outcome = %v, want VERIFIED", res.Outcome)
	}

	// the verification freed the subject's issue window
	next, err := h.uc.Issue(ctx, IssueInput{Subject: "alice@example.com", Method: entity.MethodSMS, Origin: "login"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if next.Outcome == entity.OutcomeRateLimited {
		t.Fatal("Outcome = RATE_LIMITED, pre-success issues still count against the window")
	}
	if next.Code == "" {
		t.Error("Issue after verification returned no code")
	}
}

func TestVerifyRateLimitedPerOrigin(t *testing.T) {
	cfg := strings.Replace(defaultTestConfig, "verify_limit: 100", "verify_limit: 2", 1)
	h := newHarnessWithConfig(t, cfg)

	h.issue(t, "alice@example.com")

	for i := 0; i < 2; i++ {
		res, err := h.uc.Verify(context.Background(), verifyInput("alice@example.com", "000000"))
		if err != nil {
			t.Fatalf("Verify returned error: %v", err)
		}
		if res.Outcome == entity.OutcomeRateLimited {
			t.Fatalf("call %d rate limited too early", i+1)
		}
	}

	res, err := h.uc.Verify(context.Background(), verifyInput("alice@example.com", "000000"))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeRateLimited {
		t.Fatalf("Outcome = %v, want RATE_LIMITED", res.Outcome)
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", res.RetryAfter)
	}
}

func TestVerifyBlockedAfterRepeatedFailures(t *testing.T) {
	cfg := strings.Replace(defaultTestConfig, "fraud_threshold: 100", "fraud_threshold: 2", 1)
	h := newHarnessWithConfig(t, cfg)

	out := h.issue(t, "alice@example.com")
	bad := wrongCode(out.Code)

	for i := 0; i < 2; i++ {
		res, err := h.uc.Verify(context.Background(), verifyInput("alice@example.com", bad))
		if err != nil {
			t.Fatalf("Verify returned error: %v", err)
		}
		if res.Outcome != entity.OutcomeInvalid {
			t.Fatalf("attempt %d Outcome = %v, want INVALID", i+1, res.Outcome)
		}
	}

	res, err := h.uc.Verify(context.Background(), verifyInput("alice@example.com", out.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeBlocked {
		t.Fatalf("Outcome = %v, want BLOCKED", res.Outcome)
	}
	// a blocked caller must not learn when the block lifts
	if res.RetryAfter != 0 {
		t.Errorf("RetryAfter = %v, want 0 on BLOCKED", res.RetryAfter)
	}

	// past the block window the guard clears itself and the code still works
	h.clk.now = h.clk.now.Add(31 * time.Minute)
	res, err = h.uc.Verify(context.Background(), verifyInput("alice@example.com", out.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeExpired {
		// the challenge itself expired during the block, which is the
		// correct terminal state here
		t.Errorf("Outcome after block elapsed = %v, want EXPIRED", res.Outcome)
	}
}

func TestVerifySuccessClearsFraud(t *testing.T) {
	cfg := strings.Replace(defaultTestConfig, "fraud_threshold: 100", "fraud_threshold: 3", 1)
	h := newHarnessWithConfig(t, cfg)
	ctx := context.Background()

	out := h.issue(t, "alice@example.com")
	bad := wrongCode(out.Code)

	for i := 0; i < 2; i++ {
		if _, err := h.uc.Verify(ctx, verifyInput("alice@example.com", bad)); err != nil {
			t.Fatalf("Verify returned error: %v", err)
		}
	}

	res, err := h.uc.Verify(ctx, verifyInput("alice@example.com", out.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeVerified {
		t.Fatalf("Outcome = %v, want VERIFIED", res.Outcome)
	}

	// the failure tally restarted, two more misses do not trip the guard
	next := h.issue(t, "alice@example.com")
	for i := 0; i < 2; i++ {
		res, err := h.uc.Verify(ctx, verifyInput("alice@example.com", wrongCode(next.Code)))
		if err != nil {
			t.Fatalf("Verify returned error: %v", err)
		}
		if res.Outcome != entity.OutcomeInvalid {
			t.Fatalf("Outcome = %v, want INVALID", res.Outcome)
		}
	}
}

func TestVerifyRejectsBadInput(t *testing.T) {
	h := newHarness(t)

	cases := []VerifyInput{
		{Subject: "", Code: "123456", Origin: "login"},
		{Subject: "alice@example.com", Code: "", Origin: "login"},
		{Subject: "alice@example.com", Code: "abc", Origin: "login"},
		{Subject: "alice@example.com", Code: "123456", Origin: ""},
	}
	for _, in := range cases {
		if _, err := h.uc.Verify(context.Background(), in); err == nil {
			t.Errorf("Verify(%+v) succeeded, want validation error", in)
		}
	}
}
