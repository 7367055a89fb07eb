package usecase

import (
	"context"
	"testing"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
)

func hostCtx() context.Context {
	return jwt.SetAuth(context.Background(), jwt.Claims{})
}

func TestTrustedDevicesRequiresAuth(t *testing.T) {
	h := newHarness(t)

	if _, err := h.uc.TrustedDevices(context.Background(), TrustedDevicesInput{Subject: "alice@example.com"}); err == nil {
		t.Error("TrustedDevices without auth succeeded, want error")
	}
	if err := h.uc.RevokeDevices(context.Background(), RevokeDevicesInput{Subject: "alice@example.com"}); err == nil {
		t.Error("RevokeDevices without auth succeeded, want error")
	}
	if _, err := h.uc.RotateBackupCodes(context.Background(), RotateBackupCodesInput{Subject: "alice@example.com"}); err == nil {
		t.Error("RotateBackupCodes without auth succeeded, want error")
	}
}

func TestTrustedDevicesListsVerifiedDevice(t *testing.T) {
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

	devs, err := h.uc.TrustedDevices(hostCtx(), TrustedDevicesInput{Subject: "alice@example.com"})
	if err != nil {
		t.Fatalf("TrustedDevices returned error: %v", err)
	}

	if len(devs.Devices) != 1 {
		t.Fatalf("got %d devices, want 1", len(devs.Devices))
	}
	if !devs.Devices[0].Active {
		t.Error("freshly verified device listed as inactive")
	}
	if devs.Devices[0].Fingerprint == "" {
		t.Error("device listed without a fingerprint")
	}
}

func TestRevokeDevices(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out := h.issue(t, "alice@example.com")
	if _, err := h.uc.Verify(ctx, verifyInput("alice@example.com", out.Code)); err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if err := h.uc.RevokeDevices(hostCtx(), RevokeDevicesInput{Subject: "alice@example.com"}); err != nil {
		t.Fatalf("RevokeDevices returned error: %v", err)
	}

	devs, err := h.uc.TrustedDevices(hostCtx(), TrustedDevicesInput{Subject: "alice@example.com"})
	if err != nil {
		t.Fatalf("TrustedDevices returned error: %v", err)
	}
	if len(devs.Devices) != 0 {
		t.Errorf("got %d devices after revoke, want 0", len(devs.Devices))
	}

	// the next verification treats the device as new again
	next := h.issue(t, "alice@example.com")
	res, err := h.uc.Verify(ctx, verifyInput("alice@example.com", next.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.DeviceKnown {
		t.Error("DeviceKnown true after all devices were revoked")
	}
}

func TestRotateBackupCodes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.issue(t, "alice@example.com")
	if len(first.BackupCodes) != 10 {
		t.Fatalf("minted %d backup codes, want 10", len(first.BackupCodes))
	}

	rotated, err := h.uc.RotateBackupCodes(hostCtx(), RotateBackupCodesInput{Subject: "alice@example.com"})
	if err != nil {
		t.Fatalf("RotateBackupCodes returned error: %v", err)
	}
	if len(rotated.Codes) != 10 {
		t.Fatalf("rotation returned %d codes, want 10", len(rotated.Codes))
	}

	// a code from the old set no longer redeems
	res, err := h.uc.VerifyBackupCode(ctx, backupInput("alice@example.com", first.BackupCodes[0]))
	if err != nil {
		t.Fatalf("VerifyBackupCode returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeInvalid {
		t.Errorf("old code Outcome = %v, want INVALID", res.Outcome)
	}

	// a code from the new set does
	h.issue(t, "alice@example.com")
	res, err = h.uc.VerifyBackupCode(ctx, backupInput("alice@example.com", rotated.Codes[0]))
	if err != nil {
		t.Fatalf("VerifyBackupCode returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeVerified {
		t.Errorf("new code Outcome = %v, want VERIFIED", res.Outcome)
	}
}
