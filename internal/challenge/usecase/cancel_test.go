package usecase

import (
	"context"
	"testing"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
)

func TestCancelLiveChallenge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out := h.issue(t, "alice@example.com")

	if err := h.uc.Cancel(ctx, CancelInput{Subject: "alice@example.com"}); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}

	res, err := h.uc.Verify(ctx, verifyInput("alice@example.com", out.Code))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if res.Outcome != entity.OutcomeNotFound {
		t.Errorf("Outcome after cancel = %v, want NOT_FOUND", res.Outcome)
	}
}

func TestCancelWithoutChallenge(t *testing.T) {
	h := newHarness(t)

	if err := h.uc.Cancel(context.Background(), CancelInput{Subject: "alice@example.com"}); err == nil {
		t.Error("Cancel without a live challenge succeeded, want error")
	}
}

func TestCancelRejectsBadSubject(t *testing.T) {
	h := newHarness(t)

	if err := h.uc.Cancel(context.Background(), CancelInput{Subject: "not a subject"}); err == nil {
		t.Error("Cancel with malformed subject succeeded, want validation error")
	}
}
