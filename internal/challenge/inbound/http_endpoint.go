package inbound

import (
	"time"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
	"github.com/shandysiswandi/otpgate/internal/challenge/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

// HTTPEndpoint exposes HTTP handlers for the OTP challenge workflows.
type HTTPEndpoint struct {
	uc uc
}

// Issue creates or replaces the challenge for a subject.
// @Summary Issue a challenge
// @Description Generates a one-time code (or TOTP enrollment) for the subject, superseding any live challenge.
// @Tags Challenge
// @Accept json
// @Produce json
// @Param request body IssueRequest true "Issue payload"
// @Success 200 {object} router.successResponse{data=IssueResponse} "Issue result"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/challenge/issue [post]
func (h *HTTPEndpoint) Issue(r *router.Request) (any, error) {
	var req IssueRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Issue(r.Context(), usecase.IssueInput{
		Subject: req.Subject,
		Method:  entity.MethodFromString(req.Method),
		Origin:  r.RemoteAddr,
	})
	if err != nil {
		return nil, err
	}

	out := IssueResponse{
		AttemptsRemaining: resp.AttemptsRemaining,
		Code:              resp.Code,
		TOTPURI:           resp.TOTPURI,
		QRURL:             resp.QRURL,
		BackupCodes:       resp.BackupCodes,
	}

	if resp.Outcome == entity.OutcomeRateLimited {
		out.Outcome = resp.Outcome.String()
		out.RetryAfterSeconds = retryAfterSeconds(resp.RetryAfter)
		return out, nil
	}

	if !resp.ExpiresAt.IsZero() {
		out.ExpiresAt = &resp.ExpiresAt
	}

	return out, nil
}

// Verify checks a code against the live challenge for a subject.
// @Summary Verify a challenge code
// @Description Compares the submitted code against the live challenge and returns a terminal outcome.
// @Tags Challenge
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "Verify payload"
// @Success 200 {object} router.successResponse{data=VerifyResponse} "Verification outcome"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/challenge/verify [post]
func (h *HTTPEndpoint) Verify(r *router.Request) (any, error) {
	var req VerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Verify(r.Context(), usecase.VerifyInput{
		Subject:        req.Subject,
		Code:           req.Code,
		Origin:         req.Origin,
		UserAgent:      r.UserAgent(),
		IP:             r.RemoteAddr,
		AcceptLanguage: r.Header.Get("Accept-Language"),
	})
	if err != nil {
		return nil, err
	}

	return verifyResponse(resp), nil
}

// VerifyBackupCode redeems a single-use recovery code.
// @Summary Verify a backup code
// @Description Redeems one recovery code in place of a delivered OTP. Codes match case-insensitively and burn on first use.
// @Tags Challenge
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "Verify payload"
// @Success 200 {object} router.successResponse{data=VerifyResponse} "Verification outcome"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/challenge/verify/backup-code [post]
func (h *HTTPEndpoint) VerifyBackupCode(r *router.Request) (any, error) {
	var req VerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.VerifyBackupCode(r.Context(), usecase.VerifyBackupCodeInput{
		Subject:        req.Subject,
		Code:           req.Code,
		Origin:         req.Origin,
		UserAgent:      r.UserAgent(),
		IP:             r.RemoteAddr,
		AcceptLanguage: r.Header.Get("Accept-Language"),
	})
	if err != nil {
		return nil, err
	}

	return verifyResponse(resp), nil
}

// Cancel destroys the live challenge for a subject.
// @Summary Cancel a challenge
// @Description Destroys the live challenge, typically after a failed delivery, so the subject can re-issue immediately.
// @Tags Challenge
// @Accept json
// @Produce json
// @Param request body CancelRequest true "Cancel payload"
// @Success 200 {object} router.successResponse "Cancel result"
// @Failure 404 {object} router.errorResponse "No live challenge"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/challenge/cancel [post]
func (h *HTTPEndpoint) Cancel(r *router.Request) (any, error) {
	var req CancelRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.Cancel(r.Context(), usecase.CancelInput{Subject: req.Subject}); err != nil {
		return nil, err
	}

	return CancelResponse{}, nil
}

// TrustedDevices lists trusted device digests for a subject.
// @Summary List trusted devices
// @Description Returns the fingerprint digests trusted for a subject. Raw device signals are never stored.
// @Tags Challenge, Management
// @Produce json
// @Param subject query string true "Subject"
// @Success 200 {object} router.successResponse{data=TrustedDevicesResponse} "Trusted devices"
// @Failure 401 {object} router.errorResponse "Authentication required"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/challenge/devices [get]
func (h *HTTPEndpoint) TrustedDevices(r *router.Request) (any, error) {
	resp, err := h.uc.TrustedDevices(r.Context(), usecase.TrustedDevicesInput{
		Subject: r.GetQuery("subject"),
	})
	if err != nil {
		return nil, err
	}

	items := make([]TrustedDeviceItem, 0, len(resp.Devices))
	for _, d := range resp.Devices {
		items = append(items, TrustedDeviceItem{
			Fingerprint: d.Fingerprint,
			FirstSeen:   d.FirstSeen,
			LastSeen:    d.LastSeen,
			Active:      d.Active,
		})
	}

	return TrustedDevicesResponse{Devices: items}, nil
}

// RevokeDevices drops all trusted devices for a subject.
// @Summary Revoke all trusted devices
// @Description Removes every trusted device for the subject, forcing full challenges everywhere.
// @Tags Challenge, Management
// @Accept json
// @Produce json
// @Param request body RevokeDevicesRequest true "Revoke payload"
// @Success 200 {object} router.successResponse "Revoke result"
// @Failure 401 {object} router.errorResponse "Authentication required"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/challenge/devices/revoke-all [post]
func (h *HTTPEndpoint) RevokeDevices(r *router.Request) (any, error) {
	var req RevokeDevicesRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.RevokeDevices(r.Context(), usecase.RevokeDevicesInput{Subject: req.Subject}); err != nil {
		return nil, err
	}

	return RevokeDevicesResponse{}, nil
}

// RotateBackupCodes regenerates the recovery set for a subject.
// @Summary Rotate backup codes
// @Description Replaces the whole recovery set and returns the new codes exactly once.
// @Tags Challenge, Management
// @Accept json
// @Produce json
// @Param request body RotateBackupCodesRequest true "Rotate payload"
// @Success 200 {object} router.successResponse{data=RotateBackupCodesResponse} "New recovery codes"
// @Failure 401 {object} router.errorResponse "Authentication required"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/challenge/backup-codes/rotate [post]
func (h *HTTPEndpoint) RotateBackupCodes(r *router.Request) (any, error) {
	var req RotateBackupCodesRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.RotateBackupCodes(r.Context(), usecase.RotateBackupCodesInput{Subject: req.Subject})
	if err != nil {
		return nil, err
	}

	return RotateBackupCodesResponse{BackupCodes: resp.Codes}, nil
}

func verifyResponse(resp *usecase.VerifyOutput) VerifyResponse {
	return VerifyResponse{
		Outcome:           resp.Outcome.String(),
		AttemptsRemaining: resp.AttemptsRemaining,
		RetryAfterSeconds: retryAfterSeconds(resp.RetryAfter),
		SessionSeed:       resp.SessionSeed,
		DeviceKnown:       resp.DeviceKnown,
	}
}

func retryAfterSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}

	secs := int64(d / time.Second)
	if d%time.Second > 0 {
		secs++
	}

	return secs
}
