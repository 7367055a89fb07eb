package inbound

import "time"

type IssueRequest struct {
	Subject string `json:"subject"`
	Method  string `json:"method"`
}

type IssueResponse struct {
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	AttemptsRemaining int        `json:"attempts_remaining,omitempty"`
	RetryAfterSeconds int64      `json:"retry_after_seconds,omitempty"`
	Outcome           string     `json:"outcome,omitempty"`
	Code              string     `json:"code,omitempty"`
	TOTPURI           string     `json:"totp_uri,omitempty"`
	QRURL             string     `json:"qr_url,omitempty"`
	BackupCodes       []string   `json:"backup_codes,omitempty"`
}

type VerifyRequest struct {
	Subject string `json:"subject"`
	Code    string `json:"code"`
	Origin  string `json:"origin"`
}

type VerifyResponse struct {
	Outcome           string `json:"outcome"`
	AttemptsRemaining int    `json:"attempts_remaining,omitempty"`
	RetryAfterSeconds int64  `json:"retry_after_seconds,omitempty"`
	SessionSeed       string `json:"session_seed,omitempty"`
	DeviceKnown       bool   `json:"device_known"`
}

type CancelRequest struct {
	Subject string `json:"subject"`
}

type CancelResponse struct{}

func (CancelResponse) Message() string {
	return "Challenge cancelled."
}

type TrustedDeviceItem struct {
	Fingerprint string    `json:"fingerprint"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	Active      bool      `json:"active"`
}

type TrustedDevicesResponse struct {
	Devices []TrustedDeviceItem `json:"devices"`
}

type RevokeDevicesRequest struct {
	Subject string `json:"subject"`
}

type RevokeDevicesResponse struct{}

func (RevokeDevicesResponse) Message() string {
	return "All trusted devices revoked."
}

type RotateBackupCodesRequest struct {
	Subject string `json:"subject"`
}

type RotateBackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}
