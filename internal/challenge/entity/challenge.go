package entity

import (
	"strings"
	"time"
)

// Challenge is the live verification state for one subject.
//
// There is at most one per subject; issuing again replaces it.
type Challenge struct {
	Subject       string
	Method        Method
	CodeHash      string
	TOTPSecret    []byte // AES-GCM ciphertext, set only for MethodTOTP
	Attempts      int
	MaxAttempts   int
	CreatedAt     time.Time
	ExpiresAt     time.Time
	LastAttemptAt time.Time
}

// ExpiredAt reports whether the challenge has outlived its TTL.
func (c Challenge) ExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Overrun reports whether the attempt budget is already spent. Attempts are
// counted before the code comparison, so an overrun challenge fails even for
// the right code.
func (c Challenge) Overrun() bool {
	return c.Attempts > c.MaxAttempts
}

// Remaining returns how many attempts are left.
func (c Challenge) Remaining() int {
	if c.Attempts >= c.MaxAttempts {
		return 0
	}
	return c.MaxAttempts - c.Attempts
}

// FraudKey identifies one caller triple for failure tracking.
type FraudKey struct {
	Subject     string
	Origin      string
	Fingerprint string
}

func (k FraudKey) String() string {
	return strings.Join([]string{k.Subject, k.Origin, k.Fingerprint}, "|")
}

// FraudRecord accumulates verification failures for one caller triple.
type FraudRecord struct {
	Key           FraudKey
	FailureCount  int
	LastFailureAt time.Time
	BlockedUntil  time.Time
}

// BlockedAt reports whether the record is still inside its block window.
// Records past BlockedUntil are treated as clear, never as stuck.
func (f FraudRecord) BlockedAt(now time.Time) bool {
	return now.Before(f.BlockedUntil)
}

// TrustedDevice marks a device fingerprint the subject verified from before.
//
// Only the fingerprint digest is kept, never the raw signals behind it.
type TrustedDevice struct {
	Subject     string
	Fingerprint string
	FirstSeen   time.Time
	LastSeen    time.Time
}

// ActiveAt reports whether the trust is still inside the horizon measured
// from the last sighting.
func (d TrustedDevice) ActiveAt(now time.Time, horizon time.Duration) bool {
	return now.Before(d.LastSeen.Add(horizon))
}

// BackupCode is one single-use recovery code, stored hashed.
type BackupCode struct {
	ID      int64
	Subject string
	Hash    string
	Used    bool
}
