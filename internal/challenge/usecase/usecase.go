package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mfa"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/ratelimit"
	"github.com/shandysiswandi/otpgate/internal/pkg/storage"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

type DeliveryRequestedEvent struct {
	Subject   string
	Method    entity.Method
	Code      string
	ExpiresAt time.Time
}

type repoMessaging interface {
	PublishDeliveryRequested(ctx context.Context, msg DeliveryRequestedEvent) error
}

type repoChallenge interface {
	// Upsert replaces any live challenge for the subject.
	Upsert(ctx context.Context, ch entity.Challenge) error
	// Get returns the live challenge or goerror.ErrNotFound.
	Get(ctx context.Context, subject string) (*entity.Challenge, error)
	// RecordAttempt atomically increments the attempt counter, stamps the
	// attempt time, and returns the updated challenge.
	RecordAttempt(ctx context.Context, subject string, at time.Time) (*entity.Challenge, error)
	// Delete destroys the challenge for the subject.
	Delete(ctx context.Context, subject string) error
}

type repoFraud interface {
	// GetFraud returns the record for the triple or goerror.ErrNotFound.
	// Records whose block window has elapsed are cleared on read.
	GetFraud(ctx context.Context, key entity.FraudKey, at time.Time) (*entity.FraudRecord, error)
	// RecordFailure bumps the failure count and arms the block window once
	// the count reaches threshold. It returns the updated record.
	RecordFailure(ctx context.Context, key entity.FraudKey, at time.Time, threshold int, blockFor time.Duration) (*entity.FraudRecord, error)
	// ClearFraud drops the record for the triple.
	ClearFraud(ctx context.Context, key entity.FraudKey) error
}

type repoDevice interface {
	// GetDevice returns the trusted device or goerror.ErrNotFound.
	GetDevice(ctx context.Context, subject, fingerprint string) (*entity.TrustedDevice, error)
	// SaveDevice inserts the device or refreshes its last sighting.
	SaveDevice(ctx context.Context, dev entity.TrustedDevice) error
	// ListDevices returns every trusted device for the subject.
	ListDevices(ctx context.Context, subject string) ([]entity.TrustedDevice, error)
	// DeleteDevices revokes every trusted device for the subject.
	DeleteDevices(ctx context.Context, subject string) error
}

type repoVault interface {
	// HasBackupCodes reports whether the subject already has a code set.
	HasBackupCodes(ctx context.Context, subject string) (bool, error)
	// ReplaceBackupCodes swaps the whole code set for the subject.
	ReplaceBackupCodes(ctx context.Context, subject string, hashes []string) error
	// ListBackupCodes returns every code for the subject, spent ones included.
	ListBackupCodes(ctx context.Context, subject string) ([]entity.BackupCode, error)
	// MarkBackupCodeUsed redeems one code. It returns false when the code was
	// already spent by a concurrent caller.
	MarkBackupCodeUsed(ctx context.Context, id int64, subject string) (bool, error)
}

type Usecase struct {
	repoChallenge repoChallenge
	repoFraud     repoFraud
	repoDevice    repoDevice
	repoVault     repoVault
	repoMessaging repoMessaging
	idemp         idempotency.Idempotency
	limiter       ratelimit.Limiter
	validator     validator.Validator
	cfg           config.Config
	storage       storage.Storage
	codeHash      hash.Hash
	argon2id      hash.Hash
	seedSigner    hash.Hash
	mfaEncryptor  mfa.Encryptor
	codeGen       mfa.CodeGenerator
	backupGen     mfa.BackupCodeGenerator
	oid           uid.StringID
	totp          otp.OTP
	clock         clock.Clocker
	ins           instrument.Instrumentation
}

type Dependency struct {
	RepoChallenge repoChallenge
	RepoFraud     repoFraud
	RepoDevice    repoDevice
	RepoVault     repoVault
	RepoMessaging repoMessaging
	Idempotency   idempotency.Idempotency
	Limiter       ratelimit.Limiter
	Validator     validator.Validator
	Config        config.Config
	Storage       storage.Storage
	CodeHash      hash.Hash
	Argon2ID      hash.Hash
	SeedSigner    hash.Hash
	MFAEncryptor  mfa.Encryptor
	CodeGen       mfa.CodeGenerator
	BackupGen     mfa.BackupCodeGenerator
	OID           uid.StringID
	Totp          otp.OTP
	Clock         clock.Clocker
	Instrument    instrument.Instrumentation
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoChallenge: dep.RepoChallenge,
		repoFraud:     dep.RepoFraud,
		repoDevice:    dep.RepoDevice,
		repoVault:     dep.RepoVault,
		repoMessaging: dep.RepoMessaging,
		idemp:         dep.Idempotency,
		limiter:       dep.Limiter,
		validator:     dep.Validator,
		cfg:           dep.Config,
		storage:       dep.Storage,
		codeHash:      dep.CodeHash,
		argon2id:      dep.Argon2ID,
		seedSigner:    dep.SeedSigner,
		mfaEncryptor:  dep.MFAEncryptor,
		codeGen:       dep.CodeGen,
		backupGen:     dep.BackupGen,
		oid:           dep.OID,
		totp:          dep.Totp,
		clock:         dep.Clock,
		ins:           dep.Instrument,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("challenge.usecase").Start(ctx, name)
}

// uaFingerprintBound caps how much of the user agent feeds the fingerprint so
// an attacker can not stuff it to force collisions apart.
const uaFingerprintBound = 64

// fingerprint derives the device digest from the forwarded client signals.
// Only the digest ever leaves this function; the raw signals are not stored.
func (s *Usecase) fingerprint(userAgent, ip, acceptLanguage string) string {
	ua := userAgent
	if len(ua) > uaFingerprintBound {
		ua = ua[:uaFingerprintBound]
	}

	lang := acceptLanguage
	if i := strings.IndexAny(lang, ",;"); i >= 0 {
		lang = lang[:i]
	}
	lang = strings.ToLower(strings.TrimSpace(lang))

	h := sha256.New()
	h.Write([]byte(ua))
	h.Write([]byte{'\n'})
	h.Write([]byte(ip))
	h.Write([]byte{'\n'})
	h.Write([]byte(lang))

	return hex.EncodeToString(h.Sum(nil))
}

func normalizeSubject(subject string) string {
	return strings.ToLower(strings.TrimSpace(subject))
}
