package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	libOTP "github.com/pquerna/otp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
	"github.com/shandysiswandi/otpgate/internal/challenge/outbound/memstore"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/mfa"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/ratelimit"
	"github.com/shandysiswandi/otpgate/internal/pkg/storage"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

const defaultTestConfig = `
app:
  env: test
modules:
  challenge:
    code_length: 6
    max_attempts: 5
    ttl_minutes: 5
    issue_limit: 3
    issue_origin_limit: 10
    issue_window_minutes: 10
    verify_limit: 100
    verify_window_minutes: 10
    fraud_threshold: 100
    fraud_block_minutes: 30
    fraud_retention_hours: 24
    device_trust_horizon_days: 30
    qr_bucket: qr-test
    qr_url_ttl_minutes: 15
`

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

type seqOID struct {
	next int
}

func (s *seqOID) Generate() string {
	s.next++
	return fmt.Sprintf("oid-%d", s.next)
}

type seqNumID struct {
	next int64
}

func (s *seqNumID) Generate() int64 {
	s.next++
	return s.next
}

type fakeMessaging struct {
	events []DeliveryRequestedEvent
	err    error
}

func (f *fakeMessaging) PublishDeliveryRequested(_ context.Context, msg DeliveryRequestedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, msg)
	return nil
}

type fakeIdempotency struct {
	done map[string]bool
}

func (f *fakeIdempotency) Acquire(context.Context, string, time.Duration) (idempotency.State, error) {
	return idempotency.StateNone, nil
}

func (f *fakeIdempotency) MarkCompleted(context.Context, string, time.Duration) error {
	return nil
}

func (f *fakeIdempotency) MarkFailed(context.Context, string, time.Duration) error {
	return nil
}

func (f *fakeIdempotency) Exec(ctx context.Context, key string, fn func(context.Context) error, _ ...idempotency.Option) error {
	if f.done[key] {
		return idempotency.ErrAlreadyCompleted
	}
	if err := fn(ctx); err != nil {
		return err
	}
	f.done[key] = true
	return nil
}

type fakeStorage struct {
	objects map[string][]byte
}

func (f *fakeStorage) Close() error {
	return nil
}

func (f *fakeStorage) PutObject(_ context.Context, bucket, key string, r io.Reader, _ storage.PutOptions) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	f.objects[bucket+"/"+key] = data
	return storage.ObjectInfo{Bucket: bucket, Key: key}, nil
}

func (f *fakeStorage) GetObject(_ context.Context, bucket, key string, _ storage.GetOptions) (io.ReadCloser, storage.ObjectInfo, error) {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, storage.ObjectInfo{}, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), storage.ObjectInfo{Bucket: bucket, Key: key}, nil
}

func (f *fakeStorage) StatObject(_ context.Context, bucket, key string) (storage.ObjectInfo, error) {
	if _, ok := f.objects[bucket+"/"+key]; !ok {
		return storage.ObjectInfo{}, errors.New("object not found")
	}
	return storage.ObjectInfo{Bucket: bucket, Key: key}, nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, bucket, key string) error {
	delete(f.objects, bucket+"/"+key)
	return nil
}

func (f *fakeStorage) ListObjects(context.Context, string, string, storage.ListOptions) ([]storage.ObjectInfo, error) {
	return nil, nil
}

func (f *fakeStorage) PresignGet(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://storage.test/" + bucket + "/" + key, nil
}

func (f *fakeStorage) PresignPut(_ context.Context, bucket, key string, _ storage.PutOptions, _ time.Duration) (string, error) {
	return "https://storage.test/" + bucket + "/" + key, nil
}

type noopInstrument struct{}

func (noopInstrument) Tracer(name string) trace.Tracer {
	return tracenoop.NewTracerProvider().Tracer(name)
}

func (noopInstrument) Meter(name string) metric.Meter {
	return metricnoop.NewMeterProvider().Meter(name)
}

func (noopInstrument) Shutdown(context.Context) error {
	return nil
}

type harness struct {
	uc        *Usecase
	clk       *fakeClock
	store     *memstore.Store
	messaging *fakeMessaging
	storage   *fakeStorage
	encryptor mfa.Encryptor
	totp      otp.OTP
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithConfig(t, defaultTestConfig)
}

func newHarnessWithConfig(t *testing.T, cfgYAML string) *harness {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(cfgYAML))
	if err != nil {
		t.Fatalf("failed to build config: %v", err)
	}

	v10, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("failed to build validator: %v", err)
	}

	clk := &fakeClock{now: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)}
	store := memstore.New(clk, &seqNumID{}, 30*24*time.Hour, 24*time.Hour)
	msg := &fakeMessaging{}
	stg := &fakeStorage{objects: make(map[string][]byte)}
	enc := mfa.NewAESGCMEncryptor(mfa.StaticKeyProvider{KeyBytes: bytes.Repeat([]byte{0x42}, 32)})
	totps := otp.NewTOTP("OTPGate", 30, 1, libOTP.DigitsSix)

	uc := New(Dependency{
		RepoChallenge: store,
		RepoFraud:     store,
		RepoDevice:    store,
		RepoVault:     store,
		RepoMessaging: msg,
		Idempotency:   &fakeIdempotency{done: make(map[string]bool)},
		Limiter:       ratelimit.NewMemory(clk),
		Validator:     v10,
		Config:        cfg,
		Storage:       stg,
		CodeHash:      hash.NewSaltedSHA256(),
		Argon2ID:      hash.NewArgon2id("test-pepper"),
		SeedSigner:    hash.NewHMACSHA256("test-hmac-secret"),
		MFAEncryptor:  enc,
		CodeGen:       mfa.NewNumericCode(),
		BackupGen:     mfa.NewBackupCode(),
		OID:           &seqOID{},
		Totp:          totps,
		Clock:         clk,
		Instrument:    noopInstrument{},
	})

	return &harness{
		uc:        uc,
		clk:       clk,
		store:     store,
		messaging: msg,
		storage:   stg,
		encryptor: enc,
		totp:      totps,
	}
}

func (h *harness) issue(t *testing.T, subject string) *IssueOutput {
	t.Helper()

	out, err := h.uc.Issue(context.Background(), IssueInput{Subject: subject, Method: entity.MethodSMS, Origin: "login"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if out.Code == "" {
		t.Fatal("Issue returned no raw code outside production")
	}

	return out
}

func verifyInput(subject, code string) VerifyInput {
	return VerifyInput{
		Subject:        subject,
		Code:           code,
		Origin:         "login",
		UserAgent:      "Mozilla/5.0 test",
		IP:             "203.0.113.9",
		AcceptLanguage: "en-US,en;q=0.9",
	}
}
