package challenge

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shandysiswandi/otpgate/internal/challenge/inbound"
	"github.com/shandysiswandi/otpgate/internal/challenge/outbound/db"
	"github.com/shandysiswandi/otpgate/internal/challenge/outbound/memstore"
	"github.com/shandysiswandi/otpgate/internal/challenge/outbound/mq"
	"github.com/shandysiswandi/otpgate/internal/challenge/outbound/redistore"
	"github.com/shandysiswandi/otpgate/internal/challenge/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/mfa"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/ratelimit"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/storage"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

type Dependency struct {
	Ctx          context.Context            `validate:"required"`
	DBConn       *pgxpool.Pool              // durable device/vault stores when set
	CacheConn    *redis.Client              // shared challenge/fraud stores when set
	Goroutine    *goroutine.Manager         `validate:"required"`
	Router       *router.Router             `validate:"required"`
	Idempotency  idempotency.Idempotency    `validate:"required"`
	Limiter      ratelimit.Limiter          `validate:"required"`
	Messaging    messaging.Messaging        `validate:"required"`
	Storage      storage.Storage            `validate:"required"`
	Config       config.Config              `validate:"required"`
	Instrument   instrument.Instrumentation `validate:"required"`
	UID          uid.NumberID               `validate:"required"`
	OID          uid.StringID               `validate:"required"`
	CodeHash     hash.Hash                  `validate:"required"`
	Argon2ID     hash.Hash                  `validate:"required"`
	SeedSigner   hash.Hash                  `validate:"required"`
	MFAEncryptor mfa.Encryptor              `validate:"required"`
	CodeGen      mfa.CodeGenerator          `validate:"required"`
	BackupGen    mfa.BackupCodeGenerator    `validate:"required"`
	Clock        clock.Clocker              `validate:"required"`
	Totp         otp.OTP                    `validate:"required"`
	Validator    validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	deviceHorizon := dep.Config.GetDay("modules.challenge.device_trust_horizon_days")
	fraudKeep := dep.Config.GetHour("modules.challenge.fraud_retention_hours")

	mem := memstore.New(dep.Clock, dep.UID, deviceHorizon, fraudKeep)

	uc := usecase.New(wireStores(dep, mem, fraudKeep))

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	if usesMemstore(dep) {
		startSweep(dep, mem)
	}

	return nil
}

func wireStores(dep Dependency, mem *memstore.Store, fraudKeep time.Duration) usecase.Dependency {
	ucDep := usecase.Dependency{
		RepoChallenge: mem,
		RepoFraud:     mem,
		RepoDevice:    mem,
		RepoVault:     mem,
		RepoMessaging: mq.NewMessaging(dep.Messaging, dep.Instrument),
		Idempotency:   dep.Idempotency,
		Limiter:       dep.Limiter,
		Validator:     dep.Validator,
		Config:        dep.Config,
		Storage:       dep.Storage,
		CodeHash:      dep.CodeHash,
		Argon2ID:      dep.Argon2ID,
		SeedSigner:    dep.SeedSigner,
		MFAEncryptor:  dep.MFAEncryptor,
		CodeGen:       dep.CodeGen,
		BackupGen:     dep.BackupGen,
		OID:           dep.OID,
		Totp:          dep.Totp,
		Clock:         dep.Clock,
		Instrument:    dep.Instrument,
	}

	if dep.Config.GetString("modules.challenge.store_driver") == "redis" && dep.CacheConn != nil {
		rs := redistore.NewStore(dep.CacheConn, dep.Instrument, fraudKeep)
		ucDep.RepoChallenge = rs
		ucDep.RepoFraud = rs
	}

	if dep.DBConn != nil {
		durable := db.NewDB(dep.DBConn, dep.Instrument)
		ucDep.RepoDevice = durable
		ucDep.RepoVault = durable
	}

	return ucDep
}

func usesMemstore(dep Dependency) bool {
	return dep.Config.GetString("modules.challenge.store_driver") != "redis" ||
		dep.CacheConn == nil || dep.DBConn == nil
}

func startSweep(dep Dependency, mem *memstore.Store) {
	interval := dep.Config.GetMinute("modules.challenge.sweep_interval_minutes")
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	dep.Goroutine.Go(dep.Ctx, func(pCtx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-pCtx.Done():
				return nil
			case <-ticker.C:
				if n := mem.Sweep(pCtx); n > 0 {
					slog.InfoContext(pCtx, "challenge memstore sweep", "removed", n)
				}
			}
		}
	})
}
