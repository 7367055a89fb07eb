package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/otpgate/internal/challenge"
	"github.com/shandysiswandi/otpgate/internal/delivery"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.challenge.enabled") {
		if err := challenge.New(challenge.Dependency{
			Ctx:          a.ctx,
			DBConn:       a.dbConn,
			CacheConn:    a.cacheConn,
			Goroutine:    a.goroutine,
			Router:       a.router,
			Idempotency:  a.idemp,
			Limiter:      a.limiter,
			Messaging:    a.messaging,
			Storage:      a.storage,
			Config:       a.config,
			Instrument:   a.ins,
			UID:          a.uid,
			OID:          a.oid,
			CodeHash:     a.codeHash,
			Argon2ID:     a.argon2id,
			SeedSigner:   a.seedSigner,
			MFAEncryptor: a.mfaEncryptor,
			CodeGen:      a.codeGen,
			BackupGen:    a.backupGen,
			Clock:        a.clock,
			Totp:         a.totp,
			Validator:    a.validator,
		}); err != nil {
			slog.Error("failed to init module challenge", "error", err)
			os.Exit(1)
		}
	}

	if a.config.GetBool("modules.delivery.enabled") {
		if err := delivery.New(delivery.Dependency{
			Ctx:        a.ctx,
			Messaging:  a.messaging,
			Config:     a.config,
			Instrument: a.ins,
			UUID:       a.uuid,
			Clock:      a.clock,
			Goroutine:  a.goroutine,
			Validator:  a.validator,
			Mail:       a.mail,
		}); err != nil {
			slog.Error("failed to init module delivery", "error", err)
			os.Exit(1)
		}
	}
}
