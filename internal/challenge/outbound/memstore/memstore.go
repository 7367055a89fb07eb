// Package memstore holds the in-memory reference implementation of the
// challenge, fraud, device and backup-code stores. It fits single-process
// deployments and tests; shared deployments use the redis and postgres
// backed stores instead.
package memstore

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
)

// Store keeps all challenge state in process memory.
//
// Expired entries are dropped lazily on read and in bulk by Sweep, which runs
// on its own interval independent of any TTL.
type Store struct {
	clock         clock.Clocker
	ids           uid.NumberID
	deviceHorizon time.Duration
	fraudKeep     time.Duration

	mu         sync.Mutex
	challenges map[string]entity.Challenge
	frauds     map[string]entity.FraudRecord
	devices    map[string]map[string]entity.TrustedDevice
	vault      map[string][]entity.BackupCode

	swept atomic.Int64
}

// New creates an empty in-memory store.
//
// deviceHorizon bounds how long an untouched trusted device survives a sweep
// and fraudKeep bounds how long an idle fraud record does.
func New(clk clock.Clocker, ids uid.NumberID, deviceHorizon, fraudKeep time.Duration) *Store {
	return &Store{
		clock:         clk,
		ids:           ids,
		deviceHorizon: deviceHorizon,
		fraudKeep:     fraudKeep,
		challenges:    make(map[string]entity.Challenge),
		frauds:        make(map[string]entity.FraudRecord),
		devices:       make(map[string]map[string]entity.TrustedDevice),
		vault:         make(map[string][]entity.BackupCode),
	}
}

// Sweep drops entries no caller can observe anymore and returns how many
// were removed. Candidates are snapshotted under the lock, so the walk never
// races a concurrent mutation.
func (s *Store) Sweep(_ context.Context) int {
	now := s.clock.Now()
	removed := 0

	s.mu.Lock()

	for subject, ch := range s.challenges {
		if ch.ExpiredAt(now) {
			delete(s.challenges, subject)
			removed++
		}
	}

	for key, rec := range s.frauds {
		stale := !rec.LastFailureAt.IsZero() && now.Sub(rec.LastFailureAt) > s.fraudKeep
		if stale && !rec.BlockedAt(now) {
			delete(s.frauds, key)
			removed++
		}
	}

	for subject, devs := range s.devices {
		for fp, dev := range devs {
			if !dev.ActiveAt(now, s.deviceHorizon) {
				delete(devs, fp)
				removed++
			}
		}
		if len(devs) == 0 {
			delete(s.devices, subject)
		}
	}

	s.mu.Unlock()

	s.swept.Add(int64(removed))

	return removed
}

// SweptTotal returns the cumulative number of entries removed by Sweep.
func (s *Store) SweptTotal() int64 {
	return s.swept.Load()
}
