package memstore

import (
	"context"
	"time"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

// GetFraud returns the record for the triple or goerror.ErrNotFound. A record
// whose block window has elapsed is cleared here, so a finished block never
// outlives its duration.
func (s *Store) GetFraud(_ context.Context, key entity.FraudKey, at time.Time) (*entity.FraudRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.frauds[key.String()]
	if !ok {
		return nil, goerror.ErrNotFound
	}

	if !rec.BlockedUntil.IsZero() && !rec.BlockedAt(at) {
		delete(s.frauds, key.String())
		return nil, goerror.ErrNotFound
	}

	return &rec, nil
}

// RecordFailure bumps the failure count and arms the block window once the
// count reaches threshold.
func (s *Store) RecordFailure(_ context.Context, key entity.FraudKey, at time.Time, threshold int, blockFor time.Duration) (*entity.FraudRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.frauds[key.String()]
	if !ok {
		rec = entity.FraudRecord{Key: key}
	}

	rec.FailureCount++
	rec.LastFailureAt = at

	if rec.FailureCount >= threshold && rec.BlockedUntil.IsZero() {
		rec.BlockedUntil = at.Add(blockFor)
	}

	s.frauds[key.String()] = rec

	return &rec, nil
}

// ClearFraud drops the record for the triple.
func (s *Store) ClearFraud(_ context.Context, key entity.FraudKey) error {
	s.mu.Lock()
	delete(s.frauds, key.String())
	s.mu.Unlock()

	return nil
}
