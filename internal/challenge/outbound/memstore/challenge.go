package memstore

import (
	"context"
	"time"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

// Upsert replaces any live challenge for the subject.
func (s *Store) Upsert(_ context.Context, ch entity.Challenge) error {
	s.mu.Lock()
	s.challenges[ch.Subject] = ch
	s.mu.Unlock()

	return nil
}

// Get returns the challenge for the subject or goerror.ErrNotFound. A
// challenge past its TTL is still returned; the caller tells an expired
// challenge apart from a missing one and deletes it. The sweep reaps
// whatever nobody reads.
func (s *Store) Get(_ context.Context, subject string) (*entity.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[subject]
	if !ok {
		return nil, goerror.ErrNotFound
	}

	return &ch, nil
}

// RecordAttempt atomically increments the attempt counter and stamps the
// attempt time.
func (s *Store) RecordAttempt(_ context.Context, subject string, at time.Time) (*entity.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[subject]
	if !ok {
		return nil, goerror.ErrNotFound
	}

	ch.Attempts++
	ch.LastAttemptAt = at
	s.challenges[subject] = ch

	return &ch, nil
}

// Delete destroys the challenge for the subject.
func (s *Store) Delete(_ context.Context, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.challenges[subject]; !ok {
		return goerror.ErrNotFound
	}

	delete(s.challenges, subject)

	return nil
}
