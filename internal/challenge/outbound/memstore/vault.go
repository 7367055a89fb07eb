package memstore

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
)

// HasBackupCodes reports whether the subject already has a code set.
func (s *Store) HasBackupCodes(_ context.Context, subject string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.vault[subject]) > 0, nil
}

// ReplaceBackupCodes swaps the whole code set for the subject. Unused codes
// from the old set stop existing.
func (s *Store) ReplaceBackupCodes(_ context.Context, subject string, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes := make([]entity.BackupCode, 0, len(hashes))
	for _, h := range hashes {
		codes = append(codes, entity.BackupCode{
			ID:      s.ids.Generate(),
			Subject: subject,
			Hash:    h,
		})
	}

	s.vault[subject] = codes

	return nil
}

// ListBackupCodes returns every code for the subject, spent ones included.
func (s *Store) ListBackupCodes(_ context.Context, subject string) ([]entity.BackupCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.BackupCode, len(s.vault[subject]))
	copy(out, s.vault[subject])

	return out, nil
}

// MarkBackupCodeUsed redeems one code. It returns false when the code is
// missing or already spent.
func (s *Store) MarkBackupCodeUsed(_ context.Context, id int64, subject string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes := s.vault[subject]
	for i := range codes {
		if codes[i].ID != id {
			continue
		}
		if codes[i].Used {
			return false, nil
		}

		codes[i].Used = true
		return true, nil
	}

	return false, nil
}
