package db

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
)

const queryHasBackupCodes = `
SELECT EXISTS (SELECT 1 FROM challenge_backup_codes WHERE subject = $1)`

func (s *DB) HasBackupCodes(ctx context.Context, subject string) (has bool, err error) {
	ctx, span := s.startSpan(ctx, "HasBackupCodes")
	defer func() { s.endSpan(span, err) }()

	err = s.conn.QueryRow(ctx, queryHasBackupCodes, subject).Scan(&has)
	if err != nil {
		return false, s.mapError(err)
	}

	return has, nil
}

const (
	queryDeleteBackupCodes = `DELETE FROM challenge_backup_codes WHERE subject = $1`
	queryInsertBackupCode  = `INSERT INTO challenge_backup_codes (subject, code_hash) VALUES ($1, $2)`
)

// ReplaceBackupCodes swaps the whole code set inside one transaction, so a
// failed rotation never leaves the subject half-rotated.
func (s *DB) ReplaceBackupCodes(ctx context.Context, subject string, hashes []string) (err error) {
	ctx, span := s.startSpan(ctx, "ReplaceBackupCodes")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return s.mapError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err = tx.Exec(ctx, queryDeleteBackupCodes, subject); err != nil {
		return s.mapError(err)
	}

	for _, h := range hashes {
		if _, err = tx.Exec(ctx, queryInsertBackupCode, subject, h); err != nil {
			return s.mapError(err)
		}
	}

	err = s.mapError(tx.Commit(ctx))
	return err
}

const queryListBackupCodes = `
SELECT id, subject, code_hash, used
FROM challenge_backup_codes
WHERE subject = $1
ORDER BY id`

func (s *DB) ListBackupCodes(ctx context.Context, subject string) (codes []entity.BackupCode, err error) {
	ctx, span := s.startSpan(ctx, "ListBackupCodes")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, queryListBackupCodes, subject)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	out := make([]entity.BackupCode, 0)
	for rows.Next() {
		var bc entity.BackupCode
		if err = rows.Scan(&bc.ID, &bc.Subject, &bc.Hash, &bc.Used); err != nil {
			return nil, s.mapError(err)
		}
		out = append(out, bc)
	}
	if err = rows.Err(); err != nil {
		return nil, s.mapError(err)
	}

	return out, nil
}

const queryMarkBackupCodeUsed = `
UPDATE challenge_backup_codes
SET used = TRUE, used_at = NOW()
WHERE id = $1 AND subject = $2 AND used = FALSE`

// MarkBackupCodeUsed redeems one code. The used guard in the predicate makes
// concurrent redemptions of the same code settle to a single winner.
func (s *DB) MarkBackupCodeUsed(ctx context.Context, id int64, subject string) (spent bool, err error) {
	ctx, span := s.startSpan(ctx, "MarkBackupCodeUsed")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, queryMarkBackupCodeUsed, id, subject)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}
