package db

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
)

const queryGetDevice = `
SELECT subject, fingerprint, first_seen, last_seen
FROM challenge_trusted_devices
WHERE subject = $1 AND fingerprint = $2`

func (s *DB) GetDevice(ctx context.Context, subject, fingerprint string) (dev *entity.TrustedDevice, err error) {
	ctx, span := s.startSpan(ctx, "GetDevice")
	defer func() { s.endSpan(span, err) }()

	var out entity.TrustedDevice
	err = s.conn.QueryRow(ctx, queryGetDevice, subject, fingerprint).
		Scan(&out.Subject, &out.Fingerprint, &out.FirstSeen, &out.LastSeen)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &out, nil
}

const querySaveDevice = `
INSERT INTO challenge_trusted_devices (subject, fingerprint, first_seen, last_seen)
VALUES ($1, $2, $3, $4)
ON CONFLICT (subject, fingerprint)
DO UPDATE SET last_seen = EXCLUDED.last_seen`

func (s *DB) SaveDevice(ctx context.Context, dev entity.TrustedDevice) (err error) {
	ctx, span := s.startSpan(ctx, "SaveDevice")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, querySaveDevice, dev.Subject, dev.Fingerprint, dev.FirstSeen, dev.LastSeen)
	return s.mapError(err)
}

const queryListDevices = `
SELECT subject, fingerprint, first_seen, last_seen
FROM challenge_trusted_devices
WHERE subject = $1
ORDER BY last_seen DESC`

func (s *DB) ListDevices(ctx context.Context, subject string) (devs []entity.TrustedDevice, err error) {
	ctx, span := s.startSpan(ctx, "ListDevices")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, queryListDevices, subject)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	out := make([]entity.TrustedDevice, 0)
	for rows.Next() {
		var dev entity.TrustedDevice
		if err = rows.Scan(&dev.Subject, &dev.Fingerprint, &dev.FirstSeen, &dev.LastSeen); err != nil {
			return nil, s.mapError(err)
		}
		out = append(out, dev)
	}
	if err = rows.Err(); err != nil {
		return nil, s.mapError(err)
	}

	return out, nil
}

const queryDeleteDevices = `DELETE FROM challenge_trusted_devices WHERE subject = $1`

func (s *DB) DeleteDevices(ctx context.Context, subject string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteDevices")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, queryDeleteDevices, subject)
	return s.mapError(err)
}
