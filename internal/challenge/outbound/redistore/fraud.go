package redistore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

// getFraudScript reads the record and clears it when its block window has
// already elapsed, so a finished block never outlives its duration.
var getFraudScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return {}
end
local blocked = tonumber(redis.call("HGET", KEYS[1], "blocked_until") or "0")
if blocked > 0 and tonumber(ARGV[1]) >= blocked then
  redis.call("DEL", KEYS[1])
  return {}
end
return redis.call("HGETALL", KEYS[1])
`)

// recordFailureScript bumps the failure count, stamps the failure time, and
// arms the block window once the count reaches the threshold.
var recordFailureScript = redis.NewScript(`
local count = redis.call("HINCRBY", KEYS[1], "failure_count", 1)
redis.call("HSET", KEYS[1], "last_failure_at", ARGV[1])
local blocked = tonumber(redis.call("HGET", KEYS[1], "blocked_until") or "0")
if count >= tonumber(ARGV[2]) and blocked == 0 then
  blocked = tonumber(ARGV[1]) + tonumber(ARGV[3])
  redis.call("HSET", KEYS[1], "blocked_until", blocked)
end
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return {count, blocked}
`)

// GetFraud returns the record for the triple or goerror.ErrNotFound.
func (s *Store) GetFraud(ctx context.Context, key entity.FraudKey, at time.Time) (rec *entity.FraudRecord, err error) {
	ctx, span := s.startSpan(ctx, "GetFraud")
	defer func() { s.endSpan(span, err) }()

	raw, err := getFraudScript.Run(ctx, s.client,
		[]string{fraudPrefix + key.String()}, at.UnixMilli()).StringSlice()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, goerror.ErrNotFound
	}

	fields := make(map[string]string, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		fields[raw[i]] = raw[i+1]
	}

	return &entity.FraudRecord{
		Key:           key,
		FailureCount:  fieldInt(fields, "failure_count"),
		LastFailureAt: fieldTime(fields, "last_failure_at"),
		BlockedUntil:  fieldTime(fields, "blocked_until"),
	}, nil
}

// RecordFailure bumps the failure count and arms the block window once the
// count reaches threshold.
func (s *Store) RecordFailure(ctx context.Context, key entity.FraudKey, at time.Time, threshold int, blockFor time.Duration) (rec *entity.FraudRecord, err error) {
	ctx, span := s.startSpan(ctx, "RecordFailure")
	defer func() { s.endSpan(span, err) }()

	vals, err := recordFailureScript.Run(ctx, s.client,
		[]string{fraudPrefix + key.String()},
		at.UnixMilli(), threshold, blockFor.Milliseconds(), s.fraudKeep.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, err
	}

	rec = &entity.FraudRecord{
		Key:           key,
		FailureCount:  int(vals[0]),
		LastFailureAt: at,
	}
	if vals[1] > 0 {
		rec.BlockedUntil = time.UnixMilli(vals[1])
	}

	return rec, nil
}

// ClearFraud drops the record for the triple.
func (s *Store) ClearFraud(ctx context.Context, key entity.FraudKey) (err error) {
	ctx, span := s.startSpan(ctx, "ClearFraud")
	defer func() { s.endSpan(span, err) }()

	return s.client.Del(ctx, fraudPrefix+key.String()).Err()
}
