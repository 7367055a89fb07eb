package redistore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

// recordAttemptScript bumps the attempt counter and stamps the attempt time
// in one step, then returns the updated hash. An empty reply means no live
// challenge.
var recordAttemptScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return {}
end
redis.call("HINCRBY", KEYS[1], "attempts", 1)
redis.call("HSET", KEYS[1], "last_attempt_at", ARGV[1])
return redis.call("HGETALL", KEYS[1])
`)

// expiredChallengeKeep is how long an expired challenge stays readable so a
// verify that arrives after expiry reports EXPIRED instead of NOT_FOUND. The
// orchestrator deletes the record on first read; redis reaps the rest.
const expiredChallengeKeep = time.Hour

// Upsert replaces any live challenge for the subject. The redis TTL runs a
// grace period past the challenge expiry, so a late read still sees the
// expired record before redis reaps it.
func (s *Store) Upsert(ctx context.Context, ch entity.Challenge) (err error) {
	ctx, span := s.startSpan(ctx, "Upsert")
	defer func() { s.endSpan(span, err) }()

	key := challengePrefix + ch.Subject

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		"subject":         ch.Subject,
		"method":          int(ch.Method),
		"code_hash":       ch.CodeHash,
		"totp_secret":     string(ch.TOTPSecret),
		"attempts":        ch.Attempts,
		"max_attempts":    ch.MaxAttempts,
		"created_at":      ch.CreatedAt.UnixMilli(),
		"expires_at":      ch.ExpiresAt.UnixMilli(),
		"last_attempt_at": 0,
	})
	pipe.PExpireAt(ctx, key, ch.ExpiresAt.Add(expiredChallengeKeep))

	_, err = pipe.Exec(ctx)
	return err
}

// Get returns the challenge for the subject or goerror.ErrNotFound. Expired
// challenges are returned as-is; the caller classifies and deletes them.
func (s *Store) Get(ctx context.Context, subject string) (ch *entity.Challenge, err error) {
	ctx, span := s.startSpan(ctx, "Get")
	defer func() { s.endSpan(span, err) }()

	fields, err := s.client.HGetAll(ctx, challengePrefix+subject).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, goerror.ErrNotFound
	}

	return challengeFromFields(fields), nil
}

// RecordAttempt atomically increments the attempt counter and stamps the
// attempt time.
func (s *Store) RecordAttempt(ctx context.Context, subject string, at time.Time) (ch *entity.Challenge, err error) {
	ctx, span := s.startSpan(ctx, "RecordAttempt")
	defer func() { s.endSpan(span, err) }()

	raw, err := recordAttemptScript.Run(ctx, s.client,
		[]string{challengePrefix + subject}, at.UnixMilli()).StringSlice()
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

	return challengeFromFields(fields), nil
}

// Delete destroys the challenge for the subject.
func (s *Store) Delete(ctx context.Context, subject string) (err error) {
	ctx, span := s.startSpan(ctx, "Delete")
	defer func() { s.endSpan(span, err) }()

	n, err := s.client.Del(ctx, challengePrefix+subject).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return goerror.ErrNotFound
	}

	return nil
}

func challengeFromFields(fields map[string]string) *entity.Challenge {
	return &entity.Challenge{
		Subject:       fields["subject"],
		Method:        entity.Method(fieldInt(fields, "method")),
		CodeHash:      fields["code_hash"],
		TOTPSecret:    []byte(fields["totp_secret"]),
		Attempts:      fieldInt(fields, "attempts"),
		MaxAttempts:   fieldInt(fields, "max_attempts"),
		CreatedAt:     fieldTime(fields, "created_at"),
		ExpiresAt:     fieldTime(fields, "expires_at"),
		LastAttemptAt: fieldTime(fields, "last_attempt_at"),
	}
}
