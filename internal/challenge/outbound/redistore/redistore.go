// Package redistore holds the redis-backed challenge and fraud stores used
// by shared deployments. Per-key read-modify-write steps run as Lua scripts
// so concurrent verifiers never interleave inside one record.
package redistore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
)

const (
	challengePrefix = "challenge:"
	fraudPrefix     = "fraud:"
)

type Store struct {
	client    *redis.Client
	ins       instrument.Instrumentation
	fraudKeep time.Duration
}

// NewStore creates a redis-backed store. fraudKeep bounds how long an idle
// fraud record survives, so abandoned triples age out on their own.
func NewStore(client *redis.Client, ins instrument.Instrumentation, fraudKeep time.Duration) *Store {
	return &Store{client: client, ins: ins, fraudKeep: fraudKeep}
}

func (s *Store) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("challenge.outbound.redistore").Start(ctx, name)
}

func (s *Store) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func fieldInt(m map[string]string, key string) int {
	n, _ := strconv.Atoi(m[key])
	return n
}

func fieldTime(m map[string]string, key string) time.Time {
	ms, _ := strconv.ParseInt(m[key], 10, 64)
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
