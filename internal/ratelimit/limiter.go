// Package ratelimit implements distributed RPM/TPM admission control: a
// fixed-window request counter and a GCRA token admission check, both
// expressed as atomic Redis scripts so that concurrent callers for the
// same key observe a strictly serialized order.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/BaSui01/hyperinfer/internal/model"
	"github.com/BaSui01/hyperinfer/internal/store"
	"go.uber.org/zap"
)

// Default per-key limits, applied when a caller passes a limit of 0.
const (
	DefaultRPM = uint64(60)
	DefaultTPM = uint64(100000)
)

const (
	rpmKeyPrefix      = "hyperinfer:ratelimit:rpm:"
	tpmKeyPrefix      = "hyperinfer:ratelimit:tpm:"
	tokensKeyPrefix   = "hyperinfer:usage:tokens:"
	requestsKeyPrefix = "hyperinfer:usage:requests:"
)

// Limiter is a stateless wrapper over the scripted atomic operations in
// store.Store. A Limiter constructed with a nil store runs in degraded
// mode: CheckRPM is backed by a local per-key token bucket and CheckTPM
// always allows.
type Limiter struct {
	store    *store.Store
	logger   *zap.Logger
	degraded *degradedLimiters
}

// New builds a Limiter bound to st. Passing a nil st yields the degraded
// mode: no Redis round trip, but still subject to a local per-key token
// bucket rather than an unconditional allow.
func New(st *store.Store, logger *zap.Logger) *Limiter {
	return &Limiter{
		store:    st,
		logger:   logger.With(zap.String("component", "ratelimit")),
		degraded: newDegradedLimiters(),
	}
}

// CheckRPM runs the fixed-window counter script against
// hyperinfer:ratelimit:rpm:<key>.
func (l *Limiter) CheckRPM(ctx context.Context, key string, limit uint64) (allowed bool, remaining uint64, err error) {
	if l.store == nil {
		if l.degraded.allow(key, limit) {
			return true, limit, nil
		}
		return false, 0, nil
	}
	if limit == 0 {
		limit = DefaultRPM
	}
	res, err := l.store.RunScript(ctx, rpmScript, []string{rpmKeyPrefix + key}, limit).Int64Slice()
	if err != nil {
		return false, 0, model.RateLimitError("rpm check failed: store unreachable").WithCause(err)
	}
	if len(res) < 2 {
		return false, 0, model.RateLimitError("rpm check failed: malformed script result")
	}
	if res[0] == 0 {
		return false, 0, nil
	}
	return true, uint64(res[1]), nil
}

// CheckTPM runs the GCRA script against hyperinfer:ratelimit:tpm:<key> with
// capacity = limit and rate = limit/60 per second.
func (l *Limiter) CheckTPM(ctx context.Context, key string, limit uint64, tokens uint64) (allowed bool, retryAfterMs uint64, err error) {
	if l.store == nil {
		return true, 0, nil
	}
	if limit == 0 {
		limit = DefaultTPM
	}
	rate := float64(limit) / 60.0
	nowMs := time.Now().UnixMilli()

	res, err := l.store.RunScript(ctx, tpmScript, []string{tpmKeyPrefix + key},
		limit, rate, tokens, nowMs).Int64Slice()
	if err != nil {
		return false, 0, model.RateLimitError("tpm check failed: store unreachable").WithCause(err)
	}
	if len(res) < 2 {
		return false, 0, model.RateLimitError("tpm check failed: malformed script result")
	}
	if res[0] == 0 {
		return false, uint64(res[1]), nil
	}
	return true, 0, nil
}

// IsAllowed admits or rejects a request against both the RPM and TPM
// checks for key, incrementing the RPM counter and advancing the TPM TAT
// as a side effect. Both rpmLimit and tpmLimit of 0 fall back
// to the package defaults.
func (l *Limiter) IsAllowed(ctx context.Context, key string, tokenCost uint64, rpmLimit, tpmLimit uint64) (bool, error) {
	rpmOK, _, err := l.CheckRPM(ctx, key, rpmLimit)
	if err != nil {
		return false, err
	}
	if !rpmOK {
		return false, nil
	}

	tpmOK, _, err := l.CheckTPM(ctx, key, tpmLimit, tokenCost)
	if err != nil {
		return false, err
	}
	return tpmOK, nil
}

// RecordUsage atomically increments the cumulative per-key counters
// (monitoring only, no enforcement). Succeeds or fails cleanly; never
// partial.
func (l *Limiter) RecordUsage(ctx context.Context, key string, tokens uint64) error {
	if l.store == nil {
		return nil
	}
	_, err := l.store.RunScript(ctx, usageScript,
		[]string{tokensKeyPrefix + key, requestsKeyPrefix + key}, tokens).Result()
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// gcraTTLSeconds mirrors the script's TTL computation for callers that want
// to reason about key lifetime without round-tripping to Redis.
func gcraTTLSeconds(capacity uint64) int64 {
	return int64(math.Ceil(float64(capacity) * 2 / 1000))
}
