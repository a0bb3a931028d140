package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// degradedLimiters backs the permissive (store == nil) mode with a local,
// per-key token bucket instead of an unconditional allow. This never
// replaces the Redis RPM/GCRA scripts — it only applies when there is no
// store to run them against, so a degraded data-plane instance still smooths
// bursts against a single key rather than admitting everything.
type degradedLimiters struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func newDegradedLimiters() *degradedLimiters {
	return &degradedLimiters{buckets: make(map[string]*rate.Limiter)}
}

// allow reports whether key may proceed under a local rate.Limiter sized to
// rpmLimit requests per minute (falling back to DefaultRPM), with burst set
// to the full per-minute allowance.
func (d *degradedLimiters) allow(key string, rpmLimit uint64) bool {
	if rpmLimit == 0 {
		rpmLimit = DefaultRPM
	}
	perSecond := rate.Limit(float64(rpmLimit) / 60.0)
	// Burst equals the full per-minute allowance: a degraded instance should
	// smooth sustained traffic above the configured RPM, not reject the
	// first handful of requests in a short burst the way a tiny burst size
	// would.
	burst := int(rpmLimit)

	d.mu.Lock()
	defer d.mu.Unlock()

	limiter, ok := d.buckets[key]
	if !ok {
		limiter = rate.NewLimiter(perSecond, burst)
		d.buckets[key] = limiter
	}
	return limiter.Allow()
}

// sweep drops fully-refilled buckets, bounding the map's growth under many
// distinct keys. rate.Limiter does not expose last-use time, so a bucket
// sitting at its full burst is treated as idle long enough to be evicted —
// a conservative approximation of staleness. Call it periodically from a
// background goroutine; it is not wired into the request path itself.
func (d *degradedLimiters) sweep() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, limiter := range d.buckets {
		if limiter.Tokens() >= float64(limiter.Burst()) {
			delete(d.buckets, key)
		}
	}
}
