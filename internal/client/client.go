// Package client implements the chat(key, request) orchestrator: the
// single entry point binding the rate limiter, router, provider registry,
// telemetry producer and config snapshot together. Construction follows
// the functional-options style of quick.New; the admission sequence
// itself is this package's own eight-step pipeline (validate, admit,
// resolve, dispatch, record), not an agent loop.
package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/hyperinfer/internal/configsync"
	"github.com/BaSui01/hyperinfer/internal/metrics"
	"github.com/BaSui01/hyperinfer/internal/model"
	"github.com/BaSui01/hyperinfer/internal/provider"
	"github.com/BaSui01/hyperinfer/internal/ratelimit"
	"github.com/BaSui01/hyperinfer/internal/router"
	"github.com/BaSui01/hyperinfer/internal/telemetry"
	"github.com/BaSui01/hyperinfer/internal/tokencount"
)

// Option configures a Client built by New.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	metrics   *metrics.Collector
	estimator *tokencount.Estimator
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics attaches a Collector; RecordRateLimitDecision and
// RecordProviderRequest are called as a side effect of Chat when set.
func WithMetrics(collector *metrics.Collector) Option {
	return func(o *options) { o.metrics = collector }
}

// WithTokenEstimator overrides the default tokencount.Estimator used to
// size the pre-dispatch TPM admission check. Mainly useful for tests that
// want a deterministic token count.
func WithTokenEstimator(estimator *tokencount.Estimator) Option {
	return func(o *options) { o.estimator = estimator }
}

// Client binds the four collaborators — rate limiter, router, provider
// registry, telemetry producer — into a single chat(key, request) entry
// point. The zero value is not usable; build one
// with New.
type Client struct {
	limiter  *ratelimit.Limiter
	router   *router.Router
	registry *provider.Registry
	producer *telemetry.Producer
	shared    *configsync.SharedConfig
	metrics   *metrics.Collector
	logger    *zap.Logger
	estimator *tokencount.Estimator
}

// New builds a Client from its already-constructed collaborators. shared
// must be kept current by a running configsync.Manager.SubscribeToConfigUpdates
// loop for the resolved policy to reflect control-plane changes.
func New(
	limiter *ratelimit.Limiter,
	rtr *router.Router,
	registry *provider.Registry,
	producer *telemetry.Producer,
	shared *configsync.SharedConfig,
	opts ...Option,
) *Client {
	o := &options{logger: zap.NewNop(), estimator: tokencount.NewEstimator()}
	for _, opt := range opts {
		opt(o)
	}
	return &Client{
		limiter:   limiter,
		router:    rtr,
		registry:  registry,
		producer:  producer,
		shared:    shared,
		metrics:   o.metrics,
		logger:    o.logger.With(zap.String("component", "client")),
		estimator: o.estimator,
	}
}

// Chat runs the eight-step admission sequence: Validated → Admitted →
// Resolved → Dispatched → Returned. Rejection at any stage is terminal
// with a typed error kind; there are no retries.
func (c *Client) Chat(ctx context.Context, key string, req *model.ChatRequest) (*model.ChatResponse, error) {
	// 1. Validate request.
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// 2. t0 := now().
	t0 := time.Now()

	// 3. is_allowed(key, token_cost) — token_cost approximates prompt plus
	// completion tokens so the TPM bucket reflects the request's real cost
	// rather than a flat placeholder.
	tokenCost, err := c.estimator.Estimate(req)
	if err != nil {
		c.logger.Warn("token estimate failed, falling back to cost 1", zap.Error(err))
		tokenCost = 1
	}
	allowed, err := c.limiter.IsAllowed(ctx, key, tokenCost, 0, 0)
	if err != nil {
		c.recordDecision("error")
		return nil, err
	}
	if !allowed {
		c.recordDecision("denied")
		return nil, model.RateLimitError("Rate limit exceeded")
	}
	c.recordDecision("allowed")

	// 4. Load the current snapshot (SharedConfig.Get holds the read lock
	// only while loading the pointer), then resolve the model and look up
	// the provider's API key on it; the lock is not held for these steps.
	cfg := c.shared.Get()
	targetModel, prov, err := c.router.Resolve(req.Model, cfg)
	if err != nil {
		return nil, err
	}
	apiKey, ok := cfg.APIKeys[prov]
	if !ok {
		return nil, model.ConfigError("no api key configured for provider: " + prov.String())
	}

	// 5. Dispatch to the resolved provider's caller.
	resp, err := c.registry.Dispatch(ctx, prov, apiKey, targetModel, req)
	if err != nil {
		return nil, err
	}

	// 6. Record telemetry — errors are swallowed by the producer itself.
	elapsedMs := time.Since(t0).Milliseconds()
	c.producer.Record(key, targetModel, resp.Usage.InputTokens, resp.Usage.OutputTokens, elapsedMs)

	// 7. Record rate-limit usage counters — errors are swallowed.
	totalTokens := uint64(resp.Usage.InputTokens + resp.Usage.OutputTokens)
	if err := c.limiter.RecordUsage(ctx, key, totalTokens); err != nil {
		c.logger.Warn("record usage failed", zap.String("key", maskKey(key)), zap.Error(err))
	}

	if c.metrics != nil {
		c.metrics.RecordProviderRequest(prov.String(), targetModel, "success", time.Since(t0),
			resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}

	// 8. Return the response.
	return resp, nil
}

func (c *Client) recordDecision(decision string) {
	if c.metrics != nil {
		c.metrics.RecordRateLimitDecision(decision)
	}
}

// maskKey truncates key to its SHA-256 hash's last 8 hex characters for
// logging, the same convention internal/telemetry uses for the same field:
// the caller's key is never printed verbatim.
func maskKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	hexSum := hex.EncodeToString(sum[:])
	return "…" + hexSum[len(hexSum)-8:]
}
