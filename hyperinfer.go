// Package hyperinfer provides a top-level convenience entry point for
// wiring up a data-plane gateway client with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/hyperinfer"
//
//	c, err := hyperinfer.New(
//		hyperinfer.WithStoreAddr("localhost:6379"),
//		hyperinfer.WithOpenAIAPIKey(os.Getenv("OPENAI_API_KEY")),
//		hyperinfer.WithAnthropicAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
//	)
//	resp, err := c.Chat(ctx, "caller-key", &model.ChatRequest{...})
//
// This is a thin wrapper around internal/client's orchestrator: it dials
// the shared store, fetches the initial config snapshot, starts the
// background config subscription, and hands the result to
// client.New. Use this package when you just need a working gateway
// client; reach into internal/client directly when you need to supply
// already-built collaborators (tests, custom wiring).
package hyperinfer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/hyperinfer/internal/client"
	"github.com/BaSui01/hyperinfer/internal/configsync"
	"github.com/BaSui01/hyperinfer/internal/metrics"
	"github.com/BaSui01/hyperinfer/internal/model"
	"github.com/BaSui01/hyperinfer/internal/provider"
	"github.com/BaSui01/hyperinfer/internal/ratelimit"
	"github.com/BaSui01/hyperinfer/internal/router"
	"github.com/BaSui01/hyperinfer/internal/store"
	"github.com/BaSui01/hyperinfer/internal/telemetry"
)

// Option configures the Client built by New.
type Option func(*options)

type options struct {
	storeConfig      store.Config
	openAIKey        string
	openAIBaseURL    string
	anthropicKey     string
	anthropicBaseURL string
	logger           *zap.Logger
	metrics          *metrics.Collector
}

// WithStoreAddr sets the Redis address backing the rate limiter, config
// sync and telemetry stream.
func WithStoreAddr(addr string) Option {
	return func(o *options) { o.storeConfig.Addr = addr }
}

// WithStoreConfig sets the full store.Config, overriding any previously set
// address/credentials.
func WithStoreConfig(cfg store.Config) Option {
	return func(o *options) { o.storeConfig = cfg }
}

// WithOpenAIAPIKey sets the OpenAI credential. This never traverses the
// config snapshot or pub/sub; it lives only in this process's memory.
func WithOpenAIAPIKey(key string) Option {
	return func(o *options) { o.openAIKey = key }
}

// WithOpenAIBaseURL overrides the OpenAI API base URL (for testing against
// a local double).
func WithOpenAIBaseURL(url string) Option {
	return func(o *options) { o.openAIBaseURL = url }
}

// WithAnthropicAPIKey sets the Anthropic credential (see WithOpenAIAPIKey).
func WithAnthropicAPIKey(key string) Option {
	return func(o *options) { o.anthropicKey = key }
}

// WithAnthropicBaseURL overrides the Anthropic API base URL.
func WithAnthropicBaseURL(url string) Option {
	return func(o *options) { o.anthropicBaseURL = url }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics attaches a metrics.Collector to the client, which records
// rate-limit decisions and provider calls with it. The background config
// subscription does not record metrics.
func WithMetrics(collector *metrics.Collector) Option {
	return func(o *options) { o.metrics = collector }
}

// Client is a ready-to-use data-plane gateway: it owns a store connection
// and the background goroutines that keep its config snapshot current.
type Client struct {
	inner  *client.Client
	store  *store.Store
	cancel context.CancelFunc
}

// New dials the store, fetches the initial policy snapshot, starts the
// background config subscription, and returns a ready Client. The
// returned Client owns a background context; call Close to stop it and
// release the store connection.
func New(opts ...Option) (*Client, error) {
	o := &options{
		storeConfig: store.DefaultConfig(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	st, err := store.New(o.storeConfig, o.logger)
	if err != nil {
		return nil, err
	}

	configManager := configsync.New(st, o.logger)
	ctx, cancel := context.WithCancel(context.Background())

	fetchCtx, fetchCancel := context.WithTimeout(ctx, 5*time.Second)
	cfg, err := configManager.FetchConfig(fetchCtx)
	fetchCancel()
	if err != nil {
		cancel()
		_ = st.Close()
		return nil, err
	}
	if o.openAIKey != "" {
		cfg.APIKeys[model.ProviderOpenAI] = o.openAIKey
	}
	if o.anthropicKey != "" {
		cfg.APIKeys[model.ProviderAnthropic] = o.anthropicKey
	}
	shared := configsync.NewSharedConfig(cfg)

	go func() {
		if err := configManager.SubscribeToConfigUpdates(ctx, shared); err != nil && ctx.Err() == nil {
			o.logger.Warn("config subscription stopped", zap.Error(err))
		}
	}()

	limiter := ratelimit.New(st, o.logger)
	rtr := router.New(o.logger)
	registry := provider.NewRegistry(
		provider.NewOpenAICaller(o.openAIBaseURL, o.logger),
		provider.NewAnthropicCaller(o.anthropicBaseURL, o.logger),
	)
	producer := telemetry.NewProducer(st, o.logger)

	var clientOpts []client.Option
	clientOpts = append(clientOpts, client.WithLogger(o.logger))
	if o.metrics != nil {
		clientOpts = append(clientOpts, client.WithMetrics(o.metrics))
	}

	return &Client{
		inner:  client.New(limiter, rtr, registry, producer, shared, clientOpts...),
		store:  st,
		cancel: cancel,
	}, nil
}

// Chat implements the data-plane entry point: chat(key, request) →
// response.
func (c *Client) Chat(ctx context.Context, key string, req *model.ChatRequest) (*model.ChatResponse, error) {
	return c.inner.Chat(ctx, key, req)
}

// Close stops the background config subscription and releases the store
// connection.
func (c *Client) Close() error {
	c.cancel()
	return c.store.Close()
}
