// Package store wraps the Redis client that backs every distributed
// coordination primitive the gateway needs: atomic scripted evaluation,
// append-only streams with consumer groups, pub/sub channels, and plain
// key/value get-set. All four coordination subsystems (rate limiter, config
// manager, telemetry producer/consumer) depend on this single abstraction
// and nothing else.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config configures the underlying Redis connection.
type Config struct {
	Addr                string        `yaml:"addr" env:"REDIS_ADDR"`
	URL                 string        `yaml:"url" env:"REDIS_URL"`
	Password            string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB                  int           `yaml:"db" env:"REDIS_DB"`
	MaxRetries          int           `yaml:"max_retries"`
	PoolSize            int           `yaml:"pool_size"`
	MinIdleConns        int           `yaml:"min_idle_conns"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
}

// DefaultConfig returns sane defaults for local development.
func DefaultConfig() Config {
	return Config{
		Addr:                "localhost:6379",
		DB:                  0,
		MaxRetries:          3,
		PoolSize:            10,
		MinIdleConns:        2,
		HealthCheckInterval: 30 * time.Second,
	}
}

// Store is the concrete Redis-backed implementation of the shared
// coordination substrate every component depends on. It is deliberately a
// thin wrapper: callers (ratelimit, router's config source, telemetry,
// configsync) own the semantics, this package only owns connectivity.
type Store struct {
	client *redis.Client
	logger *zap.Logger
	closed bool
}

// New dials Redis and verifies connectivity with a PING. If cfg.URL is set
// it takes precedence over Addr/Password/DB (grounded on the standard
// REDIS_URL environment convention).
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	s := &Store{client: client, logger: logger.With(zap.String("component", "store"))}
	s.logger.Info("store connected", zap.String("addr", opts.Addr))
	return s, nil
}

// NewFromClient wraps an already-constructed client; used by tests wiring a
// miniredis instance.
func NewFromClient(client *redis.Client, logger *zap.Logger) *Store {
	return &Store{client: client, logger: logger.With(zap.String("component", "store"))}
}

// RunScript evaluates a Lua script atomically against the given keys.
// This is the atomic-script-evaluation primitive; the RPM and GCRA
// algorithms in internal/ratelimit are both expressed as scripts run
// through this method.
func (s *Store) RunScript(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) *redis.Cmd {
	return script.Run(ctx, s.client, keys, args...)
}

// Get returns the raw bytes stored under key, or redis.Nil if absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores raw bytes under key, optionally with a TTL (ttl == 0 means no
// expiry).
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Publish broadcasts payload on channel.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	return s.client.Publish(ctx, channel, payload).Err()
}

// Subscribe returns a subscription whose Channel() yields messages
// published on channel. Callers are responsible for closing it.
func (s *Store) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return s.client.Subscribe(ctx, channel)
}

// EnsureGroup creates a consumer group on stream starting at id startID,
// creating the stream itself if absent (MKSTREAM). A BUSYGROUP response
// (group already exists) is treated as success, matching the idempotent
// group-creation contract consumers rely on.
func (s *Store) EnsureGroup(ctx context.Context, stream, group, startID string) error {
	err := s.client.XGroupCreateMkStream(ctx, stream, group, startID).Err()
	if err == nil {
		return nil
	}
	if isBusyGroup(err) {
		return nil
	}
	return err
}

func isBusyGroup(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}

// AppendStream appends fields as a new entry to stream with a store-assigned
// monotonic id.
func (s *Store) AppendStream(ctx context.Context, stream string, fields map[string]interface{}) (string, error) {
	return s.client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: fields}).Result()
}

// ReadGroup performs a blocking consumer-group read of up to count entries,
// waiting at most block for new data.
func (s *Store) ReadGroup(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]redis.XStream, error) {
	res, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Ack acknowledges one or more entry ids on stream/group.
func (s *Store) Ack(ctx context.Context, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.client.XAck(ctx, stream, group, ids...).Err()
}

// AutoClaim reclaims pending entries idle for at least minIdle, starting the
// scan at cursor (use "0" for the first call), up to count entries at a
// time. The returned cursor is "0" once the whole pending-entries list has
// been scanned.
func (s *Store) AutoClaim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, cursor string, count int64) ([]redis.XMessage, string, error) {
	msgs, next, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    cursor,
		Count:    count,
	}).Result()
	if err != nil {
		return nil, "", err
	}
	return msgs, next, nil
}

// PendingCount returns the number of entries in stream/group's pending
// entries list (XPENDING summary form) — the consumer group's unacked
// backlog, used to report consumer lag.
func (s *Store) PendingCount(ctx context.Context, stream, group string) (int64, error) {
	summary, err := s.client.XPending(ctx, stream, group).Result()
	if err != nil {
		return 0, err
	}
	return summary.Count, nil
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
