// Package configsync distributes the authoritative policy snapshot from
// the control plane to every data-plane instance: a durable keyed
// snapshot plus a pub/sub notification channel, with a second channel for
// lightweight per-key revoke/update signals that don't warrant a full
// snapshot refresh. Its reconnect-with-backoff shape is grounded on
// internal/cache/manager.go's health-check loop; the fetch/publish/
// subscribe bodies are authored fresh for this store layout.
package configsync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/BaSui01/hyperinfer/internal/model"
	"github.com/BaSui01/hyperinfer/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// ConfigSnapshotKey is the durable fallback snapshot key.
	ConfigSnapshotKey = "hyperinfer:config"
	// ConfigUpdatesChannel carries {"config": Config} notifications.
	ConfigUpdatesChannel = "hyperinfer:config_updates"
	// PolicyUpdatesChannel carries {"key","action","reason"} notifications.
	PolicyUpdatesChannel = "hyperinfer:policy_updates"

	reconnectInitialBackoff = 1 * time.Second
	reconnectMaxBackoff     = 60 * time.Second
)

// PolicyAction identifies the kind of per-key policy change.
type PolicyAction string

const (
	PolicyActionRevoke PolicyAction = "revoke"
	PolicyActionUpdate PolicyAction = "update"
)

// PolicyUpdate is a single fire-and-forget policy notification.
type PolicyUpdate struct {
	Key    string       `json:"key"`
	Action PolicyAction `json:"action"`
	Reason string       `json:"reason,omitempty"`
}

// configEnvelope is the wire shape published on ConfigUpdatesChannel.
type configEnvelope struct {
	Config *model.Config `json:"config"`
}

// PolicyCallback receives each valid policy update. It must be safe to
// call concurrently with itself.
type PolicyCallback func(update PolicyUpdate)

// Manager provides the control-plane-facing publish operations and the
// data-plane-facing snapshot/subscription operations. A single Manager
// can be used on either side; which methods are called depends on the
// role of the process.
type Manager struct {
	store  *store.Store
	logger *zap.Logger
	fetch  singleflight.Group
}

// New builds a Manager bound to st.
func New(st *store.Store, logger *zap.Logger) *Manager {
	return &Manager{store: st, logger: logger.With(zap.String("component", "configsync"))}
}

// FetchConfig reads the snapshot key as JSON. Absence is not an error: it
// returns an empty default Config. Concurrent callers collapse onto a
// single in-flight Redis round trip via singleflight, since a cold cache
// or a reconnect storm can otherwise produce a thundering herd of
// identical GETs.
func (m *Manager) FetchConfig(ctx context.Context) (*model.Config, error) {
	v, err, _ := m.fetch.Do(ConfigSnapshotKey, func() (interface{}, error) {
		return m.fetchConfig(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Config), nil
}

func (m *Manager) fetchConfig(ctx context.Context) (*model.Config, error) {
	raw, err := m.store.Get(ctx, ConfigSnapshotKey)
	if err != nil {
		if isNilReply(err) {
			return model.NewConfig(), nil
		}
		return nil, model.NewError(model.ErrStoreConfigError, "failed to fetch config snapshot").WithCause(err)
	}

	cfg := model.NewConfig()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, model.NewError(model.ErrStoreSerialization, "failed to decode config snapshot").WithCause(err)
	}
	return cfg, nil
}

// PublishConfigUpdate writes the snapshot key first, then publishes a
// notification. Ordering matters: a subscriber reacting to the
// notification may refetch the key and must find the new contents there.
// cfg.APIKeys never reaches either the key or the channel: Config's
// json:"-" tag on APIKeys enforces that at the type boundary.
func (m *Manager) PublishConfigUpdate(ctx context.Context, cfg *model.Config) error {
	snapshot, err := json.Marshal(cfg)
	if err != nil {
		return model.NewError(model.ErrStoreSerialization, "failed to encode config snapshot").WithCause(err)
	}
	if err := m.store.Set(ctx, ConfigSnapshotKey, snapshot, 0); err != nil {
		return model.NewError(model.ErrStoreConfigError, "failed to write config snapshot").WithCause(err)
	}

	payload, err := json.Marshal(configEnvelope{Config: cfg})
	if err != nil {
		return model.NewError(model.ErrStoreSerialization, "failed to encode config update envelope").WithCause(err)
	}
	if err := m.store.Publish(ctx, ConfigUpdatesChannel, payload); err != nil {
		return model.NewError(model.ErrStoreConfigError, "failed to publish config update").WithCause(err)
	}
	return nil
}

// PublishPolicyUpdate is a fire-and-forget publish to PolicyUpdatesChannel.
func (m *Manager) PublishPolicyUpdate(ctx context.Context, update PolicyUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return model.NewError(model.ErrStoreSerialization, "failed to encode policy update").WithCause(err)
	}
	if err := m.store.Publish(ctx, PolicyUpdatesChannel, payload); err != nil {
		return model.NewError(model.ErrStoreConfigError, "failed to publish policy update").WithCause(err)
	}
	return nil
}

// SharedConfig holds the current config snapshot behind a reader-writer
// lock: readers stay cheap and hold briefly, the writer is the
// subscription task. The zero value is not usable; construct with
// NewSharedConfig.
type SharedConfig struct {
	mu  sync.RWMutex
	cfg *model.Config
}

// NewSharedConfig seeds the shared snapshot with an initial value (typically
// the result of FetchConfig).
func NewSharedConfig(initial *model.Config) *SharedConfig {
	if initial == nil {
		initial = model.NewConfig()
	}
	return &SharedConfig{cfg: initial}
}

// Get returns the current snapshot. The read lock covers only loading the
// pointer; replace swaps in a new *model.Config rather than mutating the
// old one, and callers read the returned snapshot without the lock.
func (s *SharedConfig) Get() *model.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *SharedConfig) replace(cfg *model.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// SubscribeToConfigUpdates runs until ctx is cancelled, subscribing to
// ConfigUpdatesChannel and atomically replacing shared on every valid
// message. Malformed messages are logged and skipped. Subscription errors
// trigger a reconnect with exponential backoff (1s to a 60s cap), reset to
// 1s after any message is successfully processed.
func (m *Manager) SubscribeToConfigUpdates(ctx context.Context, shared *SharedConfig) error {
	backoff := reconnectInitialBackoff

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := m.runConfigSubscription(ctx, shared, &backoff); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Warn("config subscription failed, reconnecting", zap.Error(err), zap.Duration("backoff", backoff))
			if !sleepOrDone(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
		}
	}
}

func (m *Manager) runConfigSubscription(ctx context.Context, shared *SharedConfig, backoff *time.Duration) error {
	sub := m.store.Subscribe(ctx, ConfigUpdatesChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var envelope configEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil || envelope.Config == nil {
				m.logger.Warn("dropping malformed config update", zap.Error(err))
				continue
			}
			shared.replace(envelope.Config)
			*backoff = reconnectInitialBackoff
		}
	}
}

// SubscribeToPolicyUpdates runs until ctx is cancelled, subscribing to
// PolicyUpdatesChannel and handing each valid PolicyUpdate to callback.
// Same reconnect-with-backoff discipline as SubscribeToConfigUpdates.
func (m *Manager) SubscribeToPolicyUpdates(ctx context.Context, callback PolicyCallback) error {
	backoff := reconnectInitialBackoff

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := m.runPolicySubscription(ctx, callback, &backoff); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Warn("policy subscription failed, reconnecting", zap.Error(err), zap.Duration("backoff", backoff))
			if !sleepOrDone(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
		}
	}
}

func (m *Manager) runPolicySubscription(ctx context.Context, callback PolicyCallback, backoff *time.Duration) error {
	sub := m.store.Subscribe(ctx, PolicyUpdatesChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var update PolicyUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				m.logger.Warn("dropping malformed policy update", zap.Error(err))
				continue
			}
			callback(update)
			*backoff = reconnectInitialBackoff
		}
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > reconnectMaxBackoff {
		return reconnectMaxBackoff
	}
	return next
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func isNilReply(err error) bool {
	return err != nil && err.Error() == "redis: nil"
}
