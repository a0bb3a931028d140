package configsync

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/hyperinfer/internal/model"
	"github.com/BaSui01/hyperinfer/internal/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	st := store.NewFromClient(client, zap.NewNop())
	return New(st, zap.NewNop())
}

func TestFetchConfig_AbsentKeyReturnsEmptyDefault(t *testing.T) {
	m := newTestManager(t)
	cfg, err := m.FetchConfig(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Empty(t, cfg.ModelAliases)
	require.Empty(t, cfg.RoutingRules)
	require.Empty(t, cfg.Quotas)
}

func TestPublishConfigUpdate_WritesSnapshotBeforePublishing(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	cfg := model.NewConfig()
	cfg.ModelAliases["fast"] = "openai/gpt-4o-mini"
	cfg.APIKeys[model.ProviderOpenAI] = "sk-should-never-serialize"

	require.NoError(t, m.PublishConfigUpdate(ctx, cfg))

	fetched, err := m.FetchConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, "openai/gpt-4o-mini", fetched.ModelAliases["fast"])
	require.Empty(t, fetched.APIKeys, "api_keys must never persist in the snapshot")
}

// A publisher that writes snapshot S2 causes a subscriber's shared
// config, previously S1, to become S2 within one round-trip.
func TestSubscribeToConfigUpdates_ReplacesSharedSnapshot(t *testing.T) {
	m := newTestManager(t)
	shared := NewSharedConfig(model.NewConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() { _ = m.SubscribeToConfigUpdates(ctx, shared) }()
	time.Sleep(100 * time.Millisecond) // allow the subscription to establish

	cfg := model.NewConfig()
	cfg.ModelAliases["fast"] = "anthropic/claude-3-haiku"
	require.NoError(t, m.PublishConfigUpdate(ctx, cfg))

	require.Eventually(t, func() bool {
		return shared.Get().ModelAliases["fast"] == "anthropic/claude-3-haiku"
	}, time.Second, 10*time.Millisecond)
}

func TestSubscribeToPolicyUpdates_DeliversValidUpdatesSkipsMalformed(t *testing.T) {
	m := newTestManager(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	received := make(chan PolicyUpdate, 1)
	go func() {
		_ = m.SubscribeToPolicyUpdates(ctx, func(update PolicyUpdate) {
			received <- update
		})
	}()
	time.Sleep(100 * time.Millisecond)

	// A malformed payload published first must be skipped, so the first
	// update delivered to the callback is the valid one below.
	require.NoError(t, m.store.Publish(ctx, PolicyUpdatesChannel, []byte("not json")))
	require.NoError(t, m.PublishPolicyUpdate(ctx, PolicyUpdate{
		Key: "tenant-1", Action: PolicyActionRevoke, Reason: "quota exceeded",
	}))

	select {
	case update := <-received:
		require.Equal(t, "tenant-1", update.Key)
		require.Equal(t, PolicyActionRevoke, update.Action)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for policy update")
	}
}
