package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := NewFromClient(client, zap.NewNop())
	t.Cleanup(func() { _ = st.Close() })
	return mr, st
}

func TestNew_ConnectsAndPings(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	st, err := New(Config{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	defer st.Close()

	assert.NoError(t, st.Ping(context.Background()))
}

func TestNew_UnreachableAddrFails(t *testing.T) {
	_, err := New(Config{Addr: "127.0.0.1:1"}, zap.NewNop())
	require.Error(t, err)
}

func TestNew_PrefersURLOverAddr(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	st, err := New(Config{Addr: "127.0.0.1:1", URL: "redis://" + mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	defer st.Close()

	assert.NoError(t, st.Ping(context.Background()))
}

func TestStore_SetAndGet(t *testing.T) {
	_, st := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "k", []byte("v"), 0))
	val, err := st.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)
}

func TestStore_Get_MissingKeyReturnsRedisNil(t *testing.T) {
	_, st := setupTestStore(t)
	_, err := st.Get(context.Background(), "missing")
	require.ErrorIs(t, err, redis.Nil)
}

func TestStore_Set_RespectsTTL(t *testing.T) {
	mr, st := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := st.Get(ctx, "k")
	require.ErrorIs(t, err, redis.Nil)
}

func TestStore_PublishSubscribe(t *testing.T) {
	_, st := setupTestStore(t)
	ctx := context.Background()

	sub := st.Subscribe(ctx, "chan")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, st.Publish(ctx, "chan", []byte("hello")))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "hello", msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestStore_EnsureGroup_IdempotentOnSecondCall(t *testing.T) {
	_, st := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.EnsureGroup(ctx, "stream", "group", "0"))
	require.NoError(t, st.EnsureGroup(ctx, "stream", "group", "0"))
}

func TestStore_AppendReadAckCycle(t *testing.T) {
	_, st := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.EnsureGroup(ctx, "stream", "group", "0"))
	id, err := st.AppendStream(ctx, "stream", map[string]interface{}{"k": "v"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	streams, err := st.ReadGroup(ctx, "stream", "group", "consumer-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, streams, 1)
	require.Len(t, streams[0].Messages, 1)
	assert.Equal(t, id, streams[0].Messages[0].ID)

	require.NoError(t, st.Ack(ctx, "stream", "group", id))

	count, err := st.PendingCount(ctx, "stream", "group")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStore_PendingCount_ReflectsUnackedEntries(t *testing.T) {
	_, st := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.EnsureGroup(ctx, "stream", "group", "0"))
	_, err := st.AppendStream(ctx, "stream", map[string]interface{}{"k": "v"})
	require.NoError(t, err)

	_, err = st.ReadGroup(ctx, "stream", "group", "consumer-1", 10, 0)
	require.NoError(t, err)

	count, err := st.PendingCount(ctx, "stream", "group")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStore_Ack_EmptyIDsIsNoop(t *testing.T) {
	_, st := setupTestStore(t)
	assert.NoError(t, st.Ack(context.Background(), "stream", "group"))
}

func TestStore_Close_IsIdempotent(t *testing.T) {
	_, st := setupTestStore(t)
	require.NoError(t, st.Close())
	require.NoError(t, st.Close())
}

func TestDefaultConfig_HasSaneDevelopmentDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 10, cfg.PoolSize)
}
