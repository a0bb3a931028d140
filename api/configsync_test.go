package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/hyperinfer/internal/configsync"
	"github.com/BaSui01/hyperinfer/internal/model"
	"github.com/BaSui01/hyperinfer/internal/store"
)

func newTestConfigManager(t *testing.T) *configsync.Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	st := store.NewFromClient(client, zap.NewNop())
	return configsync.New(st, zap.NewNop())
}

func TestConfigSyncHandler_HandleGet_EmptyDefault(t *testing.T) {
	manager := newTestConfigManager(t)
	h := NewConfigSyncHandler(manager, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/config/sync", nil)
	w := httptest.NewRecorder()

	h.HandleGet(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
}

func TestConfigSyncHandler_HandleGet_NeverLeaksAPIKeys(t *testing.T) {
	manager := newTestConfigManager(t)
	cfg := model.NewConfig()
	cfg.APIKeys[model.ProviderOpenAI] = "sk-should-never-serialize"
	require.NoError(t, manager.PublishConfigUpdate(context.Background(), cfg))

	h := NewConfigSyncHandler(manager, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/v1/config/sync", nil)
	w := httptest.NewRecorder()

	h.HandleGet(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "sk-should-never-serialize")
}

func TestConfigSyncHandler_HandleGet_WrongMethod(t *testing.T) {
	manager := newTestConfigManager(t)
	h := NewConfigSyncHandler(manager, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/v1/config/sync", nil)
	w := httptest.NewRecorder()

	h.HandleGet(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
