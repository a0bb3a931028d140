package api

import (
	"bytes"
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
	"github.com/BaSui01/hyperinfer/internal/store"
	"github.com/BaSui01/hyperinfer/internal/tenant"
)

func TestGenerateAPIKey_ProducesUniquePrefixedKeys(t *testing.T) {
	a, err := generateAPIKey()
	require.NoError(t, err)
	b, err := generateAPIKey()
	require.NoError(t, err)

	assert.Contains(t, a, "hi_")
	assert.NotEqual(t, a, b)
}

func TestHashAPIKey_IsDeterministic(t *testing.T) {
	assert.Equal(t, hashAPIKey("hi_abc"), hashAPIKey("hi_abc"))
	assert.NotEqual(t, hashAPIKey("hi_abc"), hashAPIKey("hi_def"))
}

func TestAPIKeyHandler_HandleCreate_ReturnsPlaintextOnce(t *testing.T) {
	repo := tenant.New(newTestTenantDB(t))
	team, err := repo.CreateTeam(context.Background(), "acme", 0)
	require.NoError(t, err)
	user, err := repo.CreateUser(context.Background(), team.ID, "dave@acme.test", "member")
	require.NoError(t, err)

	h := NewAPIKeyHandler(repo, nil, zap.NewNop())
	body := bytes.NewBufferString(`{"user_id":"` + user.ID + `","team_id":"` + team.ID + `","name":"ci"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/api-keys", body)
	w := httptest.NewRecorder()

	h.HandleCreate(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	data := resp.Data.(map[string]any)
	key, ok := data["key"].(string)
	require.True(t, ok)
	assert.Contains(t, key, "hi_")
	// The persisted record never carries key_hash back over the wire.
	_, hasHash := data["key_hash"]
	assert.False(t, hasHash)
}

func TestAPIKeyHandler_HandleRevoke(t *testing.T) {
	repo := tenant.New(newTestTenantDB(t))
	team, err := repo.CreateTeam(context.Background(), "acme", 0)
	require.NoError(t, err)
	user, err := repo.CreateUser(context.Background(), team.ID, "erin@acme.test", "member")
	require.NoError(t, err)
	key, err := repo.CreateAPIKey(context.Background(), "some-hash", user.ID, team.ID, "ci")
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	cfgManager := configsync.New(store.NewFromClient(client, zap.NewNop()), zap.NewNop())

	h := NewAPIKeyHandler(repo, cfgManager, zap.NewNop())
	req := httptest.NewRequest(http.MethodDelete, "/v1/api-keys/"+key.ID, nil)
	req.SetPathValue("id", key.ID)
	w := httptest.NewRecorder()

	h.HandleRevoke(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	fetched, err := repo.GetAPIKey(context.Background(), key.ID)
	require.NoError(t, err)
	assert.False(t, fetched.IsActive)
}

func TestAPIKeyHandler_HandleRevoke_NotFound(t *testing.T) {
	repo := tenant.New(newTestTenantDB(t))
	h := NewAPIKeyHandler(repo, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodDelete, "/v1/api-keys/00000000-0000-0000-0000-000000000000", nil)
	req.SetPathValue("id", "00000000-0000-0000-0000-000000000000")
	w := httptest.NewRecorder()

	h.HandleRevoke(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
