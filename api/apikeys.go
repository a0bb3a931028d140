package api

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/hyperinfer/internal/configsync"
	"github.com/BaSui01/hyperinfer/internal/model"
	"github.com/BaSui01/hyperinfer/internal/tenant"
)

// APIKeyHandler serves CRUD over data-plane API keys. The plaintext key is
// generated server-side and returned exactly once, at creation time;
// everywhere else only its hash is stored, and that hash is never
// serialized (tenant.APIKey.KeyHash carries json:"-").
type APIKeyHandler struct {
	repo       *tenant.Repository
	cfgManager *configsync.Manager
	logger     *zap.Logger
}

// NewAPIKeyHandler builds an APIKeyHandler bound to repo. cfgManager may be
// nil; when set, HandleRevoke fires a PolicyUpdate so data-plane instances
// stop honoring a revoked key without waiting for the next periodic
// reconciliation.
func NewAPIKeyHandler(repo *tenant.Repository, cfgManager *configsync.Manager, logger *zap.Logger) *APIKeyHandler {
	return &APIKeyHandler{repo: repo, cfgManager: cfgManager, logger: logger.With(zap.String("component", "api.apikeys"))}
}

type createAPIKeyRequest struct {
	UserID string `json:"user_id"`
	TeamID string `json:"team_id"`
	Name   string `json:"name"`
}

type createdAPIKeyResponse struct {
	*tenant.APIKey
	Key string `json:"key"`
}

// generateAPIKey returns a random 32-byte key hex-encoded, prefixed so it's
// recognizable in logs/config without decoding.
func generateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "hi_" + hex.EncodeToString(buf), nil
}

func hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// HandleCreate POST /v1/api-keys
func (h *APIKeyHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, model.ErrConfigError, "method not allowed", h.logger)
		return
	}

	var req createAPIKeyRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.UserID == "" || req.TeamID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, model.ErrConfigError, "user_id and team_id are required", h.logger)
		return
	}

	plaintext, err := generateAPIKey()
	if err != nil {
		WriteErrorMessage(w, http.StatusInternalServerError, model.ErrDBError, "failed to generate key", h.logger)
		return
	}

	key, err := h.repo.CreateAPIKey(r.Context(), hashAPIKey(plaintext), req.UserID, req.TeamID, req.Name)
	if err != nil {
		handleRepoError(w, err, h.logger)
		return
	}

	WriteCreated(w, createdAPIKeyResponse{APIKey: key, Key: plaintext})
}

// HandleGet GET /v1/api-keys/{id}
func (h *APIKeyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, model.ErrConfigError, "method not allowed", h.logger)
		return
	}

	id := pathValue(r, "id", 2)
	key, err := h.repo.GetAPIKey(r.Context(), id)
	if err != nil {
		handleRepoError(w, err, h.logger)
		return
	}
	WriteSuccess(w, key)
}

// HandleRevoke DELETE /v1/api-keys/{id}
func (h *APIKeyHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, model.ErrConfigError, "method not allowed", h.logger)
		return
	}

	id := pathValue(r, "id", 2)
	if err := h.repo.RevokeAPIKey(r.Context(), id); err != nil {
		handleRepoError(w, err, h.logger)
		return
	}

	if h.cfgManager != nil {
		update := configsync.PolicyUpdate{Key: id, Action: configsync.PolicyActionRevoke, Reason: "api_key_revoked"}
		if err := h.cfgManager.PublishPolicyUpdate(r.Context(), update); err != nil {
			h.logger.Warn("failed to publish revoke policy update", zap.String("key_id", id), zap.Error(err))
		}
	}

	WriteSuccess(w, map[string]string{"message": "api key revoked"})
}
