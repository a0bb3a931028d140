package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/hyperinfer/internal/configsync"
	"github.com/BaSui01/hyperinfer/internal/model"
)

// ConfigSyncHandler serves the data-plane-facing GET /v1/config/sync
// endpoint: a read-only view of the control plane's current
// routing/alias/quota snapshot. APIKeys never reaches the wire — Config's
// json:"-" tag on that field enforces it at the type boundary, same as the
// Redis snapshot and pub/sub payload.
type ConfigSyncHandler struct {
	manager *configsync.Manager
	logger  *zap.Logger
}

// NewConfigSyncHandler builds a ConfigSyncHandler bound to manager.
func NewConfigSyncHandler(manager *configsync.Manager, logger *zap.Logger) *ConfigSyncHandler {
	return &ConfigSyncHandler{manager: manager, logger: logger.With(zap.String("component", "api.configsync"))}
}

// HandleGet GET /v1/config/sync
func (h *ConfigSyncHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, model.ErrConfigError, "method not allowed", h.logger)
		return
	}

	cfg, err := h.manager.FetchConfig(r.Context())
	if err != nil {
		handleRepoError(w, err, h.logger)
		return
	}
	WriteSuccess(w, cfg)
}
