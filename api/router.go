package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/hyperinfer/internal/configsync"
	"github.com/BaSui01/hyperinfer/internal/tenant"
)

// NewRouter builds the admin HTTP mux: CRUD over the five tenant
// entities plus the data-plane-facing config sync endpoint. Route patterns
// use Go 1.22+'s method-prefixed mux patterns, the same convention used
// for the health/version endpoints across this module's command binaries.
func NewRouter(repo *tenant.Repository, cfgManager *configsync.Manager, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	teams := NewTeamHandler(repo, logger)
	users := NewUserHandler(repo, logger)
	apiKeys := NewAPIKeyHandler(repo, cfgManager, logger)
	aliases := NewModelAliasHandler(repo, logger)
	quotas := NewQuotaHandler(repo, logger)
	cfgSync := NewConfigSyncHandler(cfgManager, logger)

	mux.HandleFunc("POST /v1/teams", teams.HandleCreate)
	mux.HandleFunc("GET /v1/teams/{id}", teams.HandleGet)

	mux.HandleFunc("POST /v1/users", users.HandleCreate)
	mux.HandleFunc("GET /v1/users/{id}", users.HandleGet)

	mux.HandleFunc("POST /v1/api-keys", apiKeys.HandleCreate)
	mux.HandleFunc("GET /v1/api-keys/{id}", apiKeys.HandleGet)
	mux.HandleFunc("DELETE /v1/api-keys/{id}", apiKeys.HandleRevoke)

	mux.HandleFunc("POST /v1/model-aliases", aliases.HandleCreate)
	mux.HandleFunc("GET /v1/teams/{teamId}/model-aliases", aliases.HandleList)

	mux.HandleFunc("POST /v1/quotas", quotas.HandleCreate)
	mux.HandleFunc("GET /v1/teams/{teamId}/quota", quotas.HandleGet)
	mux.HandleFunc("PUT /v1/teams/{teamId}/quota", quotas.HandleUpdate)

	mux.HandleFunc("GET /v1/config/sync", cfgSync.HandleGet)

	return mux
}
