package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/hyperinfer/internal/model"
	"github.com/BaSui01/hyperinfer/internal/tenant"
)

// ModelAliasHandler serves CRUD over team-scoped model aliases — the
// control-plane side of the router's alias-lookup resolution step.
type ModelAliasHandler struct {
	repo   *tenant.Repository
	logger *zap.Logger
}

// NewModelAliasHandler builds a ModelAliasHandler bound to repo.
func NewModelAliasHandler(repo *tenant.Repository, logger *zap.Logger) *ModelAliasHandler {
	return &ModelAliasHandler{repo: repo, logger: logger.With(zap.String("component", "api.aliases"))}
}

type createAliasRequest struct {
	TeamID      string `json:"team_id"`
	Alias       string `json:"alias"`
	TargetModel string `json:"target_model"`
	Provider    string `json:"provider"`
}

// HandleCreate POST /v1/model-aliases
func (h *ModelAliasHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, model.ErrConfigError, "method not allowed", h.logger)
		return
	}

	var req createAliasRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.TeamID == "" || req.Alias == "" || req.TargetModel == "" {
		WriteErrorMessage(w, http.StatusBadRequest, model.ErrConfigError, "team_id, alias and target_model are required", h.logger)
		return
	}

	alias, err := h.repo.CreateModelAlias(r.Context(), req.TeamID, req.Alias, req.TargetModel, req.Provider)
	if err != nil {
		handleRepoError(w, err, h.logger)
		return
	}
	WriteCreated(w, alias)
}

// HandleList GET /v1/teams/{teamId}/model-aliases
func (h *ModelAliasHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, model.ErrConfigError, "method not allowed", h.logger)
		return
	}

	teamID := pathValue(r, "teamId", 2)
	aliases, err := h.repo.ListModelAliases(r.Context(), teamID)
	if err != nil {
		handleRepoError(w, err, h.logger)
		return
	}
	WriteSuccess(w, aliases)
}
