package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/hyperinfer/internal/model"
	"github.com/BaSui01/hyperinfer/internal/tenant"
)

// TeamHandler serves CRUD over teams, the billing/quota boundary entity.
type TeamHandler struct {
	repo   *tenant.Repository
	logger *zap.Logger
}

// NewTeamHandler builds a TeamHandler bound to repo.
func NewTeamHandler(repo *tenant.Repository, logger *zap.Logger) *TeamHandler {
	return &TeamHandler{repo: repo, logger: logger.With(zap.String("component", "api.teams"))}
}

type createTeamRequest struct {
	Name        string `json:"name"`
	BudgetCents int64  `json:"budget_cents"`
}

// HandleCreate POST /v1/teams
func (h *TeamHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, model.ErrConfigError, "method not allowed", h.logger)
		return
	}

	var req createTeamRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Name == "" {
		WriteErrorMessage(w, http.StatusBadRequest, model.ErrConfigError, "name is required", h.logger)
		return
	}

	team, err := h.repo.CreateTeam(r.Context(), req.Name, req.BudgetCents)
	if err != nil {
		handleRepoError(w, err, h.logger)
		return
	}
	WriteCreated(w, team)
}

// HandleGet GET /v1/teams/{id}
func (h *TeamHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, model.ErrConfigError, "method not allowed", h.logger)
		return
	}

	id := pathValue(r, "id", 2)
	team, err := h.repo.GetTeam(r.Context(), id)
	if err != nil {
		handleRepoError(w, err, h.logger)
		return
	}
	WriteSuccess(w, team)
}
