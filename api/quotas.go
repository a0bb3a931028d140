package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/hyperinfer/internal/model"
	"github.com/BaSui01/hyperinfer/internal/tenant"
)

// QuotaHandler serves CRUD over per-team rate-limit ceilings. These are the
// durable record of a team's limits; internal/ratelimit enforces them out of
// Redis, not by reading this table per request.
type QuotaHandler struct {
	repo   *tenant.Repository
	logger *zap.Logger
}

// NewQuotaHandler builds a QuotaHandler bound to repo.
func NewQuotaHandler(repo *tenant.Repository, logger *zap.Logger) *QuotaHandler {
	return &QuotaHandler{repo: repo, logger: logger.With(zap.String("component", "api.quotas"))}
}

type createQuotaRequest struct {
	TeamID      string `json:"team_id"`
	RPMLimit    int    `json:"rpm_limit"`
	TPMLimit    int    `json:"tpm_limit"`
	BudgetCents int64  `json:"budget_cents"`
}

// HandleCreate POST /v1/quotas
func (h *QuotaHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, model.ErrConfigError, "method not allowed", h.logger)
		return
	}

	var req createQuotaRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.TeamID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, model.ErrConfigError, "team_id is required", h.logger)
		return
	}

	quota, err := h.repo.CreateQuota(r.Context(), req.TeamID, req.RPMLimit, req.TPMLimit, req.BudgetCents)
	if err != nil {
		handleRepoError(w, err, h.logger)
		return
	}
	WriteCreated(w, quota)
}

// HandleGet GET /v1/teams/{teamId}/quota
func (h *QuotaHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, model.ErrConfigError, "method not allowed", h.logger)
		return
	}

	teamID := pathValue(r, "teamId", 2)
	quota, err := h.repo.GetQuota(r.Context(), teamID)
	if err != nil {
		handleRepoError(w, err, h.logger)
		return
	}
	WriteSuccess(w, quota)
}

type updateQuotaRequest struct {
	RPMLimit    int   `json:"rpm_limit"`
	TPMLimit    int   `json:"tpm_limit"`
	BudgetCents int64 `json:"budget_cents"`
}

// HandleUpdate PUT /v1/teams/{teamId}/quota
func (h *QuotaHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, model.ErrConfigError, "method not allowed", h.logger)
		return
	}

	teamID := pathValue(r, "teamId", 2)
	var req updateQuotaRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if err := h.repo.UpdateQuota(r.Context(), teamID, req.RPMLimit, req.TPMLimit, req.BudgetCents); err != nil {
		handleRepoError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"message": "quota updated"})
}
