package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/hyperinfer/internal/model"
	"github.com/BaSui01/hyperinfer/internal/tenant"
)

// UserHandler serves CRUD over team-scoped users.
type UserHandler struct {
	repo   *tenant.Repository
	logger *zap.Logger
}

// NewUserHandler builds a UserHandler bound to repo.
func NewUserHandler(repo *tenant.Repository, logger *zap.Logger) *UserHandler {
	return &UserHandler{repo: repo, logger: logger.With(zap.String("component", "api.users"))}
}

type createUserRequest struct {
	TeamID string `json:"team_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// HandleCreate POST /v1/users
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, model.ErrConfigError, "method not allowed", h.logger)
		return
	}

	var req createUserRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.TeamID == "" || req.Email == "" {
		WriteErrorMessage(w, http.StatusBadRequest, model.ErrConfigError, "team_id and email are required", h.logger)
		return
	}
	if req.Role == "" {
		req.Role = "member"
	}

	user, err := h.repo.CreateUser(r.Context(), req.TeamID, req.Email, req.Role)
	if err != nil {
		handleRepoError(w, err, h.logger)
		return
	}
	WriteCreated(w, user)
}

// HandleGet GET /v1/users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, model.ErrConfigError, "method not allowed", h.logger)
		return
	}

	id := pathValue(r, "id", 2)
	user, err := h.repo.GetUser(r.Context(), id)
	if err != nil {
		handleRepoError(w, err, h.logger)
		return
	}
	WriteSuccess(w, user)
}
