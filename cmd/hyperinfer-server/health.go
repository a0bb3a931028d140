package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/hyperinfer/api"
	"github.com/BaSui01/hyperinfer/internal/dbpool"
	"github.com/BaSui01/hyperinfer/internal/model"
)

// HealthHandler serves the control plane's liveness/readiness/version
// probes. Unlike the gateway's fixed liveness check, Ready also probes the
// relational store directly (the admin surface is useless without it,
// where the gateway's own health is bounded entirely by its background
// config subscription already running).
type HealthHandler struct {
	pool   *dbpool.PoolManager
	logger *zap.Logger
}

// NewHealthHandler builds a HealthHandler bound to pool.
func NewHealthHandler(pool *dbpool.PoolManager, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{pool: pool, logger: logger}
}

type healthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleHealth GET /health, /healthz — fixed liveness, no dependency check.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	api.WriteSuccess(w, healthStatus{Status: "healthy", Timestamp: time.Now()})
}

// HandleReady GET /ready, /readyz — fails if the relational store is
// unreachable, since every admin operation depends on it.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.Ping(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		api.WriteErrorMessage(w, http.StatusServiceUnavailable, model.ErrDBError, "database unreachable", h.logger)
		return
	}
	api.WriteSuccess(w, healthStatus{Status: "ready", Timestamp: time.Now()})
}

// HandleVersion GET /version
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api.WriteSuccess(w, map[string]string{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
		})
	}
}
