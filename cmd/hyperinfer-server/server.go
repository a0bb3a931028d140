package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	appconfig "github.com/BaSui01/hyperinfer/config"
	"github.com/BaSui01/hyperinfer/api"
	"github.com/BaSui01/hyperinfer/internal/configsync"
	"github.com/BaSui01/hyperinfer/internal/dbpool"
	"github.com/BaSui01/hyperinfer/internal/metrics"
	"github.com/BaSui01/hyperinfer/internal/model"
	"github.com/BaSui01/hyperinfer/internal/server"
	"github.com/BaSui01/hyperinfer/internal/store"
	"github.com/BaSui01/hyperinfer/internal/telemetry"
	"github.com/BaSui01/hyperinfer/internal/tenant"
)

// Server is the control-plane process: the admin HTTP surface, the
// telemetry consumer that drains usage records into the relational store,
// and the background job that republishes a model.Config snapshot built
// from that same store so every data-plane gateway converges on it.
type Server struct {
	cfg        *appconfig.Config
	logger     *zap.Logger
	pool       *dbpool.PoolManager
	repo       *tenant.Repository
	shared     *store.Store
	cfgManager *configsync.Manager
	consumer   *telemetry.Consumer
	collector  *metrics.Collector

	httpManager    *server.Manager
	metricsManager *server.Manager

	bgCancel context.CancelFunc
	bgGroup  *errgroup.Group
}

// NewServer wires every control-plane collaborator together. It does not
// start anything; call Start to bring the process up.
func NewServer(cfg *appconfig.Config, logger *zap.Logger, pool *dbpool.PoolManager, shared *store.Store, collector *metrics.Collector) *Server {
	repo := tenant.New(pool.DB())
	cfgManager := configsync.New(shared, logger)
	consumer := telemetry.NewConsumer(shared, logger).WithMetrics(collector)

	return &Server{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		repo:       repo,
		shared:     shared,
		cfgManager: cfgManager,
		consumer:   consumer,
		collector:  collector,
	}
}

// Start brings up the admin HTTP surface, the metrics listener, and the
// background telemetry/reconciliation loops, then returns without
// blocking. Call WaitForShutdown to block until a shutdown signal arrives.
func (s *Server) Start() error {
	mux := api.NewRouter(s.repo, s.cfgManager, s.logger)
	health := NewHealthHandler(s.pool, s.logger)
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealth)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /readyz", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))

	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/v1/config/sync"}
	adminAuthCfg := api.AdminAuthConfig{Secret: s.cfg.Admin.JWTSecret, Issuer: s.cfg.Admin.JWTIssuer}

	handler := Chain(mux,
		Recovery(s.logger),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		CORS(s.cfg.CORS.AllowedOrigins),
		SecurityHeaders(),
		RequestID(),
		api.AdminAuth(adminAuthCfg, skipAuthPaths, s.logger),
	)

	serverCfg := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}
	s.httpManager = server.NewManager(handler, serverCfg, s.logger)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	s.metricsManager = server.NewManager(metricsMux, server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return fmt.Errorf("failed to start admin HTTP server: %w", err)
	}
	if err := s.metricsManager.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.startBackgroundTasks()

	s.logger.Info("hyperinfer-server started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

// startBackgroundTasks launches the telemetry consumer, its lag reporter,
// and the config-reconciliation ticker under a shared errgroup so a fatal
// failure in any one of them is observable (and so Shutdown can wait for
// all three to unwind cleanly) rather than leaking an orphaned goroutine.
func (s *Server) startBackgroundTasks() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	group, groupCtx := errgroup.WithContext(ctx)
	s.bgGroup = group

	group.Go(func() error {
		return s.consumer.Run(groupCtx, s.handleUsageRecord)
	})

	group.Go(func() error {
		s.consumer.ReportLag(groupCtx)
		return nil
	})

	group.Go(func() error {
		s.runReconciliationLoop(groupCtx)
		return nil
	})
}

// handleUsageRecord persists one telemetry entry into the relational
// usage log; returning an error here leaves the stream entry
// unacknowledged so the consumer's AUTOCLAIM recovery redelivers it.
func (s *Server) handleUsageRecord(ctx context.Context, record *model.UsageRecord) error {
	return s.repo.RecordUsageRecord(ctx, record)
}

// runReconciliationLoop rebuilds the authoritative model.Config snapshot
// from the relational tenant store (every model alias, every quota) on a
// fixed cadence and republishes it. Alias and quota writes through the
// admin API publish nothing themselves, so this loop is what carries them
// to gateways; a gateway restarted or rejoined mid-outage converges on
// current policy within one interval.
func (s *Server) runReconciliationLoop(ctx context.Context) {
	interval := s.cfg.Admin.ConfigSyncInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.reconcileConfig(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reconcileConfig(ctx)
		}
	}
}

func (s *Server) reconcileConfig(ctx context.Context) {
	aliases, err := s.repo.ListAllModelAliases(ctx)
	if err != nil {
		s.logger.Warn("reconciliation: failed to list model aliases", zap.Error(err))
		return
	}
	quotas, err := s.repo.ListAllQuotas(ctx)
	if err != nil {
		s.logger.Warn("reconciliation: failed to list quotas", zap.Error(err))
		return
	}

	cfg := model.NewConfig()
	for _, a := range aliases {
		cfg.ModelAliases[a.Alias] = a.TargetModel
	}
	for _, q := range quotas {
		rpm := uint64(q.RPMLimit)
		tpm := uint64(q.TPMLimit)
		budget := uint64(q.BudgetCents)
		cfg.Quotas[q.TeamID] = model.Quota{MaxRPM: &rpm, MaxTPM: &tpm, BudgetCents: &budget}
	}

	if err := s.cfgManager.PublishConfigUpdate(ctx, cfg); err != nil {
		s.logger.Warn("reconciliation: failed to publish config snapshot", zap.Error(err))
		return
	}
	s.logger.Debug("reconciliation: published config snapshot",
		zap.Int("aliases", len(aliases)), zap.Int("quotas", len(quotas)))
}

// WaitForShutdown blocks until a termination signal arrives, then tears
// the process down in dependency order: stop accepting new admin/metrics
// traffic first, then cancel the background loops and wait for them to
// return.
func (s *Server) WaitForShutdown() {
	s.httpManager.WaitForShutdown()
	s.Shutdown(context.Background())
}

// Shutdown releases every resource Start acquired. Safe to call once,
// after WaitForShutdown returns or directly in tests.
func (s *Server) Shutdown(ctx context.Context) {
	if s.bgCancel != nil {
		s.bgCancel()
	}
	if s.bgGroup != nil {
		if err := s.bgGroup.Wait(); err != nil && err != context.Canceled {
			s.logger.Warn("background task exited with error", zap.Error(err))
		}
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Warn("metrics server shutdown error", zap.Error(err))
		}
	}
	if err := s.shared.Close(); err != nil {
		s.logger.Warn("shared store close error", zap.Error(err))
	}
	if err := s.pool.Close(); err != nil {
		s.logger.Warn("database pool close error", zap.Error(err))
	}

	s.logger.Info("hyperinfer-server stopped")
}
