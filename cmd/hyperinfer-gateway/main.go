// Command hyperinfer-gateway is the data-plane binary: a thin HTTP
// front-end over hyperinfer.Client.Chat. It holds no durable
// state of its own — every tenant/quota/routing fact it needs comes from
// the control plane's config snapshot, kept current in the background by
// the embedded configsync subscription.
//
// Usage:
//
//	hyperinfer-gateway serve                       # start the gateway
//	hyperinfer-gateway serve --config gateway.yaml # with a config file
//	hyperinfer-gateway version                     # show version info
//	hyperinfer-gateway help                        # show usage
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/hyperinfer"
	"github.com/BaSui01/hyperinfer/config"
	"github.com/BaSui01/hyperinfer/internal/metrics"
	"github.com/BaSui01/hyperinfer/internal/observability"
	"github.com/BaSui01/hyperinfer/internal/server"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	openAIKey := fs.String("openai-key", os.Getenv("OPENAI_API_KEY"), "OpenAI API key")
	anthropicKey := fs.String("anthropic-key", os.Getenv("ANTHROPIC_API_KEY"), "Anthropic API key")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting hyperinfer-gateway",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otelProviders, err := observability.Init(cfg.Observability, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := otelProviders.Shutdown(ctx); err != nil {
			logger.Warn("failed to shut down telemetry", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector("hyperinfer_gateway", logger)

	client, err := hyperinfer.New(
		hyperinfer.WithStoreAddr(cfg.Store.Addr),
		hyperinfer.WithOpenAIAPIKey(*openAIKey),
		hyperinfer.WithAnthropicAPIKey(*anthropicKey),
		hyperinfer.WithLogger(logger),
		hyperinfer.WithMetrics(collector),
	)
	if err != nil {
		logger.Fatal("failed to build gateway client", zap.Error(err))
	}
	defer client.Close()

	chatHandler := NewChatHandler(client, logger)
	healthHandler := NewHealthHandler(logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", healthHandler.HandleHealth)
	mux.HandleFunc("GET /version", healthHandler.HandleVersion(Version, BuildTime, GitCommit))
	mux.HandleFunc("POST /v1/chat", chatHandler.HandleChat)

	handler := Chain(mux,
		Recovery(logger),
		RequestLogger(logger),
		MetricsMiddleware(collector),
		CORS(cfg.CORS.AllowedOrigins),
		SecurityHeaders(),
		RequestID(),
	)

	serverCfg := server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	httpManager := server.NewManager(handler, serverCfg, logger)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsManager := server.NewManager(metricsMux, server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	if err := httpManager.Start(); err != nil {
		logger.Fatal("failed to start HTTP server", zap.Error(err))
	}
	if err := metricsManager.Start(); err != nil {
		logger.Fatal("failed to start metrics server", zap.Error(err))
	}

	logger.Info("hyperinfer-gateway started",
		zap.Int("http_port", cfg.Server.HTTPPort),
		zap.Int("metrics_port", cfg.Server.MetricsPort),
	)

	httpManager.WaitForShutdown()
	_ = metricsManager.Shutdown(context.Background())

	logger.Info("hyperinfer-gateway stopped")
}

func printVersion() {
	fmt.Printf("hyperinfer-gateway %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`hyperinfer-gateway - HyperInfer data-plane gateway

Usage:
  hyperinfer-gateway <command> [options]

Commands:
  serve     Start the gateway server
  version   Show version information
  help      Show this help message

Options for 'serve':
  --config <path>          Path to configuration file (YAML)
  --openai-key <key>       OpenAI API key (default: $OPENAI_API_KEY)
  --anthropic-key <key>    Anthropic API key (default: $ANTHROPIC_API_KEY)

Examples:
  hyperinfer-gateway serve
  hyperinfer-gateway serve --config /etc/hyperinfer/gateway.yaml
  hyperinfer-gateway version`)
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         cfg.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddCaller())
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
