// Command hyperinfer-server is the control-plane binary: the admin HTTP
// surface over the relational tenant store, the telemetry
// consumer that drains usage records emitted by every data-plane gateway
// into that store, and the background job that republishes a model.Config
// snapshot so gateways converge on current policy even after missing an
// incremental pub/sub update.
//
// Usage:
//
//	hyperinfer-server serve                       # start the control plane
//	hyperinfer-server serve --config server.yaml  # with a config file
//	hyperinfer-server migrate <subcommand>        # manage the schema
//	hyperinfer-server version                     # show version info
//	hyperinfer-server help                        # show usage
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/hyperinfer/config"
	"github.com/BaSui01/hyperinfer/internal/dbpool"
	"github.com/BaSui01/hyperinfer/internal/metrics"
	"github.com/BaSui01/hyperinfer/internal/observability"
	"github.com/BaSui01/hyperinfer/internal/store"
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
	case "migrate":
		runMigrate(os.Args[2:])
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

	logger.Info("starting hyperinfer-server",
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

	pool, err := dbpool.Open(cfg.Database, dbpool.DefaultPoolConfig(), logger)
	if err != nil {
		logger.Fatal("failed to open database pool", zap.Error(err))
	}

	sharedStore, err := store.New(toStoreConfig(cfg.Store), logger)
	if err != nil {
		logger.Fatal("failed to connect to shared store", zap.Error(err))
	}

	collector := metrics.NewCollector("hyperinfer_server", logger)

	srv := NewServer(cfg, logger, pool, sharedStore, collector)
	if err := srv.Start(); err != nil {
		logger.Fatal("failed to start hyperinfer-server", zap.Error(err))
	}

	srv.WaitForShutdown()
}

func toStoreConfig(cfg config.StoreConfig) store.Config {
	return store.Config{
		Addr:                cfg.Addr,
		URL:                 cfg.URL,
		Password:            cfg.Password,
		DB:                  cfg.DB,
		MaxRetries:          cfg.MaxRetries,
		PoolSize:            cfg.PoolSize,
		MinIdleConns:        cfg.MinIdleConns,
		HealthCheckInterval: cfg.HealthCheckInterval,
	}
}

func printVersion() {
	fmt.Printf("hyperinfer-server %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`hyperinfer-server - HyperInfer control plane

Usage:
  hyperinfer-server <command> [options]

Commands:
  serve     Start the control plane server
  migrate   Manage the relational schema (run 'migrate help' for subcommands)
  version   Show version information
  help      Show this help message

Options for 'serve':
  --config <path>    Path to configuration file (YAML)

Examples:
  hyperinfer-server serve
  hyperinfer-server serve --config /etc/hyperinfer/server.yaml
  hyperinfer-server migrate up
  hyperinfer-server version`)
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
