// Specd is the workflow optimization daemon.
//
// The daemon runs the six-stage optimization pipeline behind two
// transports: an HTTP API (default) and an MCP stdio server (--stdio)
// for editor and agent integration. Both transports share one pipeline
// runner, so stats and steering notes are consistent across them.
//
// Configuration is loaded from ~/.config/specd/config.yaml and SPECD_*
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start the HTTP daemon with defaults
//	specd
//
//	# Serve MCP over stdio for an agent host
//	specd --stdio
//
//	# Override a setting from the environment
//	SPECD_SERVER_HTTP_PORT=9823 specd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/citations"
	"github.com/fyrsmithlabs/specd/internal/config"
	"github.com/fyrsmithlabs/specd/internal/consulting"
	"github.com/fyrsmithlabs/specd/internal/forecast"
	httpserver "github.com/fyrsmithlabs/specd/internal/http"
	"github.com/fyrsmithlabs/specd/internal/intent"
	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/optimization"
	"github.com/fyrsmithlabs/specd/internal/pipeline"
	"github.com/fyrsmithlabs/specd/internal/spec"
	"github.com/fyrsmithlabs/specd/internal/steering"
	"github.com/fyrsmithlabs/specd/internal/telemetry"
)

// Build identity, stamped through -ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	stdio := flag.Bool("stdio", false, "serve MCP over stdio instead of HTTP")
	configPath := flag.String("config", "", "config file path (default ~/.config/specd/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  specd            Start the specd daemon\n")
			fmt.Fprintf(os.Stderr, "  specd --stdio    Serve MCP over stdio\n")
			fmt.Fprintf(os.Stderr, "  specd version    Show version information\n")
			os.Exit(1)
		}
	}

	// SIGINT and SIGTERM cancel the run context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Caught %v, shutting down", sig)
		cancel()
	}()

	err := run(ctx, *configPath, *stdio)
	if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion writes the build identity to stdout.
func printVersion() {
	fmt.Printf("specd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the specd daemon and blocks until the context is canceled.
//
// Initialization order:
//  1. Loads the config file and environment and validates the result
//  2. Initializes the structured logger (stderr in stdio mode)
//  3. Initializes telemetry providers
//  4. Loads the citation registry
//  5. Assembles the six collaborators and the pipeline runner
//  6. Opens the steering store and watcher when enabled
//  7. Serves HTTP or MCP stdio depending on the --stdio flag
//
// Returns http.ErrServerClosed on graceful HTTP shutdown and
// context.Canceled when the stdio transport is interrupted.
func run(ctx context.Context, configPath string, stdio bool) error {
	if configPath == "" {
		if err := config.EnsureConfigDir(); err != nil {
			return fmt.Errorf("failed to prepare config directory: %w", err)
		}
	}

	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initLogger(cfg, stdio)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zlog := logger.Underlying()

	zlog.Info("Starting specd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("stdio", stdio),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	telem, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telem.Shutdown(context.Background()); err != nil {
			zlog.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}()
	if health := telem.Health(); health.Degraded {
		zlog.Warn("Telemetry degraded", zap.String("reason", health.Reason))
	}

	registry, err := initRegistry(cfg)
	if err != nil {
		return fmt.Errorf("failed to load citation registry: %w", err)
	}

	zlog.Info("Citation registry loaded", zap.Int("sources", registry.Len()))

	runner, err := initRunner(cfg, registry, zlog)
	if err != nil {
		return fmt.Errorf("failed to assemble pipeline: %w", err)
	}

	// Steering is optional; without it runs leave no notes behind.
	var active steering.Runner = runner
	var store *steering.Store
	var watcher *steering.Watcher
	if cfg.Steering.Enabled {
		store, err = steering.NewStore(cfg.Steering.Dir, zlog)
		if err != nil {
			return fmt.Errorf("failed to open steering store: %w", err)
		}
		active, err = steering.NewRecordingRunner(active, store, zlog)
		if err != nil {
			return fmt.Errorf("failed to wrap pipeline with steering recorder: %w", err)
		}
		if cfg.Steering.Watch {
			watcher, err = steering.NewWatcher(store, zlog)
			if err != nil {
				return fmt.Errorf("failed to create steering watcher: %w", err)
			}
			if err := watcher.Start(ctx); err != nil {
				return fmt.Errorf("failed to start steering watcher: %w", err)
			}
			defer watcher.Stop()
		}

		zlog.Info("Steering store ready",
			zap.String("dir", store.Dir()),
			zap.Bool("watch", cfg.Steering.Watch))
	}

	if stdio {
		return serveStdio(ctx, cfg, active, registry, store, watcher, zlog)
	}
	return serveHTTP(ctx, cfg, active, registry, store, zlog)
}

// serveHTTP runs the HTTP API and blocks until the context is canceled.
func serveHTTP(ctx context.Context, cfg *config.Config, runner steering.Runner, registry *citations.Registry, store *steering.Store, zlog *zap.Logger) error {
	srv, err := httpserver.NewServer(runner, registry, zlog, &httpserver.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Version:         version,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	srv.SetSteering(store)

	zlog.Info("Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"),
		zap.String("api_prefix", "/api/v1"))

	return srv.Start(ctx)
}

// initLogger builds the structured logger from the logging section. In
// stdio mode logs move to stderr; stdout carries the MCP protocol.
func initLogger(cfg *config.Config, stdio bool) (*logging.Logger, error) {
	logCfg := logging.NewDefaultConfig()
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	logCfg.Level = level
	logCfg.Format = cfg.Logging.Format
	if stdio {
		logCfg.Output.Stdout = false
		logCfg.Output.Stderr = true
	}
	return logging.NewLogger(logCfg, nil)
}

// initRegistry loads citation sources, preferring the override file when
// one is configured.
func initRegistry(cfg *config.Config) (*citations.Registry, error) {
	if path := cfg.Citations.SourcesPath; path != "" {
		return citations.NewRegistryFromFile(path)
	}
	return citations.NewRegistry()
}

// initRunner assembles the six collaborators and the retrying runner.
func initRunner(cfg *config.Config, registry *citations.Registry, zlog *zap.Logger) (*pipeline.Runner, error) {
	analyzer, err := consulting.NewAnalyzer(registry, zlog)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	collab := pipeline.Collaborators{
		Parser:     intent.NewParser(zlog),
		Analyzer:   analyzer,
		Optimizer:  optimization.NewOptimizer(zlog),
		Forecaster: forecast.NewForecaster(zlog),
		Summarizer: consulting.NewSummarizer(zlog),
		Emitter:    spec.NewEmitter(zlog),
	}

	return pipeline.NewRunner(pipeline.Config{
		MaxAttempts:  cfg.Pipeline.MaxAttempts,
		RetryDelay:   cfg.Pipeline.RetryDelay,
		StageTimeout: cfg.Pipeline.StageTimeout,
	}, collab, pipeline.WithLogger(zlog))
}
