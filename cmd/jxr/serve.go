package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fyrsmithlabs/jxr/internal/config"
	httpserver "github.com/fyrsmithlabs/jxr/internal/http"
	"github.com/fyrsmithlabs/jxr/internal/logging"
	"github.com/fyrsmithlabs/jxr/internal/ripgrep"
	"github.com/fyrsmithlabs/jxr/internal/search"
	"github.com/fyrsmithlabs/jxr/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	searchInstrumentationName = "github.com/fyrsmithlabs/jxr/internal/search"
	httpInstrumentationName   = "github.com/fyrsmithlabs/jxr/internal/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the jxr HTTP server.

Endpoints:
  GET /search?tree=T&query=Q   aggregated ripgrep events
  GET /trees                   tree names
  GET /gitroot?path=P          repository root containing P
  GET /head?path=P             HEAD commit of that repository
  GET /github?path=P           owner/repo of its origin remote
  GET /health                  liveness
  GET /metrics                 Prometheus metrics

SIGINT and SIGTERM drain in-flight requests before exiting.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg)
	},
}

// run starts the server and blocks until ctx is cancelled.
//
// It wires, in order:
//  1. Telemetry (Prometheus registry, optional OTLP export)
//  2. The logger, bridged to OTEL logs when a provider is configured
//  3. The ripgrep invoker and the search service
//  4. The HTTP server
//
// On cancellation the server is shut down within server.shutdown_timeout.
func run(ctx context.Context, cfg *config.Config) error {
	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	logger, err := newLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info(ctx, "starting jxr",
		zap.String("version", version),
		zap.String("code_dir", cfg.CodeDir),
		zap.Int("port", cfg.Server.Port),
		zap.Int("max_concurrent", cfg.Search.MaxConcurrent),
		zap.Bool("telemetry_enabled", tel.IsEnabled()),
	)

	svc := newService(cfg, logger, search.NewMetrics(tel.Meter(searchInstrumentationName), logger))

	server, err := httpserver.NewServer(httpserver.Deps{
		Searcher:       svc,
		CodeRoot:       cfg.CodeDir,
		Logger:         logger,
		Metrics:        httpserver.NewHTTPMetrics(tel.Meter(httpInstrumentationName), logger),
		MetricsHandler: tel.MetricsHandler(),
	}, &httpserver.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info(context.Background(), "server shutdown complete")
	return nil
}

func newLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	logCfg, err := logging.ConfigFromSettings(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	provider := tel.LoggerProvider()
	logCfg.Output.OTEL = provider != nil
	return logging.NewLogger(logCfg, provider)
}

// newService builds the search service over a ripgrep invoker. A nil
// metrics records nothing.
func newService(cfg *config.Config, logger *logging.Logger, metrics *search.Metrics) *search.Service {
	inv := ripgrep.NewInvoker(ripgrep.Options{
		Binary:       cfg.Engine.Binary,
		ExcludeGlobs: cfg.Search.ExcludeGlobs,
		Timeout:      cfg.Engine.Timeout,
	}, logger)

	return search.NewService(search.Options{
		CodeRoot:      cfg.CodeDir,
		MaxMatches:    cfg.Search.MaxMatches,
		MaxConcurrent: cfg.Search.MaxConcurrent,
	}, inv, logger, metrics)
}
