package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/itemtally/itemtally/internal/config"
	errwrap "github.com/itemtally/itemtally/internal/errors"
	"github.com/itemtally/itemtally/internal/observability"
	"github.com/itemtally/itemtally/internal/server"
	"github.com/itemtally/itemtally/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker fails until metrics are exported.
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errors.New("telemetry system not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored resume pages and health over HTTP",
	Long: `Start the read-only status API with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Reload configuration and log the result

Routes: /health, /version, /metrics, /resume and /resume/{collection}.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]any{}
		if cmd.Flags().Changed("host") {
			overrides["server.host"] = serverHost
		}
		if cmd.Flags().Changed("port") {
			overrides["server.port"] = serverPort
		}
		cfg, err := loadConfig(cmd.Context(), overrides)
		if err != nil {
			return invalidConfig(fmt.Errorf("load config: %w", err))
		}

		if err := observability.InitServerLogger(config.AppName, cfg.Logging, config.AppName); err != nil {
			return invalidConfig(err)
		}
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port, config.AppName); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
		}

		backend, err := openResume(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open resume store: %w", err)
		}
		defer backend.Close() // nolint:errcheck // best-effort cleanup

		logger.Info("Initializing server",
			zap.String("service", config.AppName),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("metrics", cfg.Metrics.Enabled),
			zap.Int("metrics_port", observability.GetMetricsPort()))

		health := handlers.NewHealthManager(versionInfo.Version)
		health.RegisterChecker("resume_store", handlers.HealthCheckerFunc(backend.EnsureResumeSchema))
		if cfg.Metrics.Enabled {
			health.RegisterChecker("telemetry", telemetryHealthChecker{})
		}

		srv := server.New(server.Options{
			Server:     cfg.Server,
			Resume:     backend,
			Health:     health,
			AdminToken: os.Getenv(config.EnvPrefix + "ADMIN_TOKEN"),
		})

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Handlers run LIFO: the server stops, then the exporter, then the
		// logger is flushed.
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			if err := observability.StopMetrics(); err != nil {
				logger.Warn("Failed to stop metrics exporter", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Listener settings need a restart; everything else is picked up by
		// the next collect run.
		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: reloading configuration")
			reloaded, err := loadConfig(ctx, overrides)
			if err != nil {
				logger.Error("Failed to reload configuration", zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "config reload failed")
			}
			if reloaded.Server != cfg.Server {
				logger.Warn("Server settings changed; restart to apply them")
			}
			logger.Info("Configuration reloaded successfully",
				zap.Int("collectors", len(reloaded.Collectors)))
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			logger.Info("Starting HTTP server...",
				zap.String("host", cfg.Server.Host),
				zap.Int("port", cfg.Server.Port))
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")
}
