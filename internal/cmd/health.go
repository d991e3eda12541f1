package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/itemtally/itemtally/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify the binary is built correctly, the configuration loads and the resume store is reachable.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		if logger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errors.New("logger not initialized"))
			return
		}
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			logger.Error("❌ FAIL: Version information missing")
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", errors.New("version information missing"))
			return
		}
		logger.Debug("Version check passed", zap.String("version", versionInfo.Version))
		logger.Info("✅ Version information available")
		logger.Info("✅ Logger initialized")

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			logger.Error("❌ FAIL: Configuration invalid")
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		logger.Info("✅ Configuration loaded")

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		backend, err := openResume(ctx, cfg)
		if err != nil {
			logger.Error("❌ FAIL: Resume store unreachable")
			ExitWithCode(logger, foundry.ExitFailure, "Resume store unreachable",
				fmt.Errorf("%s resume backend: %w", cfg.Resume.Backend, err))
			return
		}
		_ = backend.Close()
		logger.Info("✅ Resume store reachable", zap.String("backend", cfg.Resume.Backend))

		logger.Info("")
		logger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
