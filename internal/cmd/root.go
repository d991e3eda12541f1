package cmd

import (
	"context"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/itemtally/itemtally/internal/config"
	"github.com/itemtally/itemtally/internal/core/engine"
	"github.com/itemtally/itemtally/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Count the items behind paginated APIs that report no total",
	Long: `itemtally finds the last page of paginated listings with a paced
exponential and binary search, remembers it between runs, and reports
pageSize x (lastPage - 1) + itemsOnLastPage for each collector.

Use the subcommands to perform specific operations.`,
	SilenceUsage: true,
}

// Execute runs the root command with ctx, which is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Keep config loading from emitting metrics to stdout; serve installs
	// the real telemetry system.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/itemtally/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
}

func initLogging() {
	if err := observability.InitCLILogger(config.AppName, verbose); err != nil {
		ExitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}
}

// loadConfig layers the --config file, environment and overrides.
func loadConfig(ctx context.Context, overrides ...map[string]any) (*config.Config, error) {
	cfg, err := config.Load(ctx, cfgFile, overrides...)
	if err != nil {
		return nil, err
	}
	cliLogger().Debug("Configuration loaded",
		zap.String("store_driver", cfg.Store.Driver),
		zap.String("resume_backend", cfg.Resume.Backend),
		zap.Int("workers", cfg.Workers))
	return cfg, nil
}

// cliLogger returns the CLI logger, or a no-op logger before initialization.
func cliLogger() engine.Logger {
	if observability.CLILogger == nil {
		return zap.NewNop()
	}
	return observability.CLILogger
}
