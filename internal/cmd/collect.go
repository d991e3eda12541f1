package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/itemtally/itemtally/internal/collectors"
	"github.com/itemtally/itemtally/internal/config"
	"github.com/itemtally/itemtally/internal/core"
	"github.com/itemtally/itemtally/internal/core/engine"
	"github.com/itemtally/itemtally/internal/core/store"
	"github.com/itemtally/itemtally/internal/output"
)

// collectOptions is everything a collect run needs besides configuration.
type collectOptions struct {
	Flags []string
	All   bool
	Sink  sinkOptions
}

var (
	collectAll     bool
	collectWorkers int
	collectSink    sinkOptions
)

var collectCmd = &cobra.Command{
	Use:   "collect [--all] [--<collector>...] <sink flag>",
	Short: "Count the items of the selected collectors",
	Long: `Run the selected collectors and write one total per collector to the
chosen sink. Paged collectors resume from the last page found on the previous
run. Use "itemtally collectors" to list the available collector flags.`,
	Example: `  itemtally collect --anilist-anime --anilist-manga --print
  itemtally collect --all --table
  itemtally collect --all --save-csv totals.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]any{}
		if cmd.Flags().Changed("workers") {
			overrides["workers"] = collectWorkers
		}
		cfg, err := loadConfig(cmd.Context(), overrides)
		if err != nil {
			return invalidConfig(fmt.Errorf("load config: %w", err))
		}

		opts := collectOptions{All: collectAll, Sink: collectSink}
		for _, c := range collectors.All(nil) {
			if on, _ := cmd.Flags().GetBool(c.Flag); on {
				opts.Flags = append(opts.Flags, c.Flag)
			}
		}

		// Interrupt cancels in-flight searches; no partial boundary is stored.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		results, err := runCollect(ctx, cfg, opts, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return summarize(results)
	},
}

func init() {
	for _, c := range collectors.All(nil) {
		collectCmd.Flags().Bool(c.Flag, false, c.Description)
	}
	collectCmd.Flags().BoolVar(&collectAll, "all", false, "Run every enabled collector")
	collectCmd.Flags().IntVar(&collectWorkers, "workers", 0, "Collectors run concurrently (default from config)")
	addSinkFlags(collectCmd, &collectSink)
	rootCmd.AddCommand(collectCmd)
}

// runCollect selects the collectors, opens the stores and sink they need and
// runs them. Results are returned in registry order.
func runCollect(ctx context.Context, cfg *config.Config, opts collectOptions, stdout io.Writer) ([]core.CollectionResult, error) {
	kind, err := opts.Sink.kind()
	if err != nil {
		return nil, err
	}

	selected, err := collectors.Select(collectors.All(cfg), opts.Flags, opts.All)
	if err != nil {
		return nil, invalidConfig(err)
	}
	if len(selected) == 0 {
		return nil, invalidConfig(errors.New("no collectors selected (pass --all or at least one collector flag)"))
	}

	logger := cliLogger()

	var (
		resume engine.ResumeStore
		db     *store.Store
	)
	needsResume := false
	for _, c := range selected {
		needsResume = needsResume || c.NeedsStore
	}
	sqlResume := strings.EqualFold(strings.TrimSpace(cfg.Resume.Backend), "sql") || strings.TrimSpace(cfg.Resume.Backend) == ""

	if kind == output.KindDB || (needsResume && sqlResume) {
		db, err = openStore(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup
	}
	if needsResume {
		if sqlResume {
			resume = db
		} else {
			backend, err := openResume(ctx, cfg)
			if err != nil {
				return nil, fmt.Errorf("open resume store: %w", err)
			}
			defer backend.Close() // nolint:errcheck // best-effort cleanup
			resume = backend
		}
	}

	var results output.ResultTable
	if db != nil {
		results = db
	}
	sink, err := openResultSink(ctx, opts.Sink, kind, stdout, results)
	if err != nil {
		return nil, err
	}

	limiter := engine.NewRateLimiter()
	orchestrator := &engine.Orchestrator{
		HTTP:    engine.NewHTTPClient(limiter, cfg.HTTP.Timeout),
		Limiter: limiter,
		Resume:  resume,
		Tally: &engine.PagedTally{
			Resume:      resume,
			Step:        cfg.Search.Step,
			NarrowWidth: cfg.Search.NarrowWidth,
			MaxFetches:  cfg.Search.MaxFetches,
			Logger:      logger,
		},
		Sink:    sink,
		Workers: cfg.Workers,
		Logger:  logger,
	}

	collected := orchestrator.Run(ctx, selected)
	logRateLimits(logger, limiter.Snapshot())
	if err := sink.Close(); err != nil {
		return collected, fmt.Errorf("close %s sink: %w", kind, err)
	}
	return collected, nil
}

// logRateLimits reports the pacing applied to each origin during the run.
func logRateLimits(logger engine.Logger, states []core.RateLimitState) {
	for _, state := range states {
		logger.Info("Origin pacing",
			zap.String("origin", state.Origin.String()),
			zap.Duration("interval", state.Interval),
			zap.Int64("dispatches", state.Dispatches))
	}
}

// summarize logs the failed collectors and returns an error when any failed.
func summarize(results []core.CollectionResult) error {
	failed := 0
	for _, result := range results {
		if result.OK() {
			continue
		}
		failed++
		cliLogger().Warn("Collector produced no result",
			zap.String("collector", result.Collector),
			zap.String("error", result.Error))
	}
	if failed == 0 {
		return nil
	}
	return &CollectionFailedError{Failed: failed, Total: len(results)}
}
