package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/itemtally/itemtally/internal/core/store"
)

var (
	resumeResetAll        bool
	resumeResetCollection string
	resumeResetPrefix     string
	resumeResetYes        bool
	resumeResetDryRun     bool
	resumeResetOutput     string
)

var resumeResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget stored resume pages so the next run searches cold",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := parseListFormat(resumeResetOutput)
		if err != nil {
			return err
		}

		query, err := resumeResetQuery(resumeResetAll, resumeResetCollection, resumeResetPrefix, resumeResetYes, resumeResetDryRun)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return invalidConfig(fmt.Errorf("load config: %w", err))
		}
		backend, err := openResume(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer backend.Close() // nolint:errcheck // best-effort cleanup

		return resetResume(cmd.Context(), backend, query, resumeResetDryRun, format, cmd.OutOrStdout())
	},
}

// resumeResetQuery validates the reset flags. --all is destructive and
// needs --yes unless it is a dry run.
func resumeResetQuery(all bool, collection, prefix string, yes, dryRun bool) (store.ResumeQuery, error) {
	query := store.ResumeQuery{
		All:        all,
		Collection: strings.TrimSpace(collection),
		Prefix:     strings.TrimSpace(prefix),
	}
	if err := query.Validate(); err != nil {
		return store.ResumeQuery{}, invalidConfig(err)
	}
	if query.All && !yes && !dryRun {
		return store.ResumeQuery{}, invalidConfig(errors.New("--all requires --yes (or use --dry-run)"))
	}
	return query, nil
}

func resetResume(ctx context.Context, backend resumeBackend, query store.ResumeQuery, dryRun bool, format listFormat, w io.Writer) error {
	matched, err := backend.CountResume(ctx, query)
	if err != nil {
		return err
	}
	if dryRun {
		return writeResumeResetResult(format, w, matched, 0, true)
	}

	deleted, err := backend.ResetResume(ctx, query)
	if err != nil {
		return err
	}
	return writeResumeResetResult(format, w, matched, deleted, false)
}

func writeResumeResetResult(format listFormat, w io.Writer, matched int, deleted int64, dryRun bool) error {
	result := map[string]any{
		"matched": matched,
		"deleted": deleted,
		"dry_run": dryRun,
	}

	if format == listFormatJSON {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	if dryRun {
		_, err := fmt.Fprintf(w, "Would delete %d resume page(s)\n", matched)
		return err
	}
	_, err := fmt.Fprintf(w, "Deleted %d/%d resume page(s)\n", deleted, matched)
	return err
}

func init() {
	resumeResetCmd.Flags().BoolVar(&resumeResetAll, "all", false, "Reset every collection")
	resumeResetCmd.Flags().StringVar(&resumeResetCollection, "collection", "", "Reset a single collection (exact match)")
	resumeResetCmd.Flags().StringVar(&resumeResetPrefix, "prefix", "", "Reset collections with matching prefix")
	resumeResetCmd.Flags().BoolVar(&resumeResetYes, "yes", false, "Confirm destructive reset")
	resumeResetCmd.Flags().BoolVar(&resumeResetDryRun, "dry-run", false, "Show what would be deleted")
	resumeResetCmd.Flags().StringVar(&resumeResetOutput, "output-format", string(listFormatTable), "Output format: table|json")
}
