package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/itemtally/itemtally/internal/core"
	"github.com/itemtally/itemtally/internal/core/store"
)

var (
	resumeListOutput string
	resumeListOut    string
	resumeListPrefix string
)

var resumeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored resume pages",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := parseListFormat(resumeListOutput)
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

		query := store.ResumeQuery{Prefix: strings.TrimSpace(resumeListPrefix)}
		if query.Prefix == "" {
			query.All = true
		}

		records, err := backend.ListResume(cmd.Context(), query)
		if err != nil {
			return err
		}

		sink, err := openSink(resumeListOut, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		return writeResumeList(sink.writer, format, records)
	},
}

func writeResumeList(w io.Writer, format listFormat, records []core.ResumeRecord) error {
	if format == listFormatJSON {
		payload, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	lines := []string{"Resume Pages", ""}
	if len(records) == 0 {
		lines = append(lines, "(no stored resume pages)")
		_, err := fmt.Fprint(w, ascii.DrawBox(strings.Join(lines, "\n"), 0))
		return err
	}

	for _, record := range records {
		updated := "-"
		if !record.UpdatedAt.IsZero() {
			updated = record.UpdatedAt.UTC().Format(time.RFC3339)
		}
		lines = append(lines, fmt.Sprintf("%s: last_page=%d page_size=%d updated_at=%s",
			record.Collection, record.LastPage, record.PageSize, updated))
	}

	_, err := fmt.Fprint(w, ascii.DrawBox(strings.Join(lines, "\n"), 0))
	return err
}

func init() {
	resumeListCmd.Flags().StringVar(&resumeListOutput, "output-format", string(listFormatTable), "Output format: table|json")
	resumeListCmd.Flags().StringVar(&resumeListOut, "out", "", "Write output to a file (default stdout)")
	resumeListCmd.Flags().StringVar(&resumeListPrefix, "prefix", "", "List collections with matching prefix")
}
