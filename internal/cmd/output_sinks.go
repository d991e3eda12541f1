package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/itemtally/itemtally/internal/core/store"
	"github.com/itemtally/itemtally/internal/output"
)

// sinkOptions holds the collect sink flags. Exactly one must be set.
type sinkOptions struct {
	Print    bool
	Table    bool
	SaveCSV  string
	SaveJSON string
	SaveYAML string
	SaveDB   string
}

var sinkFlagNames = []string{"print", "table", "save-csv", "save-json", "save-yaml", "save-db"}

func addSinkFlags(cmd *cobra.Command, opts *sinkOptions) {
	cmd.Flags().BoolVar(&opts.Print, "print", false, "Print \"<collector>: <total>\" lines")
	cmd.Flags().BoolVar(&opts.Table, "table", false, "Print a table of totals")
	cmd.Flags().StringVar(&opts.SaveCSV, "save-csv", "", "Write totals to a CSV file")
	cmd.Flags().StringVar(&opts.SaveJSON, "save-json", "", "Write totals to a JSON lines file")
	cmd.Flags().StringVar(&opts.SaveYAML, "save-yaml", "", "Write totals to a YAML file")
	cmd.Flags().StringVar(&opts.SaveDB, "save-db", "", "Replace the contents of a table in the store with the totals")
	cmd.MarkFlagsMutuallyExclusive(sinkFlagNames...)
	cmd.MarkFlagsOneRequired(sinkFlagNames...)
}

// kind resolves the selected sink.
func (o sinkOptions) kind() (output.Kind, error) {
	selected := []output.Kind{}
	if o.Print {
		selected = append(selected, output.KindPrint)
	}
	if o.Table {
		selected = append(selected, output.KindTable)
	}
	if strings.TrimSpace(o.SaveCSV) != "" {
		selected = append(selected, output.KindCSV)
	}
	if strings.TrimSpace(o.SaveJSON) != "" {
		selected = append(selected, output.KindJSON)
	}
	if strings.TrimSpace(o.SaveYAML) != "" {
		selected = append(selected, output.KindYAML)
	}
	if strings.TrimSpace(o.SaveDB) != "" {
		selected = append(selected, output.KindDB)
	}

	switch len(selected) {
	case 0:
		return "", invalidConfig(errors.New("an output sink is required (--print, --table, --save-csv, --save-json, --save-yaml or --save-db)"))
	case 1:
	default:
		return "", invalidConfig(fmt.Errorf("only one output sink may be selected, got %d", len(selected)))
	}

	if selected[0] == output.KindDB {
		if err := store.ValidateIdentifier(strings.TrimSpace(o.SaveDB)); err != nil {
			return "", invalidConfig(err)
		}
	}
	return selected[0], nil
}

// openResultSink creates the sink for kind. The db sink writes through
// results, which the caller owns.
func openResultSink(ctx context.Context, opts sinkOptions, kind output.Kind, stdout io.Writer, results output.ResultTable) (output.Sink, error) {
	switch kind {
	case output.KindPrint:
		return &output.ConsoleSink{Writer: stdout}, nil
	case output.KindTable:
		return &output.TableSink{Writer: stdout}, nil
	case output.KindCSV:
		return output.NewCSVSink(opts.SaveCSV)
	case output.KindJSON:
		return output.NewJSONSink(opts.SaveJSON)
	case output.KindYAML:
		return output.NewYAMLSink(opts.SaveYAML)
	case output.KindDB:
		if results == nil {
			return nil, errors.New("--save-db requires a store")
		}
		return output.NewDBSink(ctx, results, strings.TrimSpace(opts.SaveDB))
	default:
		return nil, fmt.Errorf("unsupported output sink: %s", kind)
	}
}

// listFormat is the rendering used by the resume and collectors listings.
type listFormat string

const (
	listFormatTable listFormat = "table"
	listFormatJSON  listFormat = "json"
)

func parseListFormat(value string) (listFormat, error) {
	switch listFormat(strings.ToLower(strings.TrimSpace(value))) {
	case "", listFormatTable:
		return listFormatTable, nil
	case listFormatJSON:
		return listFormatJSON, nil
	default:
		return "", invalidConfig(fmt.Errorf("unsupported output format: %s", value))
	}
}

type outputSink struct {
	writer io.Writer
	close  func() error
	path   string
}

// openSink opens path for a listing, or stdout for "" and "-".
func openSink(path string, stdout io.Writer) (*outputSink, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed == "-" {
		return &outputSink{writer: stdout, close: func() error { return nil }, path: "-"}, nil
	}

	if err := os.MkdirAll(filepath.Dir(trimmed), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	// #nosec G304 -- path is supplied by the operator
	file, err := os.Create(trimmed)
	if err != nil {
		return nil, err
	}
	return &outputSink{writer: file, close: file.Close, path: trimmed}, nil
}
