package output

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/itemtally/itemtally/internal/core"
)

// ConsoleSink prints one "<flag>: <result>" line per result.
type ConsoleSink struct {
	Writer io.Writer
}

func (s *ConsoleSink) Emit(_ context.Context, result core.CollectionResult) error {
	_, err := fmt.Fprintf(s.Writer, "%s: %s\n", result.Collector, FormatResult(result))
	return err
}

func (s *ConsoleSink) Close() error { return nil }

// TableSink collects results and renders them as a rounded table on Close.
type TableSink struct {
	Writer io.Writer
	rows   []core.CollectionResult
}

func (s *TableSink) Emit(_ context.Context, result core.CollectionResult) error {
	s.rows = append(s.rows, result)
	return nil
}

func (s *TableSink) Close() error {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Provider", "Result"})
	for _, r := range s.rows {
		t.AppendRow(table.Row{r.Collector, FormatResult(r)})
	}
	if len(s.rows) > 0 {
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d collected", len(s.rows))})
	}
	_, err := fmt.Fprintln(s.Writer, t.Render())
	return err
}
