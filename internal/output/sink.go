// Package output writes collection results to the sink chosen on the command
// line.
package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/itemtally/itemtally/internal/core"
)

// Kind names a sink selectable from the CLI.
type Kind string

const (
	KindPrint Kind = "print"
	KindTable Kind = "table"
	KindCSV   Kind = "csv"
	KindJSON  Kind = "json"
	KindYAML  Kind = "yaml"
	KindDB    Kind = "db"
)

// Sink receives successful results in registry order. Close flushes any
// buffered output and releases the destination.
type Sink interface {
	Emit(ctx context.Context, result core.CollectionResult) error
	Close() error
}

// FormatResult renders a total the way every sink stores it.
func FormatResult(result core.CollectionResult) string {
	return strconv.FormatInt(result.Total, 10)
}

// createFile truncates or creates path, creating parent directories.
func createFile(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if dir := filepath.Dir(trimmed); dir != "." {
		// #nosec G301 -- output directories use 0755 like the data directory
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	// #nosec G304 -- path is supplied by the operator
	file, err := os.Create(trimmed)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return file, nil
}

func closeWriter(w io.Writer) error {
	if closer, ok := w.(io.Closer); ok && w != os.Stdout && w != os.Stderr {
		return closer.Close()
	}
	return nil
}
