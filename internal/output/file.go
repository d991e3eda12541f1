package output

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/itemtally/itemtally/internal/core"
)

// CSVSink writes a Provider,Result header followed by one row per result.
type CSVSink struct {
	w   *csv.Writer
	dst io.Writer
}

// NewCSVSink truncates path and writes the header row.
func NewCSVSink(path string) (*CSVSink, error) {
	file, err := createFile(path)
	if err != nil {
		return nil, err
	}
	return newCSVSink(file)
}

func newCSVSink(dst io.Writer) (*CSVSink, error) {
	s := &CSVSink{w: csv.NewWriter(dst), dst: dst}
	if err := s.w.Write([]string{"Provider", "Result"}); err != nil {
		_ = closeWriter(dst)
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return s, nil
}

func (s *CSVSink) Emit(_ context.Context, result core.CollectionResult) error {
	if err := s.w.Write([]string{result.Collector, FormatResult(result)}); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		_ = closeWriter(s.dst)
		return err
	}
	return closeWriter(s.dst)
}

// JSONSink appends one [flag, result] array per line.
type JSONSink struct {
	dst io.Writer
	enc *json.Encoder
}

// NewJSONSink truncates path.
func NewJSONSink(path string) (*JSONSink, error) {
	file, err := createFile(path)
	if err != nil {
		return nil, err
	}
	return newJSONSink(file), nil
}

func newJSONSink(dst io.Writer) *JSONSink {
	return &JSONSink{dst: dst, enc: json.NewEncoder(dst)}
}

func (s *JSONSink) Emit(_ context.Context, result core.CollectionResult) error {
	return s.enc.Encode([]any{result.Collector, result.Total})
}

func (s *JSONSink) Close() error {
	return closeWriter(s.dst)
}

type yamlRow struct {
	Provider string `yaml:"provider"`
	Result   string `yaml:"result"`
}

// YAMLSink writes a sequence of provider/result mappings on Close.
type YAMLSink struct {
	dst  io.Writer
	rows []yamlRow
}

// NewYAMLSink truncates path.
func NewYAMLSink(path string) (*YAMLSink, error) {
	file, err := createFile(path)
	if err != nil {
		return nil, err
	}
	return &YAMLSink{dst: file}, nil
}

func (s *YAMLSink) Emit(_ context.Context, result core.CollectionResult) error {
	s.rows = append(s.rows, yamlRow{Provider: result.Collector, Result: FormatResult(result)})
	return nil
}

func (s *YAMLSink) Close() error {
	rows := s.rows
	if rows == nil {
		rows = []yamlRow{}
	}
	enc := yaml.NewEncoder(s.dst)
	enc.SetIndent(2)
	if err := enc.Encode(rows); err != nil {
		_ = closeWriter(s.dst)
		return fmt.Errorf("write yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = closeWriter(s.dst)
		return fmt.Errorf("write yaml: %w", err)
	}
	return closeWriter(s.dst)
}
