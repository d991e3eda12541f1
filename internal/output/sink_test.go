package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/itemtally/itemtally/internal/config"
	"github.com/itemtally/itemtally/internal/core"
	"github.com/itemtally/itemtally/internal/core/store"
)

var sampleResults = []core.CollectionResult{
	{Collector: "anilist-anime", Total: 19876},
	{Collector: "anilist-stats-staff", Total: 4242},
}

func emitAll(t *testing.T, sink Sink) {
	t.Helper()
	for _, r := range sampleResults {
		require.NoError(t, sink.Emit(context.Background(), r))
	}
	require.NoError(t, sink.Close())
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	emitAll(t, &ConsoleSink{Writer: &buf})
	assert.Equal(t, "anilist-anime: 19876\nanilist-stats-staff: 4242\n", buf.String())
}

func TestTableSink(t *testing.T) {
	var buf bytes.Buffer
	emitAll(t, &TableSink{Writer: &buf})

	rendered := buf.String()
	assert.Contains(t, rendered, "PROVIDER")
	assert.Contains(t, rendered, "anilist-anime")
	assert.Contains(t, rendered, "19876")
	assert.Contains(t, rendered, "2 collected")
	assert.Less(t, strings.Index(rendered, "anilist-anime"), strings.Index(rendered, "anilist-stats-staff"))
}

func TestCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "totals.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0600))

	sink, err := NewCSVSink(path)
	require.NoError(t, err)
	emitAll(t, sink)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Provider", "Result"},
		{"anilist-anime", "19876"},
		{"anilist-stats-staff", "4242"},
	}, records)
}

func TestCSVSinkHeaderOnlyWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	sink, err := newCSVSink(&buf)
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	assert.Equal(t, "Provider,Result\n", buf.String())
}

func TestJSONSink(t *testing.T) {
	var buf bytes.Buffer
	emitAll(t, newJSONSink(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var row []any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &row))
	assert.Equal(t, []any{"anilist-anime", float64(19876)}, row)
	assert.Equal(t, `["anilist-stats-staff",4242]`, lines[1])
}

func TestYAMLSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "totals.yaml")
	sink, err := NewYAMLSink(path)
	require.NoError(t, err)
	emitAll(t, sink)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rows []map[string]string
	require.NoError(t, yaml.Unmarshal(data, &rows))
	assert.Equal(t, []map[string]string{
		{"provider": "anilist-anime", "result": "19876"},
		{"provider": "anilist-stats-staff", "result": "4242"},
	}, rows)
}

func TestFileSinksRejectEmptyPath(t *testing.T) {
	_, err := NewCSVSink(" ")
	require.Error(t, err)
	_, err = NewJSONSink("")
	require.Error(t, err)
	_, err = NewYAMLSink("")
	require.Error(t, err)
}

func TestDBSinkReplacesTable(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, config.StoreConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	sink, err := NewDBSink(ctx, db, "totals")
	require.NoError(t, err)
	emitAll(t, sink)

	sink, err = NewDBSink(ctx, db, "totals")
	require.NoError(t, err)
	require.NoError(t, sink.Emit(ctx, core.CollectionResult{Collector: "anilist-manga", Total: 20517}))

	rows, err := db.ListResults(ctx, "totals")
	require.NoError(t, err)
	assert.Equal(t, []store.ResultRow{{Provider: "anilist-manga", Result: "20517"}}, rows)

	_, err = NewDBSink(ctx, db, "drop table")
	require.Error(t, err)
}
