package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/itemtally/itemtally/internal/config"
	"github.com/itemtally/itemtally/internal/core"
	"github.com/itemtally/itemtally/internal/core/store"
	"github.com/itemtally/itemtally/internal/output"
)

// listingServer serves a GraphQL media listing ending at lastPage and a
// statistics count for every other query.
type listingServer struct {
	mu        sync.Mutex
	lastPage  int
	lastItems int
	requested []int
}

func (s *listingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if strings.Contains(body.Query, "SiteStatistics") {
		_, _ = fmt.Fprint(w, `{"data":{"SiteStatistics":{"manga":{"nodes":[{"date":1,"count":777}]}}}}`)
		return
	}

	page := int(body.Variables["page"].(float64))
	perPage := int(body.Variables["perPage"].(float64))

	s.mu.Lock()
	s.requested = append(s.requested, page)
	s.mu.Unlock()

	items := 0
	switch {
	case page < s.lastPage:
		items = perPage
	case page == s.lastPage:
		items = s.lastItems
	}
	media := make([]string, items)
	for i := range media {
		media[i] = fmt.Sprintf(`{"id":%d}`, i)
	}
	_, _ = fmt.Fprintf(w, `{"data":{"Page":{"media":[%s],"pageInfo":{"hasNextPage":%t}}}}`,
		strings.Join(media, ","), page < s.lastPage)
}

func (s *listingServer) pages() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.requested...)
}

func (s *listingServer) reset() {
	s.mu.Lock()
	s.requested = nil
	s.mu.Unlock()
}

func testConfig(t *testing.T, endpoint string) *config.Config {
	t.Helper()
	collectorCfg := config.CollectorConfig{Endpoint: endpoint, PageSize: 50, Step: 3, Interval: time.Nanosecond}
	return &config.Config{
		Store:   config.StoreConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "itemtally.db")},
		Workers: 2,
		Collectors: map[string]config.CollectorConfig{
			"anilist-anime":       collectorCfg,
			"anilist-stats-manga": collectorCfg,
		},
	}
}

func TestRunCollectPrintAndResume(t *testing.T) {
	listing := &listingServer{lastPage: 7, lastItems: 23}
	srv := httptest.NewServer(listing)
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	opts := collectOptions{
		Flags: []string{"anilist-stats-manga", "anilist-anime"},
		Sink:  sinkOptions{Print: true},
	}

	var out bytes.Buffer
	results, err := runCollect(context.Background(), cfg, opts, &out)
	require.NoError(t, err)
	require.NoError(t, summarize(results))
	require.Len(t, results, 2)
	assert.Equal(t, "anilist-anime: 323\nanilist-stats-manga: 777\n", out.String())

	db, err := store.Open(context.Background(), cfg.Store)
	require.NoError(t, err)
	record, ok, err := db.LoadResume(context.Background(), "anilist-anime")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, record.LastPage)
	assert.Equal(t, 50, record.PageSize)
	require.NoError(t, db.Close())

	listing.reset()
	out.Reset()
	results, err = runCollect(context.Background(), cfg, collectOptions{
		Flags: []string{"anilist-anime"},
		Sink:  sinkOptions{Print: true},
	}, &out)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "anilist-anime: 323\n", out.String())
	assert.Equal(t, []int{7}, listing.pages())
}

func TestRunCollectSavesCSV(t *testing.T) {
	srv := httptest.NewServer(&listingServer{lastPage: 1, lastItems: 0})
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	path := filepath.Join(t.TempDir(), "out", "totals.csv")

	_, err := runCollect(context.Background(), cfg, collectOptions{
		Flags: []string{"anilist-anime"},
		Sink:  sinkOptions{SaveCSV: path},
	}, &bytes.Buffer{})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Provider,Result\nanilist-anime,0\n", string(data))
}

func TestRunCollectSavesToDB(t *testing.T) {
	srv := httptest.NewServer(&listingServer{lastPage: 3, lastItems: 5})
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	_, err := runCollect(context.Background(), cfg, collectOptions{
		Flags: []string{"anilist-anime", "anilist-stats-manga"},
		Sink:  sinkOptions{SaveDB: "totals"},
	}, &bytes.Buffer{})
	require.NoError(t, err)

	db, err := store.Open(context.Background(), cfg.Store)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows, err := db.ListResults(context.Background(), "totals")
	require.NoError(t, err)
	assert.Equal(t, []store.ResultRow{
		{Provider: "anilist-anime", Result: "105"},
		{Provider: "anilist-stats-manga", Result: "777"},
	}, rows)
}

func TestRunCollectReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	var out bytes.Buffer
	results, err := runCollect(context.Background(), cfg, collectOptions{
		Flags: []string{"anilist-anime"},
		Sink:  sinkOptions{Print: true},
	}, &out)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].OK())
	assert.Empty(t, out.String())

	err = summarize(results)
	var failed *CollectionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 1, failed.Failed)
	assert.Equal(t, foundry.ExitFailure, ExitCodeFor(err))

	db, err := store.Open(context.Background(), cfg.Store)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	_, ok, err := db.LoadResume(context.Background(), "anilist-anime")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunCollectRejectsBadSelection(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")

	_, err := runCollect(context.Background(), cfg, collectOptions{Sink: sinkOptions{Print: true}}, &bytes.Buffer{})
	require.ErrorContains(t, err, "no collectors selected")

	_, err = runCollect(context.Background(), cfg, collectOptions{
		Flags: []string{"mal-anime"},
		Sink:  sinkOptions{Print: true},
	}, &bytes.Buffer{})
	require.ErrorContains(t, err, "unknown collector(s): mal-anime")

	_, err = runCollect(context.Background(), cfg, collectOptions{Flags: []string{"anilist-anime"}}, &bytes.Buffer{})
	require.ErrorContains(t, err, "output sink is required")
}

func TestSinkOptionsKind(t *testing.T) {
	tests := []struct {
		name    string
		opts    sinkOptions
		want    output.Kind
		wantErr string
	}{
		{name: "print", opts: sinkOptions{Print: true}, want: output.KindPrint},
		{name: "table", opts: sinkOptions{Table: true}, want: output.KindTable},
		{name: "csv", opts: sinkOptions{SaveCSV: "a.csv"}, want: output.KindCSV},
		{name: "json", opts: sinkOptions{SaveJSON: "a.json"}, want: output.KindJSON},
		{name: "yaml", opts: sinkOptions{SaveYAML: "a.yaml"}, want: output.KindYAML},
		{name: "db", opts: sinkOptions{SaveDB: " totals "}, want: output.KindDB},
		{name: "none", opts: sinkOptions{}, wantErr: "output sink is required"},
		{name: "blank path", opts: sinkOptions{SaveCSV: "  "}, wantErr: "output sink is required"},
		{name: "two", opts: sinkOptions{Print: true, SaveCSV: "a.csv"}, wantErr: "only one output sink"},
		{name: "bad table", opts: sinkOptions{SaveDB: "totals; DROP TABLE x"}, wantErr: "invalid table name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.opts.kind()
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCollectFlagsRegistered(t *testing.T) {
	for _, name := range []string{"anilist-anime", "anilist-stats-staff", "all", "workers", "print", "save-db"} {
		require.NotNil(t, collectCmd.Flags().Lookup(name), name)
	}
}

func TestLogRateLimitsReportsEachOrigin(t *testing.T) {
	observed, logs := observer.New(zapcore.InfoLevel)

	logRateLimits(zap.New(observed), []core.RateLimitState{
		{Origin: "https://graphql.anilist.co", Interval: 5 * time.Second, Dispatches: 9},
	})

	entries := logs.FilterMessage("Origin pacing").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "https://graphql.anilist.co", fields["origin"])
	assert.Equal(t, 5*time.Second, fields["interval"])
	assert.Equal(t, int64(9), fields["dispatches"])
}
