package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itemtally/itemtally/internal/config"
	"github.com/itemtally/itemtally/internal/core"
	"github.com/itemtally/itemtally/internal/core/store"
)

func openTestResume(t *testing.T) resumeBackend {
	t.Helper()
	backend, err := openResume(context.Background(), &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	for i, collection := range []string{"anilist-anime", "anilist-manga", "mal-anime"} {
		require.NoError(t, backend.SaveResume(context.Background(), core.ResumeRecord{
			Collection: collection,
			LastPage:   100 + i,
			PageSize:   50,
			UpdatedAt:  time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
		}))
	}
	return backend
}

func TestOpenResumeRejectsUnknownBackend(t *testing.T) {
	_, err := openResume(context.Background(), &config.Config{Resume: config.ResumeConfig{Backend: "etcd"}})
	require.ErrorContains(t, err, "unsupported resume backend")
	require.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(err))
}

func TestResumeResetQuery(t *testing.T) {
	_, err := resumeResetQuery(false, "", "", false, false)
	require.ErrorContains(t, err, "must specify")

	_, err = resumeResetQuery(true, "", "", false, false)
	require.ErrorContains(t, err, "--all requires --yes")

	query, err := resumeResetQuery(true, "", "", false, true)
	require.NoError(t, err)
	assert.True(t, query.All)

	query, err = resumeResetQuery(false, " anilist-anime ", "", false, false)
	require.NoError(t, err)
	assert.Equal(t, store.ResumeQuery{Collection: "anilist-anime"}, query)
}

func TestResetResumeDryRunKeepsRecords(t *testing.T) {
	ctx := context.Background()
	backend := openTestResume(t)

	var out bytes.Buffer
	require.NoError(t, resetResume(ctx, backend, store.ResumeQuery{Prefix: "anilist-"}, true, listFormatTable, &out))
	assert.Equal(t, "Would delete 2 resume page(s)\n", out.String())

	count, err := backend.CountResume(ctx, store.ResumeQuery{All: true})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestResetResumeDeletes(t *testing.T) {
	ctx := context.Background()
	backend := openTestResume(t)

	var out bytes.Buffer
	require.NoError(t, resetResume(ctx, backend, store.ResumeQuery{Prefix: "anilist-"}, false, listFormatJSON, &out))

	var result map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, float64(2), result["matched"])
	assert.Equal(t, float64(2), result["deleted"])
	assert.Equal(t, false, result["dry_run"])

	records, err := backend.ListResume(ctx, store.ResumeQuery{All: true})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "mal-anime", records[0].Collection)
}

func TestWriteResumeList(t *testing.T) {
	backend := openTestResume(t)
	records, err := backend.ListResume(context.Background(), store.ResumeQuery{Prefix: "anilist-"})
	require.NoError(t, err)

	var table bytes.Buffer
	require.NoError(t, writeResumeList(&table, listFormatTable, records))
	assert.Contains(t, table.String(), "Resume Pages")
	assert.Contains(t, table.String(), "anilist-anime: last_page=100 page_size=50 updated_at=2025-01-05T00:00:00Z")
	assert.NotContains(t, table.String(), "mal-anime")

	var empty bytes.Buffer
	require.NoError(t, writeResumeList(&empty, listFormatTable, nil))
	assert.Contains(t, empty.String(), "(no stored resume pages)")

	var js bytes.Buffer
	require.NoError(t, writeResumeList(&js, listFormatJSON, records))
	var decoded []core.ResumeRecord
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Len(t, decoded, 2)
}

func TestParseListFormat(t *testing.T) {
	format, err := parseListFormat("")
	require.NoError(t, err)
	assert.Equal(t, listFormatTable, format)

	format, err = parseListFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, listFormatJSON, format)

	_, err = parseListFormat("markdown")
	require.ErrorContains(t, err, "unsupported output format")
}
