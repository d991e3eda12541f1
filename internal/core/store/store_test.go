package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/itemtally/itemtally/internal/config"
)

func TestBuildLibsqlDSN(t *testing.T) {
	t.Run("URLUsesRawValue", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://example.turso.io",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=token123", dsn)
	})

	t.Run("URLWithExistingQuery", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://example.turso.io?foo=bar",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=token123&foo=bar", dsn)
	})

	t.Run("PathWithFilePrefix", func(t *testing.T) {
		cfg := config.StoreConfig{Path: "file:./itemtally.db"}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "file:./itemtally.db", dsn)
	})

	t.Run("PlainPathCreatesDirectory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "itemtally.db")

		dsn, err := buildLibsqlDSN(config.StoreConfig{Path: path})
		require.NoError(t, err)
		require.Equal(t, "file:"+path, dsn)
		require.DirExists(t, filepath.Dir(path))
	})

	t.Run("PathMissing", func(t *testing.T) {
		_, err := buildLibsqlDSN(config.StoreConfig{})
		require.Error(t, err)
	})

	t.Run("MemoryPath", func(t *testing.T) {
		dsn, err := buildLibsqlDSN(config.StoreConfig{Path: ":memory:"})
		require.NoError(t, err)
		require.Equal(t, ":memory:", dsn)
	})
}

func TestBuildSQLiteDSN(t *testing.T) {
	dsn, err := buildSQLiteDSN(config.StoreConfig{Path: ":memory:"})
	require.NoError(t, err)
	require.Equal(t, ":memory:", dsn)

	path := filepath.Join(t.TempDir(), "data", "itemtally.db")
	dsn, err = buildSQLiteDSN(config.StoreConfig{Path: "file:" + path})
	require.NoError(t, err)
	require.Equal(t, path, dsn)

	_, err = buildSQLiteDSN(config.StoreConfig{URL: "libsql://example.turso.io"})
	require.Error(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "postgres", Path: ":memory:"})
	require.ErrorContains(t, err, "unsupported store driver")
}

func TestValidateIdentifier(t *testing.T) {
	for _, name := range []string{"results", "Daily_Totals", "_t1"} {
		require.NoError(t, ValidateIdentifier(name), name)
	}
	for _, name := range []string{"", "1results", "results; DROP TABLE x", "a-b", "sqlite_master", "resume_pages", "tab le"} {
		require.Error(t, ValidateIdentifier(name), name)
	}
}

func TestResumeQuery(t *testing.T) {
	require.Error(t, ResumeQuery{}.Validate())
	require.NoError(t, ResumeQuery{All: true}.Validate())
	require.NoError(t, ResumeQuery{Collection: "anilist-anime"}.Validate())
	require.NoError(t, ResumeQuery{Prefix: "anilist"}.Validate())

	require.True(t, ResumeQuery{All: true}.Matches("x"))
	require.True(t, ResumeQuery{Collection: "anilist-anime"}.Matches("anilist-anime"))
	require.False(t, ResumeQuery{Collection: "anilist-anime"}.Matches("anilist-anime-2"))
	require.True(t, ResumeQuery{Prefix: "anilist-"}.Matches("anilist-manga"))
	require.False(t, ResumeQuery{Prefix: "anilist-"}.Matches("mal-anime"))
}

func TestDecodeResumeHash(t *testing.T) {
	record, err := decodeResumeHash("anilist-anime", map[string]string{
		"last_page":  "412",
		"page_size":  "50",
		"updated_at": "1736035200",
	})
	require.NoError(t, err)
	require.Equal(t, 412, record.LastPage)
	require.Equal(t, 50, record.PageSize)
	require.Equal(t, int64(1736035200), record.UpdatedAt.Unix())

	_, err = decodeResumeHash("anilist-anime", map[string]string{"last_page": "many"})
	require.Error(t, err)
}

func TestEscapeGlob(t *testing.T) {
	require.Equal(t, `itemtally:resume:a\*b\?`, escapeGlob("itemtally:resume:a*b?"))
	require.Equal(t, `\[x\]`, escapeGlob("[x]"))
}
