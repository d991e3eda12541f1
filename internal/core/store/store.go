package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/itemtally/itemtally/internal/config"
)

const (
	driverLibsql = "libsql"
	driverSQLite = "sqlite"

	busyTimeoutMillis = 5000
)

// driver describes how a configured store maps onto a database/sql driver.
type driver struct {
	build   func(config.StoreConfig) (string, error)
	isLocal func(dsn string) bool
}

var drivers = map[string]driver{
	driverLibsql: {
		build: buildLibsqlDSN,
		isLocal: func(dsn string) bool {
			return dsn == ":memory:" || strings.HasPrefix(dsn, "file:")
		},
	},
	driverSQLite: {
		build:   buildSQLiteDSN,
		isLocal: func(string) bool { return true },
	},
}

// Store wraps the database connection holding resume pages and saved results.
type Store struct {
	DB     *sql.DB
	driver string
}

// Open connects to the configured store. Local databases are limited to a
// single connection with WAL journaling.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	name := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if name == "" {
		name = driverLibsql
	}
	drv, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("unsupported store driver: %s", name)
	}

	dsn, err := drv.build(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s store: %w", name, err)
	}
	if drv.isLocal(dsn) {
		if err := configureLocal(ctx, db, dsn); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &Store{DB: db, driver: name}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Driver returns the configured store driver.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// configureLocal serializes access to a local database file. A single
// connection also keeps an in-memory database alive across queries.
func configureLocal(ctx context.Context, db *sql.DB, dsn string) error {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if dsn == ":memory:" {
		return nil
	}

	pragmas := []struct{ stmt, what string }{
		{"PRAGMA journal_mode=WAL", "enable WAL journal"},
		{fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis), "set busy timeout"},
	}
	for _, p := range pragmas {
		var ignored any
		if err := db.QueryRowContext(ctx, p.stmt).Scan(&ignored); err != nil {
			return fmt.Errorf("%s: %w", p.what, err)
		}
	}
	return nil
}

func buildLibsqlDSN(cfg config.StoreConfig) (string, error) {
	if dsn := strings.TrimSpace(cfg.URL); dsn != "" {
		return addAuthToken(dsn, cfg.AuthToken)
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", errors.New("store path or url is required")
	}

	if path == ":memory:" {
		return path, nil
	}

	if strings.HasPrefix(path, "file:") {
		localPath, err := extractFilePath(path)
		if err != nil {
			return "", err
		}
		if err := ensureStoreDir(localPath); err != nil {
			return "", err
		}
		return path, nil
	}

	if strings.HasPrefix(path, "libsql:") {
		return path, nil
	}

	if err := ensureStoreDir(path); err != nil {
		return "", err
	}
	return "file:" + filepath.Clean(path), nil
}

func buildSQLiteDSN(cfg config.StoreConfig) (string, error) {
	if strings.TrimSpace(cfg.URL) != "" {
		return "", errors.New("the sqlite driver only supports a local store path")
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", errors.New("store path is required")
	}
	if path == ":memory:" {
		return path, nil
	}

	localPath := path
	if strings.HasPrefix(path, "file:") {
		extracted, err := extractFilePath(path)
		if err != nil {
			return "", err
		}
		localPath = extracted
	}
	if err := ensureStoreDir(localPath); err != nil {
		return "", err
	}
	return filepath.Clean(localPath), nil
}

func addAuthToken(dsn string, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return dsn, nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}

	query := parsed.Query()
	if query.Get("authToken") == "" {
		query.Set("authToken", token)
		parsed.RawQuery = query.Encode()
	}

	return parsed.String(), nil
}

func extractFilePath(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}

	if parsed.Path != "" {
		return strings.TrimPrefix(parsed.Path, "//"), nil
	}

	return strings.TrimPrefix(parsed.Opaque, "//"), nil
}

func ensureStoreDir(path string) error {
	if strings.TrimSpace(path) == "" || path == ":memory:" {
		return nil
	}

	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
