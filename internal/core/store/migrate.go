package store

import (
	"context"
	"errors"
	"fmt"
)

var resumeSchema = []string{
	`CREATE TABLE IF NOT EXISTS resume_pages (
		collection TEXT PRIMARY KEY,
		last_page INTEGER NOT NULL,
		page_size INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_resume_pages_updated ON resume_pages(updated_at);`,
}

// columnUpgrades adds columns missing from tables created by older builds.
var columnUpgrades = []struct {
	table, column, definition string
}{
	{"resume_pages", "page_size", "INTEGER NOT NULL DEFAULT 0"},
}

// Migrate creates the resume schema and applies column upgrades.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range resumeSchema {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}
	for _, up := range columnUpgrades {
		if err := s.addColumnIfMissing(ctx, up.table, up.column, up.definition); err != nil {
			return err
		}
	}
	return nil
}

// EnsureResumeSchema creates the resume table if it does not exist.
func (s *Store) EnsureResumeSchema(ctx context.Context) error {
	return s.Migrate(ctx)
}

func (s *Store) addColumnIfMissing(ctx context.Context, table, column, definition string) error {
	var present int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&present)
	if err != nil {
		return fmt.Errorf("inspect %s schema: %w", table, err)
	}
	if present > 0 {
		return nil
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)
	if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("add %s.%s column: %w", table, column, err)
	}
	return nil
}
