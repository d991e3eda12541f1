package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateIdentifier rejects table names that cannot be used unquoted.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q: use letters, digits and underscores", name)
	}
	if strings.HasPrefix(strings.ToLower(name), "sqlite_") {
		return fmt.Errorf("invalid table name %q: reserved prefix", name)
	}
	if strings.EqualFold(name, "resume_pages") {
		return fmt.Errorf("invalid table name %q: used for resume pages", name)
	}
	return nil
}

// ResetResultTable drops and recreates a results table.
func (s *Store) ResetResultTable(ctx context.Context, table string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ValidateIdentifier(table); err != nil {
		return err
	}

	statements := []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s", table),
		fmt.Sprintf("CREATE TABLE %s (provider TEXT PRIMARY KEY, result TEXT)", table),
	}
	for _, stmt := range statements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset results table %s: %w", table, err)
		}
	}
	return nil
}

// InsertResult writes one collector result into a results table.
func (s *Store) InsertResult(ctx context.Context, table, provider, result string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ValidateIdentifier(table); err != nil {
		return err
	}

	_, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (provider, result)
		VALUES (?, ?)
		ON CONFLICT(provider) DO UPDATE SET result = excluded.result
	`, table), provider, result)
	if err != nil {
		return fmt.Errorf("insert result into %s: %w", table, err)
	}
	return nil
}

// ResultRow is one stored collector result.
type ResultRow struct {
	Provider string
	Result   string
}

// ListResults returns the rows of a results table ordered by provider.
func (s *Store) ListResults(ctx context.Context, table string) ([]ResultRow, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ValidateIdentifier(table); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf("SELECT provider, result FROM %s ORDER BY provider", table))
	if err != nil {
		return nil, fmt.Errorf("list results from %s: %w", table, err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	out := []ResultRow{}
	for rows.Next() {
		var row ResultRow
		if err := rows.Scan(&row.Provider, &row.Result); err != nil {
			return nil, fmt.Errorf("scan results: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list results from %s: %w", table, err)
	}
	return out, nil
}
