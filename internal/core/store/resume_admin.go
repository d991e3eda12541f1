package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/itemtally/itemtally/internal/core"
)

// ResumeQuery selects resume records for listing or reset.
type ResumeQuery struct {
	All        bool
	Collection string
	Prefix     string
}

func (q ResumeQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Collection) != "" {
		return nil
	}
	if strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --collection, or --prefix")
}

// Matches reports whether a collection name falls under the query.
func (q ResumeQuery) Matches(collection string) bool {
	if q.All {
		return true
	}
	if c := strings.TrimSpace(q.Collection); c != "" {
		return collection == c
	}
	prefix := strings.TrimSpace(q.Prefix)
	return prefix != "" && strings.HasPrefix(collection, prefix)
}

func (q ResumeQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	if collection := strings.TrimSpace(q.Collection); collection != "" {
		return "WHERE collection = ?", []any{collection}, nil
	}
	prefix := strings.TrimSpace(q.Prefix)
	if prefix == "" {
		return "", nil, errors.New("prefix is required")
	}
	return "WHERE collection LIKE ? ESCAPE '\\'", []any{escapeLike(prefix) + "%"}, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

func (s *Store) ListResume(ctx context.Context, q ResumeQuery) ([]core.ResumeRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT collection, last_page, page_size, updated_at
		FROM resume_pages
		%s
		ORDER BY collection
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list resume pages: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	records := []core.ResumeRecord{}
	for rows.Next() {
		var (
			record    core.ResumeRecord
			updatedAt int64
		)
		if err := rows.Scan(&record.Collection, &record.LastPage, &record.PageSize, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan resume pages: %w", err)
		}
		record.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list resume pages: %w", err)
	}

	return records, nil
}

func (s *Store) CountResume(ctx context.Context, q ResumeQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM resume_pages
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count resume pages: %w", err)
	}
	return count, nil
}

func (s *Store) ResetResume(ctx context.Context, q ResumeQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM resume_pages
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset resume pages: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset resume pages: %w", err)
	}
	return affected, nil
}
