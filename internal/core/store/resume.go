package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/itemtally/itemtally/internal/core"
)

// LoadResume returns the stored boundary for a collection.
func (s *Store) LoadResume(ctx context.Context, collection string) (core.ResumeRecord, bool, error) {
	if s == nil || s.DB == nil {
		return core.ResumeRecord{}, false, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	collection = strings.TrimSpace(collection)
	if collection == "" {
		return core.ResumeRecord{}, false, errors.New("collection is required")
	}

	var (
		lastPage  int
		pageSize  int
		updatedAt int64
	)
	row := s.DB.QueryRowContext(ctx, `
		SELECT last_page, page_size, updated_at
		FROM resume_pages
		WHERE collection = ?
	`, collection)

	if err := row.Scan(&lastPage, &pageSize, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ResumeRecord{}, false, nil
		}
		return core.ResumeRecord{}, false, fmt.Errorf("fetch resume page: %w", err)
	}

	return core.ResumeRecord{
		Collection: collection,
		LastPage:   lastPage,
		PageSize:   pageSize,
		UpdatedAt:  time.Unix(updatedAt, 0).UTC(),
	}, true, nil
}

// SaveResume upserts the boundary for a collection.
func (s *Store) SaveResume(ctx context.Context, record core.ResumeRecord) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	collection := strings.TrimSpace(record.Collection)
	if collection == "" {
		return errors.New("collection is required")
	}
	if record.LastPage < 1 {
		return fmt.Errorf("last page must be at least 1, got %d", record.LastPage)
	}

	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO resume_pages (collection, last_page, page_size, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection) DO UPDATE SET
			last_page = excluded.last_page,
			page_size = excluded.page_size,
			updated_at = excluded.updated_at
	`, collection, record.LastPage, record.PageSize, updatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store resume page: %w", err)
	}

	return nil
}
