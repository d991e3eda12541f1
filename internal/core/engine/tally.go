package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/itemtally/itemtally/internal/core"
)

// ResumeStore persists the last located page per collection.
type ResumeStore interface {
	LoadResume(ctx context.Context, collection string) (core.ResumeRecord, bool, error)
	SaveResume(ctx context.Context, record core.ResumeRecord) error
	EnsureResumeSchema(ctx context.Context) error
}

// PagedTally counts the items of a paged collection, resuming from and then
// updating the stored boundary.
type PagedTally struct {
	Resume      ResumeStore
	Step        int
	NarrowWidth int
	MaxFetches  int
	Logger      Logger
	Clock       func() time.Time
}

// TallyOptions override the tally defaults for one collection.
type TallyOptions struct {
	Step int
}

// Count locates the boundary of the collection stored under key and returns
// its total. No resume record is written when the search fails.
func (t *PagedTally) Count(ctx context.Context, key string, pageSize int, fetcher PageFetcher, opts ...TallyOptions) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if t == nil {
		return 0, errors.New("tally is not initialized")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return 0, errors.New("collection key is required")
	}
	if pageSize < 1 {
		return 0, fmt.Errorf("page size must be positive, got %d", pageSize)
	}

	logger := t.logger()
	hint := 0
	if t.Resume != nil {
		record, ok, err := t.Resume.LoadResume(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("load resume for %s: %w", key, err)
		}
		switch {
		case !ok:
		case record.PageSize != 0 && record.PageSize != pageSize:
			logger.Warn("Page size changed; discarding resume page",
				zap.String("collection", key),
				zap.Int("stored_page_size", record.PageSize),
				zap.Int("page_size", pageSize))
		case record.LastPage >= 1:
			hint = record.LastPage
		}
	}

	step := t.Step
	for _, opt := range opts {
		if opt.Step != 0 {
			step = opt.Step
		}
	}

	locator := &BoundaryLocator{
		Fetcher:     fetcher,
		Step:        step,
		NarrowWidth: t.NarrowWidth,
		MaxFetches:  t.MaxFetches,
		Logger:      logger,
	}
	boundary, err := locator.Locate(ctx, hint)
	if err != nil {
		return 0, err
	}

	total := core.TotalCount(pageSize, boundary.LastPage, boundary.ItemsOnLastPage)
	logger.Info("Located last page",
		zap.String("collection", key),
		zap.Int("resume_page", hint),
		zap.Int("last_page", boundary.LastPage),
		zap.Int("items_on_last_page", boundary.ItemsOnLastPage),
		zap.Int("fetches", boundary.Fetches),
		zap.Int64("total", total))

	if t.Resume != nil {
		record := core.ResumeRecord{
			Collection: key,
			LastPage:   boundary.LastPage,
			PageSize:   pageSize,
			UpdatedAt:  t.now(),
		}
		if err := t.Resume.SaveResume(ctx, record); err != nil {
			return 0, fmt.Errorf("save resume for %s: %w", key, err)
		}
	}

	return total, nil
}

func (t *PagedTally) logger() Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}

func (t *PagedTally) now() time.Time {
	if t.Clock != nil {
		return t.Clock().UTC()
	}
	return time.Now().UTC()
}
