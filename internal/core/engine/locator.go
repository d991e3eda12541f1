package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/itemtally/itemtally/internal/core"
	"github.com/itemtally/itemtally/internal/metrics"
)

const (
	// DefaultStep is the bracketing stride used when none is configured.
	DefaultStep = 250
	// DefaultNarrowWidth is the bracket width below which binary narrowing
	// hands over to linear confirmation.
	DefaultNarrowWidth = 5
)

// ErrFetchBudgetExceeded is returned when a search would exceed MaxFetches.
var ErrFetchBudgetExceeded = errors.New("page fetch budget exceeded")

// Logger is the logging surface used by the engine. Both *zap.Logger and the
// gofulmen logger satisfy it.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// PageFetcher returns the descriptor of a single 1-based listing page.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) (core.PageDescriptor, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, page int) (core.PageDescriptor, error)

// FetchPage implements PageFetcher.
func (f PageFetcherFunc) FetchPage(ctx context.Context, page int) (core.PageDescriptor, error) {
	return f(ctx, page)
}

// Boundary is the located last page of a collection.
type Boundary struct {
	LastPage        int `json:"last_page"`
	ItemsOnLastPage int `json:"items_on_last_page"`
	Fetches         int `json:"fetches"`
}

// BoundaryLocator finds the last non-empty page of a listing whose total is
// unknown. It brackets with a fixed stride, narrows by bisection and then
// walks forward page by page.
type BoundaryLocator struct {
	Fetcher     PageFetcher
	Step        int
	NarrowWidth int
	MaxFetches  int
	Logger      Logger
}

type search struct {
	locator *BoundaryLocator
	fetches int
	// seen holds descriptors already fetched in this search; a page is
	// requested at most once.
	seen map[int]core.PageDescriptor
}

// Locate runs the search. A positive hint skips bracketing and starts the
// linear walk at that page.
func (l *BoundaryLocator) Locate(ctx context.Context, hint int) (Boundary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if l == nil || l.Fetcher == nil {
		return Boundary{}, errors.New("page fetcher is required")
	}
	if hint < 0 {
		return Boundary{}, fmt.Errorf("resume hint must be non-negative, got %d", hint)
	}

	step := l.Step
	if step == 0 {
		step = DefaultStep
	}
	if step < 1 {
		return Boundary{}, fmt.Errorf("step must be at least 1, got %d", l.Step)
	}
	width := l.NarrowWidth
	if width <= 0 {
		width = DefaultNarrowWidth
	}

	s := &search{locator: l, seen: make(map[int]core.PageDescriptor)}

	start := hint
	if hint == 0 {
		lo, hi, err := s.bracket(ctx, step)
		if err != nil {
			return Boundary{}, err
		}
		start, err = s.narrow(ctx, lo, hi, width)
		if err != nil {
			return Boundary{}, err
		}
	}

	last, items, err := s.confirm(ctx, start, hint > 0)
	if err != nil {
		return Boundary{}, err
	}

	return Boundary{LastPage: last, ItemsOnLastPage: items, Fetches: s.fetches}, nil
}

// bracket returns [start, end] where end is the first terminal page seen on
// the stride and start is the probe before it.
func (s *search) bracket(ctx context.Context, step int) (int, int, error) {
	page := 1
	for {
		desc, err := s.fetch(ctx, "bracket", page)
		if err != nil {
			return 0, 0, err
		}
		if desc.Terminal() {
			break
		}
		page += step
	}

	end := page
	start := end - step
	if start < 1 {
		start = 1
	}
	return start, end, nil
}

func (s *search) narrow(ctx context.Context, start, end, width int) (int, error) {
	for end-start > width {
		mid := (start + end) / 2
		desc, err := s.fetch(ctx, "narrow", mid)
		if err != nil {
			return 0, err
		}
		if !desc.Terminal() {
			start = mid
			continue
		}
		end = mid
		if desc.ItemCount > 0 {
			// mid is the last page.
			start = mid
			break
		}
	}
	return start, nil
}

func (s *search) confirm(ctx context.Context, page int, resumed bool) (int, int, error) {
	first := true
	for {
		desc, err := s.fetch(ctx, "confirm", page)
		if err != nil {
			return 0, 0, err
		}
		if desc.Terminal() {
			if first && resumed && desc.ItemCount == 0 && page > 1 {
				s.locator.logger().Warn("Resume page is empty; collection may have shrunk",
					zap.Int("page", page))
			}
			return page, desc.ItemCount, nil
		}
		first = false
		page++
	}
}

func (s *search) fetch(ctx context.Context, phase string, page int) (core.PageDescriptor, error) {
	if desc, ok := s.seen[page]; ok {
		return desc, nil
	}
	if limit := s.locator.MaxFetches; limit > 0 && s.fetches >= limit {
		return core.PageDescriptor{}, fmt.Errorf("%w: %d fetches", ErrFetchBudgetExceeded, limit)
	}
	if err := ctx.Err(); err != nil {
		return core.PageDescriptor{}, err
	}

	s.fetches++
	desc, err := s.locator.Fetcher.FetchPage(ctx, page)
	metrics.RecordPageFetch(phase, err == nil)
	if err != nil {
		return core.PageDescriptor{}, fmt.Errorf("fetch page %d: %w", page, err)
	}

	s.seen[page] = desc
	s.locator.logger().Debug("Fetched page",
		zap.String("phase", phase),
		zap.Int("page", page),
		zap.Int("items", desc.ItemCount),
		zap.Bool("has_next_page", desc.HasNextPage))
	return desc, nil
}

func (l *BoundaryLocator) logger() Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}
