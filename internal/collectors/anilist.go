package collectors

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/itemtally/itemtally/internal/config"
	"github.com/itemtally/itemtally/internal/core/engine"
	"github.com/itemtally/itemtally/internal/core/fetcher"
)

const groupAniList = "AniList"

func endpointFor(settings config.CollectorConfig) string {
	if endpoint := strings.TrimSpace(settings.Endpoint); endpoint != "" {
		return endpoint
	}
	return fetcher.DefaultEndpoint
}

func rateLimits(endpoint string, interval time.Duration) map[string]time.Duration {
	return map[string]time.Duration{endpoint: interval}
}

// mediaCollector counts a media listing by searching for its last page.
func mediaCollector(cfg *config.Config, flag, mediaType, description string) engine.Collector {
	settings := settingsFor(cfg, flag)
	endpoint := endpointFor(settings)
	pageSize := settings.PageSize
	if pageSize <= 0 {
		pageSize = fetcher.DefaultPageSize
	}
	agent := userAgent(cfg)
	query := fetcher.MediaPageQuery(mediaType)

	return engine.Collector{
		Flag:         flag,
		Group:        groupAniList,
		Description:  description,
		NeedsStore:   true,
		RateLimits:   rateLimits(endpoint, settings.Interval),
		IncludeInAll: enabled(settings),
		Run: func(ctx context.Context, rc engine.RunContext) (int64, error) {
			if rc.Tally == nil {
				return 0, errors.New("paged tally is not initialized")
			}
			pager := &fetcher.GraphQLPager{
				Endpoint:  endpoint,
				Client:    rc.HTTP,
				UserAgent: agent,
				Query:     query,
				ListField: "media",
				PageSize:  pageSize,
			}
			return rc.Tally.Count(ctx, flag, pageSize, pager, engine.TallyOptions{Step: settings.Step})
		},
	}
}

// statisticsCollector reads a precomputed count from the statistics endpoint.
func statisticsCollector(cfg *config.Config, flag, category, description string) engine.Collector {
	settings := settingsFor(cfg, flag)
	endpoint := endpointFor(settings)
	agent := userAgent(cfg)

	return engine.Collector{
		Flag:         flag,
		Group:        groupAniList,
		Description:  description,
		RateLimits:   rateLimits(endpoint, settings.Interval),
		IncludeInAll: enabled(settings),
		Run: func(ctx context.Context, rc engine.RunContext) (int64, error) {
			stats := &fetcher.StatisticsFetcher{
				Endpoint:  endpoint,
				Client:    rc.HTTP,
				UserAgent: agent,
				Category:  category,
			}
			return stats.Fetch(ctx)
		},
	}
}
