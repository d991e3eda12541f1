// Package collectors holds the table of countable sources exposed by the CLI.
package collectors

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/itemtally/itemtally/internal/config"
	"github.com/itemtally/itemtally/internal/core/engine"
)

// DefaultInterval is the minimum spacing between requests to one origin when
// no override is configured.
const DefaultInterval = time.Second

// All returns the built-in collectors in registry order with the overrides
// from cfg applied. A nil cfg yields the built-in settings.
func All(cfg *config.Config) []engine.Collector {
	return []engine.Collector{
		mediaCollector(cfg, "anilist-anime", "ANIME", "Anime entries listed on AniList"),
		mediaCollector(cfg, "anilist-manga", "MANGA", "Manga entries listed on AniList"),
		statisticsCollector(cfg, "anilist-stats-anime", "anime", "Anime count from AniList site statistics"),
		statisticsCollector(cfg, "anilist-stats-manga", "manga", "Manga count from AniList site statistics"),
		statisticsCollector(cfg, "anilist-stats-characters", "characters", "Character count from AniList site statistics"),
		statisticsCollector(cfg, "anilist-stats-staff", "staff", "Staff count from AniList site statistics"),
	}
}

// Select resolves flags against the registry. With all set, every collector
// included in --all is returned as well. Order follows the registry and
// duplicates are dropped.
func Select(registry []engine.Collector, flags []string, all bool) ([]engine.Collector, error) {
	wanted := make(map[string]bool, len(flags))
	for _, flag := range flags {
		flag = strings.ToLower(strings.TrimSpace(flag))
		if flag == "" {
			continue
		}
		wanted[flag] = true
	}

	known := make(map[string]bool, len(registry))
	for _, c := range registry {
		known[c.Flag] = true
	}
	unknown := []string{}
	for flag := range wanted {
		if !known[flag] {
			unknown = append(unknown, flag)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown collector(s): %s", strings.Join(unknown, ", "))
	}

	selected := []engine.Collector{}
	for _, c := range registry {
		if wanted[c.Flag] || (all && c.IncludeInAll) {
			selected = append(selected, c)
		}
	}
	return selected, nil
}

// Groups returns the distinct collector groups in registry order.
func Groups(registry []engine.Collector) []string {
	seen := map[string]bool{}
	groups := []string{}
	for _, c := range registry {
		if seen[c.Group] {
			continue
		}
		seen[c.Group] = true
		groups = append(groups, c.Group)
	}
	return groups
}

func settingsFor(cfg *config.Config, flag string) config.CollectorConfig {
	var settings config.CollectorConfig
	if cfg != nil {
		settings = cfg.Collector(flag)
	}
	if settings.Interval <= 0 {
		settings.Interval = DefaultInterval
	}
	return settings
}

func userAgent(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return cfg.HTTP.UserAgent
}

func enabled(settings config.CollectorConfig) bool {
	return settings.Enabled == nil || *settings.Enabled
}
