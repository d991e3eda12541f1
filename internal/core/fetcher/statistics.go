package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// StatisticsCategories lists the categories served by SiteStatistics.
var StatisticsCategories = []string{"anime", "manga", "characters", "staff"}

// StatisticsFetcher reads the most recent count reported by the site
// statistics endpoint for one category.
type StatisticsFetcher struct {
	Endpoint  string
	Client    *http.Client
	UserAgent string
	Category  string
}

type statisticsEnvelope struct {
	SiteStatistics map[string]*struct {
		Nodes []struct {
			Date  *int64 `json:"date"`
			Count *int64 `json:"count"`
		} `json:"nodes"`
	} `json:"SiteStatistics"`
}

// StatisticsQuery returns the query for the latest statistics nodes of a
// category.
func StatisticsQuery(category string) string {
	return fmt.Sprintf(`query {
  SiteStatistics {
    %s(perPage: 25, sort: DATE_DESC) {
      nodes {
        date
        count
      }
    }
  }
}`, category)
}

// Fetch returns the newest count for the category.
func (s *StatisticsFetcher) Fetch(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	category := strings.TrimSpace(s.Category)
	if !validCategory(category) {
		return 0, fmt.Errorf("unknown statistics category %q", s.Category)
	}

	client := graphQLClient{Endpoint: s.Endpoint, Client: s.Client, UserAgent: s.UserAgent}
	data, err := client.do(ctx, StatisticsQuery(category), nil)
	if err != nil {
		return 0, err
	}

	endpoint := client.endpoint()
	var envelope statisticsEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return 0, &ProtocolError{URL: endpoint, Reason: "invalid SiteStatistics object", Err: err}
	}
	stats := envelope.SiteStatistics[category]
	if stats == nil {
		return 0, &ProtocolError{URL: endpoint, Reason: "missing data.SiteStatistics." + category}
	}
	if len(stats.Nodes) == 0 || stats.Nodes[0].Count == nil {
		return 0, &ProtocolError{URL: endpoint, Reason: "no statistics nodes for " + category}
	}
	return *stats.Nodes[0].Count, nil
}

func validCategory(category string) bool {
	for _, c := range StatisticsCategories {
		if c == category {
			return true
		}
	}
	return false
}
