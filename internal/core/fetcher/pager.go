package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/itemtally/itemtally/internal/core"
)

// DefaultPageSize is the number of items requested per page.
const DefaultPageSize = 50

// MediaPageQuery returns a paged listing query over media of the given type.
func MediaPageQuery(mediaType string) string {
	return fmt.Sprintf(`query ($page: Int, $perPage: Int) {
  Page(page: $page, perPage: $perPage) {
    media(type: %s) {
      id
    }
    pageInfo {
      hasNextPage
    }
  }
}`, strings.ToUpper(strings.TrimSpace(mediaType)))
}

// GraphQLPager fetches one page of a GraphQL Page connection and reports its
// item count and whether a next page exists.
type GraphQLPager struct {
	Endpoint  string
	Client    *http.Client
	UserAgent string
	Query     string
	// ListField names the array under data.Page whose length is the item count.
	ListField string
	PageSize  int
}

type pageEnvelope struct {
	Page map[string]json.RawMessage `json:"Page"`
}

type pageInfo struct {
	HasNextPage *bool `json:"hasNextPage"`
}

// FetchPage implements engine.PageFetcher.
func (p *GraphQLPager) FetchPage(ctx context.Context, page int) (core.PageDescriptor, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if page < 1 {
		return core.PageDescriptor{}, fmt.Errorf("page must be at least 1, got %d", page)
	}

	client := graphQLClient{Endpoint: p.Endpoint, Client: p.Client, UserAgent: p.UserAgent}
	data, err := client.do(ctx, p.Query, map[string]any{
		"page":    page,
		"perPage": p.pageSize(),
	})
	if err != nil {
		return core.PageDescriptor{}, err
	}

	endpoint := client.endpoint()
	var envelope pageEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return core.PageDescriptor{}, &ProtocolError{URL: endpoint, Reason: "invalid Page object", Err: err}
	}
	if envelope.Page == nil {
		return core.PageDescriptor{}, &ProtocolError{URL: endpoint, Reason: "missing data.Page"}
	}

	listField := p.listField()
	rawItems, ok := envelope.Page[listField]
	if !ok || isNull(rawItems) {
		return core.PageDescriptor{}, &ProtocolError{URL: endpoint, Reason: "missing data.Page." + listField}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(rawItems, &items); err != nil {
		return core.PageDescriptor{}, &ProtocolError{URL: endpoint, Reason: "data.Page." + listField + " is not an array", Err: err}
	}

	rawInfo, ok := envelope.Page["pageInfo"]
	if !ok || isNull(rawInfo) {
		return core.PageDescriptor{}, &ProtocolError{URL: endpoint, Reason: "missing data.Page.pageInfo"}
	}
	var info pageInfo
	if err := json.Unmarshal(rawInfo, &info); err != nil {
		return core.PageDescriptor{}, &ProtocolError{URL: endpoint, Reason: "invalid pageInfo", Err: err}
	}
	if info.HasNextPage == nil {
		return core.PageDescriptor{}, &ProtocolError{URL: endpoint, Reason: "missing pageInfo.hasNextPage"}
	}

	return core.PageDescriptor{ItemCount: len(items), HasNextPage: *info.HasNextPage}, nil
}

func (p *GraphQLPager) pageSize() int {
	if p.PageSize > 0 {
		return p.PageSize
	}
	return DefaultPageSize
}

func (p *GraphQLPager) listField() string {
	if strings.TrimSpace(p.ListField) == "" {
		return "media"
	}
	return p.ListField
}
