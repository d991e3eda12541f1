package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultEndpoint is the public AniList GraphQL endpoint.
	DefaultEndpoint = "https://graphql.anilist.co"

	maxResponseBytes = 4 << 20
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// graphQLClient posts queries and returns the raw data member.
type graphQLClient struct {
	Endpoint  string
	Client    *http.Client
	UserAgent string
}

func (g graphQLClient) endpoint() string {
	if strings.TrimSpace(g.Endpoint) == "" {
		return DefaultEndpoint
	}
	return g.Endpoint
}

func (g graphQLClient) do(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	endpoint := g.endpoint()

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{URL: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.UserAgent != "" {
		req.Header.Set("User-Agent", g.UserAgent)
	}

	client := g.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{URL: endpoint, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Err:        errors.New(statusMessage(resp.Status, body)),
		}
	}

	var decoded graphQLResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &ProtocolError{URL: endpoint, Reason: "invalid JSON", Err: err}
	}
	if len(decoded.Errors) > 0 {
		messages := make([]string, 0, len(decoded.Errors))
		for _, e := range decoded.Errors {
			messages = append(messages, e.Message)
		}
		return nil, &ProtocolError{URL: endpoint, Reason: "graphql errors", Err: errors.New(strings.Join(messages, "; "))}
	}
	if isNull(decoded.Data) {
		return nil, &ProtocolError{URL: endpoint, Reason: "missing data"}
	}
	return decoded.Data, nil
}

func statusMessage(status string, body []byte) string {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	if snippet == "" {
		return status
	}
	return status + ": " + snippet
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
