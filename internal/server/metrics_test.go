package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry/exporters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itemtally/itemtally/internal/observability"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func withExporterProxy(t *testing.T, rt roundTripFunc) {
	t.Helper()
	originalClient := metricsProxyClient
	metricsProxyClient = &http.Client{Transport: rt}
	observability.PrometheusExporter = exporters.NewPrometheusExporter("test", ":9090")
	t.Cleanup(func() {
		metricsProxyClient = originalClient
		observability.PrometheusExporter = nil
	})
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error.Code
}

func TestMetricsHandlerProxiesPrometheusOutput(t *testing.T) {
	withExporterProxy(t, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/metrics", req.URL.Path)
		assert.Equal(t, "text/plain", req.Header.Get("Accept"))
		body := "# HELP app_collections_total Collector runs\napp_collections_total{collector=\"anilist-anime\"} 1\n"
		resp := &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     http.Header{"Connection": []string{"close"}},
		}
		return resp, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept", "text/plain")
	rec := httptest.NewRecorder()
	MetricsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, prometheusContentType, rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Connection"))
	assert.Contains(t, rec.Body.String(), `app_collections_total{collector="anilist-anime"} 1`)
}

func TestMetricsHandlerExporterUnreachable(t *testing.T) {
	withExporterProxy(t, func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "EXTERNAL_SERVICE_ERROR", decodeErrorCode(t, rec))
}

func TestMetricsHandlerReturnsServiceUnavailableWithoutExporter(t *testing.T) {
	observability.PrometheusExporter = nil

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", decodeErrorCode(t, rec))
}
