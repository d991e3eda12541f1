package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/itemtally/itemtally/internal/observability"
)

// getEndpointPattern keeps metric labels low-cardinality: the chi route
// pattern when routed, a coarse bucket otherwise.
func getEndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	path := r.URL.Path
	switch {
	case path == "/health" || strings.HasPrefix(path, "/health/"):
		return "/health/*"
	case path == "/resume":
		return "/resume"
	case strings.HasPrefix(path, "/resume/"):
		return "/resume/{collection}"
	case path == "/version", path == "/metrics", path == "/":
		return path
	default:
		return "/unknown"
	}
}

func errorClass(status int) string {
	if status >= http.StatusInternalServerError {
		return "server_error"
	}
	return "client_error"
}

// RequestMetrics emits request counters, durations and sizes through the
// telemetry system and logs each completed request.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sys := observability.TelemetrySystem
		if sys == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		endpoint := getEndpointPattern(r)
		status := strconv.Itoa(code)
		route := map[string]string{"method": r.Method, "endpoint": endpoint}
		labels := map[string]string{"method": r.Method, "endpoint": endpoint, "status": status}

		_ = sys.Counter("http_requests_total", 1, labels)
		_ = sys.Histogram("http_request_duration_ms", elapsed, labels)
		_ = sys.Gauge("http_response_size_bytes", float64(ww.BytesWritten()), route)
		if code >= http.StatusBadRequest {
			_ = sys.Counter("http_errors_total", 1, map[string]string{
				"method":     r.Method,
				"endpoint":   endpoint,
				"status":     status,
				"error_type": errorClass(code),
			})
		}

		if logger := observability.ServerLogger; logger != nil {
			logger.Info("HTTP request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", endpoint),
				zap.Int("status", code),
				zap.Duration("duration", elapsed),
				zap.Int("response_size", ww.BytesWritten()),
				zap.String("request_id", GetRequestID(r.Context())))
		}
	})
}
