package metrics

import "strconv"

// Error metric names.
const (
	ErrorsTotal      = "errors_total"
	PanicsTotal      = "panics_total"
	ErrorsByEndpoint = "errors_by_endpoint"
)

// RecordError counts an error response by envelope code and HTTP status.
func RecordError(errorCode string, httpStatus int) {
	count(ErrorsTotal, map[string]string{
		"error_code":  errorCode,
		"http_status": strconv.Itoa(httpStatus),
	})
}

// RecordPanic counts a recovered handler panic.
func RecordPanic() {
	count(PanicsTotal, nil)
}

// RecordErrorByEndpoint counts an error response by request path.
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	count(ErrorsByEndpoint, map[string]string{
		"endpoint":   endpoint,
		"error_code": errorCode,
	})
}
