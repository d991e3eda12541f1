package observability

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/itemtally/itemtally/internal/config"
)

func TestInitCLILogger(t *testing.T) {
	require.NoError(t, InitCLILogger("itemtally-test", true))
	require.NotNil(t, CLILogger)

	CLILogger.Debug("Located boundary", zap.String("collector", "anilist-anime"), zap.Int("page", 412))
}

func TestInitServerLoggerProfiles(t *testing.T) {
	for _, profile := range []string{"SIMPLE", "structured", ""} {
		t.Run(profile, func(t *testing.T) {
			ServerLogger = nil
			err := InitServerLogger("itemtally-test", config.LoggingConfig{Level: "debug", Profile: profile}, "itemtally")
			require.NoError(t, err)
			require.NotNil(t, ServerLogger)
			ServerLogger.Info("Serving resume pages", zap.String("route", "/resume"))
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]string{
		"trace":    "TRACE",
		" Debug ":  "DEBUG",
		"info":     "INFO",
		"warning":  "WARN",
		"WARN":     "WARN",
		"error":    "ERROR",
		"":         "INFO",
		"verbose!": "INFO",
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestStopMetricsWithoutExporter(t *testing.T) {
	PrometheusExporter = nil
	TelemetrySystem = nil
	require.NoError(t, StopMetrics())
	assert.Equal(t, 0, GetMetricsPort())
}

func TestResolvePort(t *testing.T) {
	port, err := resolvePort("[::]:9464")
	require.NoError(t, err)
	assert.Equal(t, 9464, port)

	_, err = resolvePort("no-port")
	require.Error(t, err)
}

func TestCrucibleVersionAvailable(t *testing.T) {
	version := crucible.GetVersion()
	assert.NotEmpty(t, version.Gofulmen)
	assert.NotEmpty(t, version.Crucible)
}
