package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionHandlerReportsBuildInfo(t *testing.T) {
	previous := Build()
	SetVersionInfo("1.2.3", "abcd123", "2025-11-07T12:00:00Z")
	t.Cleanup(func() { SetVersionInfo(previous.Version, previous.Commit, previous.BuildDate) })

	rec := httptest.NewRecorder()
	VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "itemtally", resp.Name)
	assert.Equal(t, BuildInfo{Version: "1.2.3", Commit: "abcd123", BuildDate: "2025-11-07T12:00:00Z"}, resp.Build)
	assert.NotEmpty(t, resp.GoVersion)
	assert.NotEmpty(t, resp.Libraries["gofulmen"])
	assert.NotEmpty(t, resp.Libraries["crucible"])
}
