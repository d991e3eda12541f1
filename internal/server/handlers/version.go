package handlers

import (
	"net/http"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/itemtally/itemtally/internal/config"
)

// BuildInfo is the metadata stamped into the binary at link time.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

var build = BuildInfo{Version: "dev", Commit: "unknown", BuildDate: "unknown"}

// SetVersionInfo records the build metadata reported by /version.
func SetVersionInfo(version, commit, buildDate string) {
	build = BuildInfo{Version: version, Commit: commit, BuildDate: buildDate}
}

// Build returns the current build metadata.
func Build() BuildInfo { return build }

// VersionResponse is the body of GET /version.
type VersionResponse struct {
	Name      string            `json:"name"`
	Build     BuildInfo         `json:"build"`
	GoVersion string            `json:"go_version"`
	Platform  string            `json:"platform"`
	Libraries map[string]string `json:"libraries"`
}

func currentVersion() VersionResponse {
	lib := crucible.GetVersion()
	return VersionResponse{
		Name:      config.AppName,
		Build:     build,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Libraries: map[string]string{
			"gofulmen": lib.Gofulmen,
			"crucible": lib.Crucible,
		},
	}
}

// VersionHandler serves the build metadata.
func VersionHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, currentVersion())
}
