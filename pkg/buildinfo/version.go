// Package buildinfo exposes the version stamped into certforge binaries.
//
// Values are injected at link time:
//
//	go build -ldflags "-X github.com/matzehuels/certforge/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/matzehuels/certforge/pkg/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	    -X github.com/matzehuels/certforge/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is the JSON form served by the health endpoint.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Get returns the current build information.
func Get() Info {
	return Info{Version: Version, Commit: Commit, Date: Date}
}

// Producer names this build, e.g. "certforge v0.3.0". It is sent as the
// HTTP Server header.
func Producer() string {
	return "certforge " + Version
}

// Template returns the version template string for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} %s (commit %s, built %s)\n", Version, Commit, Date)
}
