package version

import "fmt"

// Program is the name reported in the CLI and in outgoing requests.
const Program = "julia-updater"

var (
	// Version is the release tag without the leading "v".
	Version = "0.1.0-dev"
	// Commit is the short git SHA of the build, or "none".
	Commit = "none"
	// BuildTime is the UTC build timestamp, or "unknown".
	BuildTime = "unknown"
)

// Short returns the bare version.
func Short() string {
	return Version
}

// Full renders the version together with the commit and build time.
func Full() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", Program, Version, Commit, BuildTime)
}

// UserAgent is the User-Agent header sent to the vendor site.
func UserAgent() string {
	return Program + "/" + Version
}
