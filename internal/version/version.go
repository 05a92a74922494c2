// Package version holds build metadata set via -ldflags.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns the version line printed by --version.
func String(app string) string {
	return fmt.Sprintf("%s %s (git %s, built %s)", app, Version, GitSHA, BuildTime)
}
