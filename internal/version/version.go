// Package version holds ragline build metadata, injected at link time via
// -ldflags "-X github.com/lattica-ai/ragline/internal/version.Version=...".
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
