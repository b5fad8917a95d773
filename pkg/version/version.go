// Package version carries build-time identification, injected via ldflags.
package version

// Set by the build:
//
//	go build -ldflags "-X .../pkg/version.Version=v1.2.3 ..."
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
