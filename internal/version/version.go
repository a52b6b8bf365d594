// Package version provides build-time version information.
// Variables are set with -ldflags "-X ..." at release time; binaries built
// with `go install` fall back to the module version recorded by the toolchain.
package version

import (
	"runtime/debug"
	"strings"
)

// Build-time variables set via ldflags
var (
	// Version is the semantic version (from git tag or "dev")
	Version = "dev"

	// Commit is the git commit hash
	Commit = "unknown"

	// BuildDate is the build timestamp
	BuildDate = "unknown"
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Info returns the version string
func Info() string {
	if Version != "dev" && Version != "" {
		return Version
	}
	if bi, ok := readBuildInfo(); ok {
		if v := bi.Main.Version; v != "" && v != "(devel)" {
			return strings.TrimPrefix(v, "v")
		}
	}
	return "dev"
}

// Full returns the full version information including commit and build date
func Full() string {
	return Info() + " (commit: " + orUnknown(Commit) + ", built: " + orUnknown(BuildDate) + ")"
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
