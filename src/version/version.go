// Package version reports the build of the platform-parent binary.
package version

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X github.com/trustedanalytics/platform-parent/src/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String returns the version line printed by the version command.
func String() string {
	return fmt.Sprintf("platform-parent %s (commit %s, built %s, %s %s/%s)",
		Version, shortCommit(Commit), BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}
