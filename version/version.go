// Package version holds the build information set by the linker.
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is set with -ldflags "-X github.com/imagespy/rpm-registry/version.Version=...".
	Version = "dev"
	Commit  = "none"
)

func String() string {
	return fmt.Sprintf("%s (commit %s, %s)", Version, Commit, runtime.Version())
}
