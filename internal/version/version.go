// Package version holds refine build metadata, set with -ldflags -X.
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats the build as "refine <version> (<commit>, <date>)".
func String() string {
	return fmt.Sprintf("refine %s (%s, %s)", Version, Commit, Date)
}
