// Package version holds build information set via ldflags:
//
//	go build -ldflags "-X docassist/pkg/version.Version=v1.2.3"
package version

import "fmt"

//nolint:gochecknoglobals // ldflags targets
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns "docassist <version> (<commit>, <date>)".
func String() string {
	return fmt.Sprintf("docassist %s (%s, %s)", Version, Commit, Date)
}
