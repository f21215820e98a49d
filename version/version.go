// Package version exposes build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Populated by the linker, e.g.
// -X github.com/grovetools/socratic/version.Version=v0.3.0
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Info holds all the versioning information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// GetInfo returns a struct populated with the version information.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a formatted string of the version information.
func (i Info) String() string {
	return fmt.Sprintf(
		"Version:\t%s\nCommit:\t\t%s\nBuild Date:\t%s\nGo Version:\t%s\nPlatform:\t%s",
		i.Version, i.Commit, i.BuildDate, i.GoVersion, i.Platform,
	)
}

// UserAgent identifies outbound HTTP calls.
func UserAgent() string {
	return fmt.Sprintf("socratic/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
