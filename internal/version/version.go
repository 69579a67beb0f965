// Package version provides build version information.
package version

// Version and Commit are overridden at build time via ldflags.
// Example: go build -ldflags "-X github.com/graaaaa/roomcheck/internal/version.Version=0.1.0"
var (
	Version = "dev"
	Commit  = ""
)

// String returns the version, with the short commit appended when known.
func String() string {
	if Commit == "" {
		return Version
	}
	c := Commit
	if len(c) > 7 {
		c = c[:7]
	}
	return Version + "+" + c
}
