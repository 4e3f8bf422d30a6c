// Package buildinfo carries version metadata injected at link time.
package buildinfo

import "fmt"

// These values are injected via -ldflags for release binaries.
// They default to empty for local/dev builds.
var (
	Version = ""
	Commit  = ""
	Date    = ""
)

// String renders the version line printed by `bmp version`.
func String() string {
	v := Version
	if v == "" {
		v = "dev"
	}
	switch {
	case Commit != "" && Date != "":
		return fmt.Sprintf("%s (%s, %s)", v, Commit, Date)
	case Commit != "":
		return fmt.Sprintf("%s (%s)", v, Commit)
	}
	return v
}
