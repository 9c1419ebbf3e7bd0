// Package version holds the stencil build version.
package version

import "runtime/debug"

// Version is set at build time with
// -ldflags "-X github.com/NielsdaWheelz/stencil/internal/version.Version=v1.2.3".
var Version = ""

// String returns Version, falling back to the module version recorded by
// `go install`, then "dev".
func String() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
