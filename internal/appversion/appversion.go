// Package appversion reports the msgtrack version.
package appversion

import "runtime/debug"

// version is set at build time via -ldflags "-X msgtrack/internal/appversion.version=...".
var version = "dev" //nolint:gochecknoglobals // ldflags requires package-level var

// String returns the ldflags version, falling back to the module version
// recorded by `go install`, then "dev".
func String() string {
	if version != "dev" {
		return version
	}
	return moduleVersion(debug.ReadBuildInfo())
}

func moduleVersion(info *debug.BuildInfo, ok bool) string {
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return version
	}
	return info.Main.Version
}
