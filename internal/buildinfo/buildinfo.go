package buildinfo

import (
	"runtime/debug"
)

// Set with -ldflags "-X crewplan/internal/buildinfo.Version=..." at release.
var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

// Info describes the running binary. Commit and build time fall back to
// the VCS stamp recorded by the Go toolchain.
func Info() map[string]string {
	info := map[string]string{
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info["go"] = bi.GoVersion
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info["commit"] == "":
			info["commit"] = s.Value
		case s.Key == "vcs.time" && info["builtAt"] == "":
			info["builtAt"] = s.Value
		}
	}
	return info
}
