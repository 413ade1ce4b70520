// Package version reports what build is running
package version

import "runtime/debug"

// BuildInfo is stamped into logs, /healthz and `contribot version`
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

// Set with -ldflags "-X contribot/internal/core/version.version=v0.3.0 ..."
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Info returns the build information, falling back to the module's vcs stamp
// when ldflags were not given
func Info() BuildInfo {
	bi := BuildInfo{Service: "contribot", Version: version, Commit: commit, Date: date}
	if info, ok := debug.ReadBuildInfo(); ok {
		bi.Go = info.GoVersion
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && bi.Commit == "none":
				bi.Commit = s.Value
			case s.Key == "vcs.time" && bi.Date == "unknown":
				bi.Date = s.Value
			}
		}
	}
	return bi
}
