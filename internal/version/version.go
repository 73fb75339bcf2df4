// Package version reports what binary is running. Release builds stamp the
// variables below with -ldflags "-X"; a plain go build or go install falls
// back to the module and VCS data the toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const (
	devVersion = "dev"
	unset      = "unknown"
)

// Stamped at link time.
var (
	Version   = devVersion
	GitCommit = unset
	BuildDate = unset
)

// Info is printed by `procguard version` and exported as the build info
// metric.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get resolves the build metadata. Stamped values win over embedded ones.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = withBuildInfo(info, bi)
	}
	return info
}

func withBuildInfo(info Info, bi *debug.BuildInfo) Info {
	if info.Version == devVersion && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}

	stampedCommit := info.GitCommit != unset
	dirty := false
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if !stampedCommit {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == unset {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if dirty && !stampedCommit && info.GitCommit != unset {
		info.GitCommit += "-dirty"
	}
	return info
}

// String is the --version line.
func String() string {
	i := Get()
	return fmt.Sprintf("%s (commit %s, built %s, %s)", i.Version, i.GitCommit, i.BuildDate, i.GoVersion)
}
