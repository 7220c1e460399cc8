// Package version reports what binary is running.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags, e.g.
//
//	-X github.com/softreason/softreason/pkg/version.Version=v1.2.0
//
// GitCommit and BuildTime fall back to the VCS stamps the go tool embeds
// when they are left unset.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func init() {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && GitCommit == "unknown":
			GitCommit = s.Value
		case s.Key == "vcs.time" && BuildTime == "unknown":
			BuildTime = s.Value
		}
	}
}

func shortCommit() string {
	if len(GitCommit) > 12 {
		return GitCommit[:12]
	}
	return GitCommit
}

// Info is the build description served by /status.
func Info() map[string]string {
	return map[string]string{
		"version":   Version,
		"buildTime": BuildTime,
		"gitCommit": GitCommit,
		"goVersion": runtime.Version(),
		"platform":  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String is the -version output.
func String() string {
	return fmt.Sprintf("softreason %s (commit %s, built %s, %s %s/%s)",
		Version, shortCommit(), BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
