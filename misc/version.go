// Package misc keeps build time information about the program.
package misc

import (
	"runtime/debug"
	"strings"
)

const appName = "webepub"

var (
	version = "dev"
	gitHash = "unknown"
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		version = strings.TrimPrefix(v, "v")
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) > 0 {
			gitHash = s.Value
			if len(gitHash) > 12 {
				gitHash = gitHash[:12]
			}
		}
	}
}

// GetAppName returns program name used in logs and file names.
func GetAppName() string {
	return appName
}

// GetVersion returns program version.
func GetVersion() string {
	return version
}

// GetGitHash returns VCS revision the program was built from.
func GetGitHash() string {
	return gitHash
}
