// Package version exposes build metadata for startup logs and the
// User-Agent sent to the chat platform.
//
// Priority: -ldflags override > VCS info from debug.BuildInfo > "dev"
// fallback.
package version

import "runtime/debug"

// AppName is the application name used in version strings and the
// User-Agent header.
const AppName = "gamenight"

// Overrides set via -ldflags for container builds where .git is
// unavailable. Empty means no override.
var (
	gitCommitOverride string
	buildDateOverride string
)

var (
	// GitCommit is the short git commit hash, or "dev" when no VCS info is
	// available (go test, non-git builds).
	GitCommit = "dev"

	// BuildDate is the commit timestamp (RFC 3339), or "unknown".
	BuildDate = "unknown"

	// Dirty is set when the build had uncommitted changes.
	Dirty bool
)

func init() {
	if gitCommitOverride != "" {
		GitCommit = shortCommit(gitCommitOverride)
	}
	if buildDateOverride != "" {
		BuildDate = buildDateOverride
	}
	if gitCommitOverride != "" && buildDateOverride != "" {
		return
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if gitCommitOverride == "" && s.Value != "" {
				GitCommit = shortCommit(s.Value)
			}
		case "vcs.time":
			if buildDateOverride == "" && s.Value != "" {
				BuildDate = s.Value
			}
		case "vcs.modified":
			Dirty = s.Value == "true"
		}
	}
}

func shortCommit(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full returns "gamenight/<commit>", with a "-dirty" suffix when the
// working tree had local modifications.
func Full() string {
	v := AppName + "/" + GitCommit
	if Dirty {
		v += "-dirty"
	}
	return v
}
