package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	// Version is the semantic version number
	Version = "0.3.0"

	// GitCommit is the git commit hash (injected at build time)
	GitCommit = "unknown"

	// GitBranch is the git branch (injected at build time)
	GitBranch = "unknown"

	// BuildDate is the build date (injected at build time)
	BuildDate = "unknown"

	// BuildUser is the user who built the binary (injected at build time)
	BuildUser = "unknown"
)

// Info contains version information
type Info struct {
	Version     string `json:"version"`
	GitCommit   string `json:"git_commit"`
	GitBranch   string `json:"git_branch"`
	BuildDate   string `json:"build_date"`
	BuildUser   string `json:"build_user"`
	BuildMethod string `json:"build_method"`
	GoVersion   string `json:"go_version"`
	Platform    string `json:"platform"`
}

// GetVersion returns the version string
func GetVersion() string {
	return Version
}

// GetInfo returns comprehensive version information
func GetInfo() Info {
	return Info{
		Version:     Version,
		GitCommit:   GitCommit,
		GitBranch:   GitBranch,
		BuildDate:   BuildDate,
		BuildUser:   BuildUser,
		BuildMethod: getBuildMethod(),
		GoVersion:   runtime.Version(),
		Platform:    fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// getBuildMethod tells a release build (ldflags set by make) from go install
func getBuildMethod() string {
	if GitCommit != "unknown" {
		return "make"
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return "go-install"
	}
	return "unknown"
}

// GetVersionString returns a formatted version string
func GetVersionString() string {
	info := GetInfo()

	if GitCommit == "unknown" {
		return fmt.Sprintf("leavebehind %s", info.Version)
	}

	// Truncate git commit to 8 characters for display
	shortCommit := GitCommit
	if len(shortCommit) > 8 {
		shortCommit = shortCommit[:8]
	}

	return fmt.Sprintf("leavebehind %s (%s)", info.Version, shortCommit)
}

// GetDetailedVersionString returns a detailed version string for the version command
func GetDetailedVersionString() string {
	info := GetInfo()

	var b strings.Builder
	fmt.Fprintf(&b, "leavebehind %s\n", info.Version)
	fmt.Fprintf(&b, "Git commit: %s\n", info.GitCommit)
	fmt.Fprintf(&b, "Git branch: %s\n", info.GitBranch)
	fmt.Fprintf(&b, "Build date: %s\n", info.BuildDate)
	fmt.Fprintf(&b, "Built by: %s\n", info.BuildUser)
	fmt.Fprintf(&b, "Build method: %s\n", info.BuildMethod)
	fmt.Fprintf(&b, "Go version: %s\n", info.GoVersion)
	fmt.Fprintf(&b, "Platform: %s", info.Platform)
	return b.String()
}

// IsRelease returns true if this is a release version (not a dev build)
func IsRelease() bool {
	return Version != "" && GitCommit != "unknown" && !strings.Contains(Version, "dev")
}

// IsDevelopment returns true if this is a development build
func IsDevelopment() bool {
	return !IsRelease()
}
