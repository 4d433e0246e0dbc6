// Package misc keeps build time information.
package misc

// Set with -ldflags "-X cssscope/misc.version=... -X cssscope/misc.githash=..."
var (
	version = "dev"
	githash = "unknown"
)

const appName = "cssscope"

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return githash
}
