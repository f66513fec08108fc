// Package version carries build identification, overridden at link time
// with -ldflags "-X ...".
package version

var (
	// Version is the engine release version.
	Version = "dev"
	// GitSHA is the git commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String renders the build identification for logs and the health check.
func String() string {
	return Version + " (" + GitSHA + ")"
}
