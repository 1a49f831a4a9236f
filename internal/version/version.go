// Package version exposes the build version string.
package version

// Version is the application version. Overridden at build time via
// -ldflags "-X github.com/kicadview/kicadview/internal/version.Version=v1.2.3".
var Version = "dev"
