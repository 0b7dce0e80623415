package manager

import (
	"context"

	"drivermgr/internal/discovery"
	"drivermgr/internal/platform"
	"drivermgr/internal/version"
)

// Target is the machine artifacts are resolved for.
type Target struct {
	OS   platform.OS
	Arch platform.Arch
}

// Artifact is a resolved version and, when known, where to download it.
type Artifact struct {
	Version string
	URL     string
}

// Remote is the subset of the HTTP client vendors query feeds through.
type Remote interface {
	Bytes(ctx context.Context, rawURL string) ([]byte, error)
	Text(ctx context.Context, rawURL string) (string, error)
	Field(ctx context.Context, rawURL, path string) (string, error)
	JSON(ctx context.Context, rawURL string, out any) error
	Redirect(ctx context.Context, rawURL string) (string, error)
}

// Vendor holds everything specific to one browser family: static path and
// label tables plus the feed protocol. Implementations return errors built
// with NewRemoteError or wrapping ErrUnsupported.
type Vendor interface {
	BrowserName() string
	DriverName() string
	// Markers are the request strings that select unstable channels.
	Markers() version.Markers
	// Recipe describes how to find a locally installed browser.
	Recipe(t Target, ch platform.Channel) discovery.Recipe

	// NeedsLatest reports whether resolution must first go through the
	// vendor's generic latest endpoint to derive a major version.
	NeedsLatest(c version.Class, major string) bool
	LatestDriverVersion(ctx context.Context, r Remote, c version.Class) (string, error)
	// DriverVersion queries the version endpoint for major.
	DriverVersion(ctx context.Context, r Remote, t Target, major string) (string, error)
	// DriverURL and PlatformLabel are pure.
	DriverURL(t Target, driverVersion string) (string, error)
	PlatformLabel(t Target, driverVersion string) string

	// BrowserRelease resolves the browser version to download for a request.
	BrowserRelease(ctx context.Context, r Remote, t Target, c version.Class, requested string) (Artifact, error)
	BrowserLabel(t Target) string
	// BrowserBinary is the executable path relative to the unpacked browser
	// directory.
	BrowserBinary(t Target, c version.Class) string
}
