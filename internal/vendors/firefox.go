package vendors

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/tidwall/gjson"

	"drivermgr/internal/discovery"
	"drivermgr/internal/manager"
	"drivermgr/internal/platform"
	"drivermgr/internal/version"
)

const (
	geckodriverReleasesURL = "https://github.com/mozilla/geckodriver/releases/"
	firefoxReleasesURL     = "https://ftp.mozilla.org/pub/firefox/releases/"
	devEditionReleasesURL  = "https://ftp.mozilla.org/pub/devedition/releases/"
	firefoxDetailsURL      = "https://product-details.mozilla.org/1.0/"

	firefoxLanguage = "en-US"

	// geckodriver ships aarch64 builds for Linux and Windows from 0.32.0.
	geckodriverARM64MinMinor = 31
)

// Firefox resolves geckodriver from GitHub releases and Firefox from the
// Mozilla archive.
type Firefox struct {
	DriverBase     string
	BrowserBase    string
	DevEditionBase string
	DetailsBase    string
}

func NewFirefox(opts Options) *Firefox {
	return &Firefox{
		DriverBase:     pick(opts.DriverMirrorURL, geckodriverReleasesURL),
		BrowserBase:    pick(opts.BrowserMirrorURL, firefoxReleasesURL),
		DevEditionBase: devEditionReleasesURL,
		DetailsBase:    firefoxDetailsURL,
	}
}

func (f *Firefox) BrowserName() string      { return "firefox" }
func (f *Firefox) DriverName() string       { return "geckodriver" }
func (f *Firefox) Markers() version.Markers { return version.DefaultMarkers }

var firefoxPaths = pathTable{
	{OS: platform.Windows, Channel: platform.Stable}:  `Mozilla Firefox\firefox.exe`,
	{OS: platform.Windows, Channel: platform.Beta}:    `Mozilla Firefox\firefox.exe`,
	{OS: platform.Windows, Channel: platform.Dev}:     `Firefox Developer Edition\firefox.exe`,
	{OS: platform.Windows, Channel: platform.Nightly}: `Firefox Nightly\firefox.exe`,
	{OS: platform.MacOS, Channel: platform.Stable}:    "/Applications/Firefox.app/Contents/MacOS/firefox",
	{OS: platform.MacOS, Channel: platform.Beta}:      "/Applications/Firefox.app/Contents/MacOS/firefox",
	{OS: platform.MacOS, Channel: platform.Dev}:       "/Applications/Firefox Developer Edition.app/Contents/MacOS/firefox",
	{OS: platform.MacOS, Channel: platform.Nightly}:   "/Applications/Firefox Nightly.app/Contents/MacOS/firefox",
	{OS: platform.Linux, Channel: platform.Stable}:    "/usr/bin/firefox",
	{OS: platform.Linux, Channel: platform.Beta}:      "/usr/bin/firefox",
	{OS: platform.Linux, Channel: platform.Dev}:       "/usr/bin/firefox",
	{OS: platform.Linux, Channel: platform.Nightly}:   "/usr/bin/firefox-trunk",
}

func (f *Firefox) Recipe(t manager.Target, ch platform.Channel) discovery.Recipe {
	return discovery.Recipe{
		Paths:         firefoxPaths.lookup(t.OS, ch),
		RegistryKey:   `HKCU\Software\Mozilla\Mozilla Firefox`,
		RegistryValue: "CurrentVersion",
		VersionFlag:   "-v",
	}
}

// NeedsLatest is always false: geckodriver releases do not track browser
// majors, the latest release serves every Firefox.
func (f *Firefox) NeedsLatest(version.Class, string) bool { return false }

func (f *Firefox) LatestDriverVersion(ctx context.Context, r manager.Remote, _ version.Class) (string, error) {
	return f.latestRelease(ctx, r)
}

func (f *Firefox) DriverVersion(ctx context.Context, r manager.Remote, _ manager.Target, _ string) (string, error) {
	return f.latestRelease(ctx, r)
}

// latestRelease reads the tag GitHub redirects the latest release to.
func (f *Firefox) latestRelease(ctx context.Context, r manager.Remote) (string, error) {
	endpoint := f.DriverBase + "latest"
	location, err := r.Redirect(ctx, endpoint)
	if err != nil {
		return "", manager.NewRemoteError(f.BrowserName(), endpoint, err)
	}
	tag := strings.TrimPrefix(path.Base(strings.TrimRight(location, "/")), "v")
	if tag == "" || tag == "." || tag == "latest" {
		return "", &manager.RemoteError{Vendor: f.BrowserName(), Endpoint: endpoint, Detail: "no release tag in redirect " + location}
	}
	return tag, nil
}

func (f *Firefox) DriverURL(t manager.Target, driverVersion string) (string, error) {
	if driverVersion == "" {
		return "", fmt.Errorf("geckodriver url: empty version")
	}
	return fmt.Sprintf("%sdownload/v%s/geckodriver-v%s-%s",
		f.DriverBase, driverVersion, driverVersion, geckodriverArtifact(t, driverVersion)), nil
}

func arm64Gate(t manager.Target, driverVersion string) bool {
	return t.Arch == platform.ARM64 && version.MinorInt(driverVersion) > geckodriverARM64MinMinor
}

func geckodriverArtifact(t manager.Target, driverVersion string) string {
	switch t.OS {
	case platform.Windows:
		switch {
		case t.Arch == platform.X32:
			return "win32.zip"
		case arm64Gate(t, driverVersion):
			return "win-aarch64.zip"
		default:
			return "win64.zip"
		}
	case platform.MacOS:
		if t.Arch == platform.ARM64 {
			return "macos-aarch64.tar.gz"
		}
		return "macos.tar.gz"
	default:
		switch {
		case t.Arch == platform.X32:
			return "linux32.tar.gz"
		case arm64Gate(t, driverVersion):
			return "linux-aarch64.tar.gz"
		default:
			return "linux64.tar.gz"
		}
	}
}

func (f *Firefox) PlatformLabel(t manager.Target, driverVersion string) string {
	switch t.OS {
	case platform.Windows:
		switch {
		case t.Arch == platform.X32:
			return "win32"
		case arm64Gate(t, driverVersion):
			return "win-arm64"
		default:
			return "win64"
		}
	case platform.MacOS:
		if t.Arch == platform.ARM64 {
			return "mac-arm64"
		}
		return "mac64"
	default:
		switch {
		case t.Arch == platform.X32:
			return "linux32"
		case arm64Gate(t, driverVersion):
			return "linux-arm64"
		default:
			return "linux64"
		}
	}
}

// Keys of product-details firefox_versions.json per channel.
var firefoxVersionKeys = map[platform.Channel]string{
	platform.Stable: "LATEST_FIREFOX_VERSION",
	platform.Beta:   "LATEST_FIREFOX_DEVEL_VERSION",
	platform.Dev:    "FIREFOX_DEVEDITION",
}

func (f *Firefox) BrowserRelease(ctx context.Context, r manager.Remote, t manager.Target, c version.Class, requested string) (manager.Artifact, error) {
	var v string
	switch {
	case c.Pinned:
		pinned, err := f.publishedVersion(ctx, r, strings.TrimSpace(requested))
		if err != nil {
			return manager.Artifact{}, err
		}
		v = pinned
	case c.Channel == platform.Nightly:
		return manager.Artifact{}, fmt.Errorf("firefox nightly builds are not archived with stable urls: %w", manager.ErrUnsupported)
	default:
		endpoint := f.DetailsBase + "firefox_versions.json"
		latest, err := r.Field(ctx, endpoint, firefoxVersionKeys[c.Channel])
		if err != nil {
			return manager.Artifact{}, manager.NewRemoteError(f.BrowserName(), endpoint, err)
		}
		v = latest
	}

	base := f.BrowserBase
	if !c.Pinned && c.Channel == platform.Dev {
		base = f.DevEditionBase
	}
	return manager.Artifact{Version: v, URL: firefoxBrowserURL(base, t, v)}, nil
}

// publishedVersion checks the release history for a pinned version.
func (f *Firefox) publishedVersion(ctx context.Context, r manager.Remote, requested string) (string, error) {
	endpoint := f.DetailsBase + "firefox.json"
	field := "releases." + escapeGJSON("firefox-"+requested) + ".version"
	data, err := r.Bytes(ctx, endpoint)
	if err != nil {
		return "", manager.NewRemoteError(f.BrowserName(), endpoint, err)
	}
	res := gjson.GetBytes(data, field)
	if !res.Exists() {
		return "", fmt.Errorf("firefox %s is not a published release: %w", requested, manager.ErrUnsupported)
	}
	return res.String(), nil
}

func escapeGJSON(key string) string {
	return strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`).Replace(key)
}

func firefoxBrowserURL(base string, t manager.Target, v string) string {
	var label, artifact, ext string
	switch t.OS {
	case platform.Windows:
		artifact, ext = "Firefox%20Setup%20", "exe"
		switch t.Arch {
		case platform.X32:
			label = "win32"
		case platform.ARM64:
			label = "win-aarch64"
		default:
			label = "win64"
		}
	case platform.MacOS:
		artifact, ext, label = "Firefox%20", "pkg", "mac"
	default:
		artifact, ext = "firefox-", "tar.bz2"
		if t.Arch == platform.X32 {
			label = "linux-i686"
		} else {
			label = "linux-x86_64"
		}
	}
	return fmt.Sprintf("%s%s/%s/%s/%s%s.%s", base, v, label, firefoxLanguage, artifact, v, ext)
}

// BrowserLabel ignores the geckodriver gate: Firefox itself has native
// ARM64 builds.
func (f *Firefox) BrowserLabel(t manager.Target) string {
	switch {
	case t.OS == platform.Windows && t.Arch == platform.ARM64:
		return "win-arm64"
	case t.OS == platform.Linux && t.Arch == platform.ARM64:
		return "linux-arm64"
	default:
		return f.PlatformLabel(t, "")
	}
}

func (f *Firefox) BrowserBinary(t manager.Target, _ version.Class) string {
	switch t.OS {
	case platform.MacOS:
		return "Firefox.app/Contents/MacOS/firefox"
	case platform.Windows:
		return "firefox.exe"
	default:
		return "firefox/firefox"
	}
}
