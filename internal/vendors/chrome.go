package vendors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"drivermgr/internal/discovery"
	"drivermgr/internal/manager"
	"drivermgr/internal/platform"
	"drivermgr/internal/version"
)

const (
	cftFeedsURL     = "https://googlechromelabs.github.io/chrome-for-testing/"
	cftStorageURL   = "https://storage.googleapis.com/chrome-for-testing-public/"
	legacyDriverURL = "https://chromedriver.storage.googleapis.com/"

	cftFirstMilestone = 113

	// Drivers before this milestone are only published on the legacy bucket.
	cftFirstDriverMilestone = 115
)

// Chrome resolves chromedriver and Chrome from the Chrome for Testing
// feeds, falling back to the legacy chromedriver bucket for old majors.
type Chrome struct {
	FeedsBase   string
	DriverBase  string
	BrowserBase string
	LegacyBase  string
}

func NewChrome(opts Options) *Chrome {
	return &Chrome{
		FeedsBase:   cftFeedsURL,
		DriverBase:  pick(opts.DriverMirrorURL, cftStorageURL),
		BrowserBase: pick(opts.BrowserMirrorURL, cftStorageURL),
		LegacyBase:  legacyDriverURL,
	}
}

func (c *Chrome) BrowserName() string      { return "chrome" }
func (c *Chrome) DriverName() string       { return "chromedriver" }
func (c *Chrome) Markers() version.Markers { return version.DefaultMarkers }

var chromeMacApps = map[platform.Channel]string{
	platform.Stable:  "Google Chrome.app/Contents/MacOS/Google Chrome",
	platform.Beta:    "Google Chrome Beta.app/Contents/MacOS/Google Chrome Beta",
	platform.Dev:     "Google Chrome Dev.app/Contents/MacOS/Google Chrome Dev",
	platform.Nightly: "Google Chrome Canary.app/Contents/MacOS/Google Chrome Canary",
}

var chromePaths = pathTable{
	{OS: platform.Windows, Channel: platform.Stable}:  `Google\Chrome\Application\chrome.exe`,
	{OS: platform.Windows, Channel: platform.Beta}:    `Google\Chrome Beta\Application\chrome.exe`,
	{OS: platform.Windows, Channel: platform.Dev}:     `Google\Chrome Dev\Application\chrome.exe`,
	{OS: platform.Windows, Channel: platform.Nightly}: `Google\Chrome SxS\Application\chrome.exe`,
	{OS: platform.MacOS, Channel: platform.Stable}:    "/Applications/" + chromeMacApps[platform.Stable],
	{OS: platform.MacOS, Channel: platform.Beta}:      "/Applications/" + chromeMacApps[platform.Beta],
	{OS: platform.MacOS, Channel: platform.Dev}:       "/Applications/" + chromeMacApps[platform.Dev],
	{OS: platform.MacOS, Channel: platform.Nightly}:   "/Applications/" + chromeMacApps[platform.Nightly],
	{OS: platform.Linux, Channel: platform.Stable}:    "/usr/bin/google-chrome",
	{OS: platform.Linux, Channel: platform.Beta}:      "/usr/bin/google-chrome-beta",
	{OS: platform.Linux, Channel: platform.Dev}:       "/usr/bin/google-chrome-unstable",
}

func (c *Chrome) Recipe(t manager.Target, ch platform.Channel) discovery.Recipe {
	return discovery.Recipe{
		Paths:         chromePaths.lookup(t.OS, ch),
		RegistryKey:   `HKCU\Software\Google\Chrome\BLBeacon`,
		RegistryValue: "version",
		VersionFlag:   "--version",
	}
}

// NeedsLatest is true only when there is no major to look up; the
// milestone feed answers every known major directly.
func (c *Chrome) NeedsLatest(_ version.Class, major string) bool { return major == "" }

var cftChannels = map[platform.Channel]string{
	platform.Stable:  "Stable",
	platform.Beta:    "Beta",
	platform.Dev:     "Dev",
	platform.Nightly: "Canary",
}

func cftChannel(cl version.Class) string {
	if cl.Pinned {
		return cftChannels[platform.Stable]
	}
	return cftChannels[cl.Channel]
}

func (c *Chrome) LatestDriverVersion(ctx context.Context, r manager.Remote, cl version.Class) (string, error) {
	endpoint := c.FeedsBase + "last-known-good-versions-with-downloads.json"
	v, err := r.Field(ctx, endpoint, "channels."+cftChannel(cl)+".version")
	if err != nil {
		return "", manager.NewRemoteError(c.BrowserName(), endpoint, err)
	}
	return v, nil
}

func (c *Chrome) DriverVersion(ctx context.Context, r manager.Remote, _ manager.Target, major string) (string, error) {
	if n := version.MajorInt(major); n > 0 && n < cftFirstDriverMilestone {
		endpoint := c.LegacyBase + "LATEST_RELEASE_" + major
		text, err := r.Text(ctx, endpoint)
		if err != nil {
			return "", manager.NewRemoteError(c.BrowserName(), endpoint, err)
		}
		if v := version.Extract(text); v != "" {
			return v, nil
		}
		return "", &manager.RemoteError{Vendor: c.BrowserName(), Endpoint: endpoint, Detail: fmt.Sprintf("no version in %q", text)}
	}
	endpoint := c.FeedsBase + "latest-versions-per-milestone.json"
	v, err := r.Field(ctx, endpoint, "milestones."+major+".version")
	if err != nil {
		return "", manager.NewRemoteError(c.BrowserName(), endpoint, err)
	}
	return v, nil
}

// cftPlatform is the Chrome for Testing platform name. There are no Linux
// ARM64 builds; x86-64 is used instead.
func cftPlatform(t manager.Target) string {
	switch t.OS {
	case platform.Windows:
		if t.Arch == platform.X32 {
			return "win32"
		}
		return "win64"
	case platform.MacOS:
		if t.Arch == platform.ARM64 {
			return "mac-arm64"
		}
		return "mac-x64"
	default:
		return "linux64"
	}
}

func legacyDriverLabel(t manager.Target) string {
	switch t.OS {
	case platform.Windows:
		return "win32"
	case platform.MacOS:
		if t.Arch == platform.ARM64 {
			return "mac_arm64"
		}
		return "mac64"
	default:
		return "linux64"
	}
}

func (c *Chrome) DriverURL(t manager.Target, driverVersion string) (string, error) {
	if driverVersion == "" {
		return "", fmt.Errorf("chromedriver url: empty version")
	}
	if version.MajorInt(driverVersion) < cftFirstDriverMilestone {
		return fmt.Sprintf("%s%s/chromedriver_%s.zip", c.LegacyBase, driverVersion, legacyDriverLabel(t)), nil
	}
	p := cftPlatform(t)
	return fmt.Sprintf("%s%s/%s/chromedriver-%s.zip", c.DriverBase, driverVersion, p, p), nil
}

func (c *Chrome) PlatformLabel(t manager.Target, _ string) string { return cftPlatform(t) }

// cftRelease mirrors one entry of the known-good-versions feed.
type cftRelease struct {
	Version   string                   `json:"version"`
	Revision  string                   `json:"revision"`
	Downloads map[string][]cftDownload `json:"downloads"`
}

type cftDownload struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

func (rel cftRelease) url(app, platformName string) string {
	for _, d := range rel.Downloads[app] {
		if strings.EqualFold(d.Platform, platformName) {
			return d.URL
		}
	}
	return ""
}

// BrowserRelease resolves channels from the last-known-good feed and pinned
// versions from the milestone feed (major only) or the full known-good list.
func (c *Chrome) BrowserRelease(ctx context.Context, r manager.Remote, t manager.Target, cl version.Class, requested string) (manager.Artifact, error) {
	requested = strings.TrimSpace(requested)
	if cl.Pinned && version.MajorInt(requested) < cftFirstMilestone {
		return manager.Artifact{}, fmt.Errorf("chrome %s predates Chrome for Testing: %w", requested, manager.ErrUnsupported)
	}

	var (
		endpoint string
		path     string
	)
	switch {
	case !cl.Pinned:
		endpoint = c.FeedsBase + "last-known-good-versions-with-downloads.json"
		path = "channels." + cftChannel(cl)
	case !strings.Contains(requested, "."):
		endpoint = c.FeedsBase + "latest-versions-per-milestone-with-downloads.json"
		path = "milestones." + requested
	default:
		endpoint = c.FeedsBase + "known-good-versions-with-downloads.json"
		path = `versions.#(version=="` + requested + `")`
	}

	data, err := r.Bytes(ctx, endpoint)
	if err != nil {
		return manager.Artifact{}, manager.NewRemoteError(c.BrowserName(), endpoint, err)
	}
	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		if cl.Pinned {
			return manager.Artifact{}, fmt.Errorf("chrome %s is not published: %w", requested, manager.ErrUnsupported)
		}
		return manager.Artifact{}, &manager.RemoteError{Vendor: c.BrowserName(), Endpoint: endpoint, Detail: "no entry at " + path}
	}
	var rel cftRelease
	if err := json.Unmarshal([]byte(res.Raw), &rel); err != nil {
		return manager.Artifact{}, manager.NewRemoteError(c.BrowserName(), endpoint, fmt.Errorf("decode release: %w", err))
	}

	p := cftPlatform(t)
	u := rel.url("chrome", p)
	if u == "" {
		u = fmt.Sprintf("%s%s/%s/chrome-%s.zip", c.BrowserBase, rel.Version, p, p)
	} else if c.BrowserBase != cftStorageURL {
		u = strings.Replace(u, cftStorageURL, c.BrowserBase, 1)
	}
	return manager.Artifact{Version: rel.Version, URL: u}, nil
}

func (c *Chrome) BrowserLabel(t manager.Target) string { return cftPlatform(t) }

// BrowserBinary is the executable inside the unpacked chrome-<platform>.zip.
func (c *Chrome) BrowserBinary(t manager.Target, _ version.Class) string {
	p := cftPlatform(t)
	switch t.OS {
	case platform.MacOS:
		return "chrome-" + p + "/Google Chrome for Testing.app/Contents/MacOS/Google Chrome for Testing"
	case platform.Windows:
		return "chrome-" + p + "/chrome.exe"
	default:
		return "chrome-" + p + "/chrome"
	}
}
