package vendors

import (
	"context"
	"fmt"
	"strings"

	"drivermgr/internal/discovery"
	"drivermgr/internal/manager"
	"drivermgr/internal/platform"
	"drivermgr/internal/version"
)

const (
	edgeDriverURL   = "https://msedgedriver.azureedge.net/"
	edgeProductsURL = "https://edgeupdates.microsoft.com/api/products"
)

// Edge resolves msedgedriver from the Azure CDN and Edge from the
// edgeupdates product feed.
type Edge struct {
	DriverBase  string
	ProductsURL string
}

func NewEdge(opts Options) *Edge {
	e := &Edge{DriverBase: pick(opts.DriverMirrorURL, edgeDriverURL), ProductsURL: edgeProductsURL}
	if opts.BrowserMirrorURL != "" {
		e.ProductsURL = strings.TrimRight(opts.BrowserMirrorURL, "/")
	}
	return e
}

func (e *Edge) BrowserName() string      { return "edge" }
func (e *Edge) DriverName() string       { return "msedgedriver" }
func (e *Edge) Markers() version.Markers { return version.DefaultMarkers }

var edgePaths = pathTable{
	{OS: platform.Windows, Channel: platform.Stable}:  `Microsoft\Edge\Application\msedge.exe`,
	{OS: platform.Windows, Channel: platform.Beta}:    `Microsoft\Edge Beta\Application\msedge.exe`,
	{OS: platform.Windows, Channel: platform.Dev}:     `Microsoft\Edge Dev\Application\msedge.exe`,
	{OS: platform.Windows, Channel: platform.Nightly}: `Microsoft\Edge SxS\Application\msedge.exe`,
	{OS: platform.MacOS, Channel: platform.Stable}:    "/Applications/" + edgeMacApps[platform.Stable],
	{OS: platform.MacOS, Channel: platform.Beta}:      "/Applications/" + edgeMacApps[platform.Beta],
	{OS: platform.MacOS, Channel: platform.Dev}:       "/Applications/" + edgeMacApps[platform.Dev],
	{OS: platform.MacOS, Channel: platform.Nightly}:   "/Applications/" + edgeMacApps[platform.Nightly],
	{OS: platform.Linux, Channel: platform.Stable}:    "/usr/bin/microsoft-edge",
	{OS: platform.Linux, Channel: platform.Beta}:      "/usr/bin/microsoft-edge-beta",
	{OS: platform.Linux, Channel: platform.Dev}:       "/usr/bin/microsoft-edge-dev",
}

var edgeMacApps = map[platform.Channel]string{
	platform.Stable:  "Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
	platform.Beta:    "Microsoft Edge Beta.app/Contents/MacOS/Microsoft Edge Beta",
	platform.Dev:     "Microsoft Edge Dev.app/Contents/MacOS/Microsoft Edge Dev",
	platform.Nightly: "Microsoft Edge Canary.app/Contents/MacOS/Microsoft Edge Canary",
}

func (e *Edge) Recipe(t manager.Target, ch platform.Channel) discovery.Recipe {
	return discovery.Recipe{
		Paths:         edgePaths.lookup(t.OS, ch),
		RegistryKey:   `HKCU\Software\Microsoft\Edge\BLBeacon`,
		RegistryValue: "version",
		VersionFlag:   "--version",
	}
}

func (e *Edge) NeedsLatest(c version.Class, major string) bool {
	return c.IsStable() || major == "" || c.IsUnstable()
}

func (e *Edge) LatestDriverVersion(ctx context.Context, r manager.Remote, _ version.Class) (string, error) {
	return e.readVersion(ctx, r, e.DriverBase+"LATEST_STABLE")
}

// DriverVersion reads LATEST_RELEASE_<major>_<OS>. The files are UTF-16
// with a byte order mark; Remote.Text decodes them.
func (e *Edge) DriverVersion(ctx context.Context, r manager.Remote, t manager.Target, major string) (string, error) {
	endpoint := fmt.Sprintf("%sLATEST_RELEASE_%s_%s", e.DriverBase, major, strings.ToUpper(t.OS.String()))
	return e.readVersion(ctx, r, endpoint)
}

func (e *Edge) readVersion(ctx context.Context, r manager.Remote, endpoint string) (string, error) {
	text, err := r.Text(ctx, endpoint)
	if err != nil {
		return "", manager.NewRemoteError(e.BrowserName(), endpoint, err)
	}
	v := version.Extract(text)
	if v == "" {
		return "", &manager.RemoteError{Vendor: e.BrowserName(), Endpoint: endpoint, Detail: fmt.Sprintf("no version in %q", text)}
	}
	return v, nil
}

func (e *Edge) DriverURL(t manager.Target, driverVersion string) (string, error) {
	if driverVersion == "" {
		return "", fmt.Errorf("msedgedriver url: empty version")
	}
	var label string
	switch t.OS {
	case platform.Windows:
		switch t.Arch {
		case platform.ARM64:
			label = "arm64"
		case platform.X32:
			label = "win32"
		default:
			label = "win64"
		}
	case platform.MacOS:
		if t.Arch == platform.ARM64 {
			label = "mac64_m1"
		} else {
			label = "mac64"
		}
	default:
		label = "linux64"
	}
	return fmt.Sprintf("%s%s/edgedriver_%s.zip", e.DriverBase, driverVersion, label), nil
}

func (e *Edge) PlatformLabel(t manager.Target, _ string) string {
	switch t.OS {
	case platform.Windows:
		switch t.Arch {
		case platform.ARM64:
			return "win-arm64"
		case platform.X32:
			return "win32"
		default:
			return "win64"
		}
	case platform.MacOS:
		if t.Arch == platform.ARM64 {
			return "mac-arm64"
		}
		return "mac64"
	default:
		return "linux64"
	}
}

type edgeProduct struct {
	Product  string        `json:"Product"`
	Releases []edgeRelease `json:"Releases"`
}

type edgeRelease struct {
	ReleaseID          int            `json:"ReleaseId"`
	Platform           string         `json:"Platform"`
	Architecture       string         `json:"Architecture"`
	CVEs               []string       `json:"CVEs"`
	ProductVersion     string         `json:"ProductVersion"`
	Artifacts          []edgeArtifact `json:"Artifacts"`
	PublishedTime      string         `json:"PublishedTime"`
	ExpectedExpiryDate string         `json:"ExpectedExpiryDate"`
}

type edgeArtifact struct {
	ArtifactName  string `json:"ArtifactName"`
	Location      string `json:"Location"`
	Hash          string `json:"Hash"`
	HashAlgorithm string `json:"HashAlgorithm"`
	SizeInBytes   int64  `json:"SizeInBytes"`
}

var edgeProductNames = map[platform.Channel]string{
	platform.Stable:  "Stable",
	platform.Beta:    "Beta",
	platform.Dev:     "Dev",
	platform.Nightly: "Canary",
}

func edgeArch(t manager.Target) string {
	switch t.OS {
	case platform.Windows:
		switch t.Arch {
		case platform.ARM64:
			return "arm64"
		case platform.X32:
			return "x86"
		default:
			return "x64"
		}
	case platform.MacOS:
		return "universal"
	default:
		return "x64"
	}
}

func edgePackage(goos platform.OS) string {
	switch goos {
	case platform.Windows:
		return "msi"
	case platform.MacOS:
		return "pkg"
	default:
		return "deb"
	}
}

// BrowserRelease filters the product feed down to one artifact: product
// (channel), then platform and architecture, then package type. Pinned
// requests read the enterprise view, which keeps older stable releases,
// and the newest release within the requested version wins.
func (e *Edge) BrowserRelease(ctx context.Context, r manager.Remote, t manager.Target, c version.Class, requested string) (manager.Artifact, error) {
	endpoint := e.ProductsURL
	if c.Pinned {
		endpoint += "?view=enterprise"
	}
	var products []edgeProduct
	if err := r.JSON(ctx, endpoint, &products); err != nil {
		return manager.Artifact{}, manager.NewRemoteError(e.BrowserName(), endpoint, err)
	}

	channel := platform.Stable
	if !c.Pinned {
		channel = c.Channel
	}
	filters := fmt.Sprintf("product=%s platform=%s arch=%s package=%s",
		edgeProductNames[channel], t.OS, edgeArch(t), edgePackage(t.OS))
	fail := func(detail string) (manager.Artifact, error) {
		return manager.Artifact{}, &manager.RemoteError{Vendor: e.BrowserName(), Endpoint: endpoint, Detail: detail + " (" + filters + ")"}
	}

	var product *edgeProduct
	for i := range products {
		if strings.EqualFold(products[i].Product, edgeProductNames[channel]) {
			product = &products[i]
			break
		}
	}
	if product == nil {
		return fail("no matching product")
	}

	var best *manager.Artifact
	for _, rel := range product.Releases {
		if !strings.EqualFold(rel.Platform, t.OS.String()) || !strings.EqualFold(rel.Architecture, edgeArch(t)) {
			continue
		}
		if c.Pinned && !matchesRequest(rel.ProductVersion, requested) {
			continue
		}
		for _, a := range rel.Artifacts {
			if !strings.EqualFold(a.ArtifactName, edgePackage(t.OS)) {
				continue
			}
			if best == nil || version.MeetsMinimum(rel.ProductVersion, best.Version) {
				best = &manager.Artifact{Version: rel.ProductVersion, URL: a.Location}
			}
		}
	}
	if best != nil {
		return *best, nil
	}
	if c.Pinned {
		return manager.Artifact{}, fmt.Errorf("edge %s is not in the product feed (%s): %w", requested, filters, manager.ErrUnsupported)
	}
	return fail("no matching release artifact")
}

// matchesRequest reports whether v is the requested version or a release
// within it, so "120" matches "120.0.2210.91".
func matchesRequest(v, requested string) bool {
	requested = strings.TrimSpace(requested)
	return v == requested || strings.HasPrefix(v, requested+".")
}

func (e *Edge) BrowserLabel(t manager.Target) string { return e.PlatformLabel(t, "") }

// BrowserBinary follows the layout of each package type once unpacked: an
// app bundle, an administrative msi install, or a deb tree.
func (e *Edge) BrowserBinary(t manager.Target, c version.Class) string {
	ch := platform.Stable
	if !c.Pinned {
		ch = c.Channel
	}
	switch t.OS {
	case platform.MacOS:
		return edgeMacApps[ch]
	case platform.Windows:
		return "Microsoft/Edge/Application/msedge.exe"
	default:
		dir := "msedge"
		if ch != platform.Stable {
			dir += "-" + ch.String()
		}
		return "opt/microsoft/" + dir + "/msedge"
	}
}
