package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"drivermgr/internal/config"
	"drivermgr/internal/discovery"
	"drivermgr/internal/logx"
	"drivermgr/internal/metadata"
	"drivermgr/internal/metrics"
	"drivermgr/internal/paths"
	"drivermgr/internal/platform"
	"drivermgr/internal/provision"
	"drivermgr/internal/version"
)

// Provisioner materializes artifacts in the cache.
type Provisioner interface {
	Materialize(ctx context.Context, req provision.Request) (string, bool, error)
}

// Discoverer finds locally installed browsers.
type Discoverer interface {
	Discover(ctx context.Context, r discovery.Recipe) (string, bool)
}

// Deps are the collaborators a Manager calls out to.
type Deps struct {
	Remote      Remote
	Provisioner Provisioner
	Discoverer  Discoverer
	Paths       paths.CachePaths
	Log         logrus.FieldLogger
	Metrics     *metrics.Collector
	// Now defaults to time.Now.
	Now func() time.Time
}

// Manager owns the per-run state of one browser family and runs the shared
// resolution algorithm through its Vendor. It is not safe for concurrent use.
type Manager struct {
	vendor    Vendor
	cfg       config.Config
	target    Target
	requested version.Class

	remote      Remote
	provisioner Provisioner
	discoverer  Discoverer
	paths       paths.CachePaths
	log         logrus.FieldLogger
	metrics     *metrics.Collector
	now         func() time.Time

	browserVersion string
	driverVersion  string
	browserPath    string
	driverPath     string
}

// New builds a manager for one run. The config is copied and never
// mutated afterwards.
func New(v Vendor, cfg config.Config, deps Deps) (*Manager, error) {
	goos, arch, err := cfg.Platform()
	if err != nil {
		return nil, err
	}
	log := deps.Log
	if log == nil {
		log = logx.Discard()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	m := &Manager{
		vendor:      v,
		cfg:         cfg,
		target:      Target{OS: goos, Arch: arch},
		requested:   version.Classify(cfg.BrowserVersion, v.Markers()),
		remote:      deps.Remote,
		provisioner: deps.Provisioner,
		discoverer:  deps.Discoverer,
		paths:       deps.Paths,
		log:         log.WithFields(logrus.Fields{"browser": v.BrowserName(), "driver": v.DriverName()}),
		metrics:     deps.Metrics,
		now:         now,
	}
	m.driverVersion = cfg.DriverVersion
	return m, nil
}

func (m *Manager) BrowserName() string { return m.vendor.BrowserName() }
func (m *Manager) DriverName() string  { return m.vendor.DriverName() }

// Target returns the platform this manager resolves for.
func (m *Manager) Target() Target { return m.target }

// Requested returns the classification of the configured browser version.
func (m *Manager) Requested() version.Class { return m.requested }

func (m *Manager) BrowserVersion() string { return m.browserVersion }
func (m *Manager) DriverVersion() string  { return m.driverVersion }
func (m *Manager) BrowserPath() string    { return m.browserPath }
func (m *Manager) DriverPath() string     { return m.driverPath }

// DiscoverBrowserVersion looks for a locally installed browser. An explicit
// browser path replaces the vendor's path table. Failure is not an error.
func (m *Manager) DiscoverBrowserVersion(ctx context.Context) (string, bool) {
	if m.discoverer == nil {
		return "", false
	}
	ch := m.requested.Channel
	if m.requested.Pinned {
		ch = platform.Stable
	}
	recipe := m.vendor.Recipe(m.target, ch)
	if m.cfg.BrowserPath != "" {
		recipe.Paths = []string{m.cfg.BrowserPath}
	}
	v, ok := m.discoverer.Discover(ctx, recipe)
	if !ok {
		m.log.Debug("no local browser found")
		return "", false
	}
	m.log.WithField("version", v).Debug("local browser found")
	m.browserVersion = v
	return v, true
}

// subjectMajor is the major of the discovered or requested browser version,
// empty for a stable request with nothing discovered.
func (m *Manager) subjectMajor() string {
	if m.browserVersion != "" {
		return version.Major(m.browserVersion)
	}
	if m.requested.Pinned {
		return version.Major(m.cfg.BrowserVersion)
	}
	return ""
}

// effectiveClass treats a known browser version as pinned.
func (m *Manager) effectiveClass() version.Class {
	if m.browserVersion != "" {
		return version.Class{Pinned: true}
	}
	return m.requested
}

// ResolveDriverVersion maps the subject browser major to a driver version,
// consulting the metadata cache before the vendor feeds.
func (m *Manager) ResolveDriverVersion(ctx context.Context) (string, error) {
	driver := m.vendor.DriverName()
	major := m.subjectMajor()
	now := m.now()

	md := metadata.Load(m.paths.MetadataFile, m.log)
	if v, ok := metadata.Find(md.Drivers, driver, major, now); ok {
		m.recordHit(metrics.Driver, driver)
		m.log.WithFields(logrus.Fields{"major": major, "version": v}).Debug("driver version from cache")
		m.driverVersion = v
		return v, nil
	}
	m.recordMiss(metrics.Driver, driver)

	if m.cfg.Offline {
		return "", fmt.Errorf("%s: %w", driver, ErrOffline)
	}
	if m.remote == nil {
		return "", &RemoteError{Vendor: m.vendor.BrowserName(), Detail: "no http client configured"}
	}

	class := m.effectiveClass()
	if m.vendor.NeedsLatest(class, major) {
		latest, err := m.vendor.LatestDriverVersion(ctx, m.remote, class)
		m.recordRemote(err)
		if err != nil {
			return "", NewRemoteError(m.vendor.BrowserName(), "", err)
		}
		major = version.Major(latest)
	}

	v, err := m.vendor.DriverVersion(ctx, m.remote, m.target, major)
	m.recordRemote(err)
	if err != nil {
		return "", NewRemoteError(m.vendor.BrowserName(), "", err)
	}
	m.log.WithFields(logrus.Fields{"major": major, "version": v}).Info("driver version resolved")

	if ttl := m.cfg.TTL(); ttl > 0 && major != "" {
		m.persist(ctx, func(md *metadata.Metadata) {
			md.Drivers = append(md.Drivers, metadata.NewEntry(major, driver, v, ttl, now))
		})
	}
	m.driverVersion = v
	return v, nil
}

// DriverURL is pure; no I/O.
func (m *Manager) DriverURL(driverVersion string) (string, error) {
	return m.vendor.DriverURL(m.target, driverVersion)
}

// DriverCachePath is pure; the same inputs always yield the same path.
func (m *Manager) DriverCachePath(driverVersion string) string {
	label := m.vendor.PlatformLabel(m.target, driverVersion)
	return m.paths.DriverPath(m.vendor.DriverName(), m.target.OS, label, driverVersion)
}

// SetupDriver discovers the browser, resolves the driver version and makes
// the driver binary present in the cache. An explicit driver path wins over
// everything else.
func (m *Manager) SetupDriver(ctx context.Context) (string, error) {
	if m.cfg.DriverPath != "" {
		ok, err := paths.FileExists(m.cfg.DriverPath)
		if err != nil {
			return "", fmt.Errorf("driver path %s: %w", m.cfg.DriverPath, err)
		}
		if !ok {
			return "", fmt.Errorf("driver path %s: %w", m.cfg.DriverPath, ErrNotFound)
		}
		m.driverPath = m.cfg.DriverPath
		return m.driverPath, nil
	}

	if m.driverVersion == "" {
		m.prepareBrowser(ctx)
		if _, err := m.ResolveDriverVersion(ctx); err != nil {
			return "", err
		}
	}

	driverVersion := m.driverVersion
	target := m.DriverCachePath(driverVersion)
	if paths.Exists(target) {
		m.log.WithField("path", target).Debug("driver already cached")
		m.driverPath = target
		return target, nil
	}
	if m.cfg.Offline {
		return "", fmt.Errorf("%s %s: %w", m.vendor.DriverName(), driverVersion, ErrOffline)
	}
	if m.provisioner == nil {
		return "", fmt.Errorf("%s %s: %w", m.vendor.DriverName(), driverVersion, ErrNotFound)
	}

	driverURL, err := m.DriverURL(driverVersion)
	if err != nil {
		return "", err
	}
	got, ok, err := m.provisioner.Materialize(ctx, provision.Request{
		Artifact: metrics.Driver,
		Name:     m.vendor.DriverName(),
		Version:  driverVersion,
		URL:      driverURL,
		Target:   target,
		Binary:   m.target.OS.Executable(m.vendor.DriverName()),
		OS:       m.target.OS,
	})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s %s: %w", m.vendor.DriverName(), driverVersion, ErrNotFound)
	}
	m.driverPath = got
	m.log.WithFields(logrus.Fields{"version": driverVersion, "path": got}).Info("driver ready")
	return got, nil
}

// prepareBrowser fixes the subject browser version before driver
// resolution. A browser that was asked for explicitly and is not installed
// is downloaded unless downloads are disabled; a failed download is logged
// and resolution falls back to the requested version.
func (m *Manager) prepareBrowser(ctx context.Context) {
	discovered, ok := m.DiscoverBrowserVersion(ctx)
	if ok && (!m.requested.Pinned || version.Major(discovered) == version.Major(m.cfg.BrowserVersion)) {
		return
	}
	if ok {
		m.log.WithFields(logrus.Fields{"installed": discovered, "requested": m.cfg.BrowserVersion}).
			Debug("installed browser does not match request")
		m.browserVersion = ""
	}
	if m.requested.IsStable() || m.cfg.AvoidBrowserDownload || m.cfg.Offline {
		return
	}
	if _, _, err := m.DownloadBrowser(ctx); err != nil {
		m.log.WithError(err).Warn("browser download failed")
	}
}

func (m *Manager) persist(ctx context.Context, fn func(*metadata.Metadata)) {
	if err := metadata.Update(ctx, m.paths.MetadataFile, m.log, fn); err != nil {
		m.log.WithError(errors.Join(ErrCacheDegraded, err)).Warn("metadata not saved")
	}
}

func (m *Manager) recordHit(artifact, name string) {
	if m.metrics != nil {
		m.metrics.RecordCacheHit(artifact, name)
	}
}

func (m *Manager) recordMiss(artifact, name string) {
	if m.metrics != nil {
		m.metrics.RecordCacheMiss(artifact, name)
	}
}

func (m *Manager) recordRemote(err error) {
	if m.metrics != nil {
		m.metrics.RecordRemote(m.vendor.BrowserName(), err)
	}
}

// Result is a snapshot of what a run resolved.
type Result struct {
	Browser        string `json:"browser"`
	Driver         string `json:"driver"`
	BrowserVersion string `json:"browser_version,omitempty"`
	DriverVersion  string `json:"driver_version,omitempty"`
	BrowserPath    string `json:"browser_path,omitempty"`
	DriverPath     string `json:"driver_path,omitempty"`
}

func (m *Manager) Result() Result {
	return Result{
		Browser:        m.vendor.BrowserName(),
		Driver:         m.vendor.DriverName(),
		BrowserVersion: m.browserVersion,
		DriverVersion:  m.driverVersion,
		BrowserPath:    m.browserPath,
		DriverPath:     m.driverPath,
	}
}
