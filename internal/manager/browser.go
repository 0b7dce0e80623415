package manager

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"drivermgr/internal/metadata"
	"drivermgr/internal/metrics"
	"drivermgr/internal/paths"
	"drivermgr/internal/provision"
	"drivermgr/internal/version"
)

// browserKey is the metadata key for a browser request: the channel name
// for unstable channels, the requested version when pinned. Stable requests
// are never cached.
func (m *Manager) browserKey() string {
	if m.requested.IsStable() {
		return ""
	}
	if m.requested.Pinned {
		return strings.TrimSpace(m.cfg.BrowserVersion)
	}
	return m.requested.Channel.String()
}

// DownloadBrowser makes the requested browser present in the cache and
// returns the path of its executable. ok is false when downloads are
// disabled or the package could not be unpacked into the cache.
func (m *Manager) DownloadBrowser(ctx context.Context) (string, bool, error) {
	if m.cfg.BrowserPath != "" {
		m.browserPath = m.cfg.BrowserPath
		return m.browserPath, paths.Exists(m.browserPath), nil
	}
	if m.cfg.AvoidBrowserDownload {
		m.log.Debug("browser download disabled")
		return "", false, nil
	}

	browser := m.vendor.BrowserName()
	key := m.browserKey()
	now := m.now()

	var release Artifact
	md := metadata.Load(m.paths.MetadataFile, m.log)
	if v, ok := metadata.Find(md.Browsers, browser, key, now); ok && key != "" {
		m.recordHit(metrics.Browser, browser)
		release.Version = v
	} else {
		m.recordMiss(metrics.Browser, browser)
		var err error
		if release, err = m.browserRelease(ctx); err != nil {
			return "", false, err
		}
		m.rememberBrowser(ctx, key, release.Version, now)
	}

	if target, ok := m.cachedBrowser(release.Version); ok {
		return target, true, nil
	}

	// A cache hit carries no URL. The feed may since have moved to a newer
	// release, which then gets its own directory and replaces the entry.
	if release.URL == "" {
		r, err := m.browserRelease(ctx)
		if err != nil {
			return "", false, err
		}
		release.URL = r.URL
		if r.Version != release.Version {
			m.log.WithFields(logrus.Fields{"cached": release.Version, "version": r.Version}).
				Debug("browser release moved on")
			release.Version = r.Version
			m.rememberBrowser(ctx, key, release.Version, now)
			if target, ok := m.cachedBrowser(release.Version); ok {
				return target, true, nil
			}
		}
	}
	dir, target := m.browserLocation(release.Version)
	log := m.log.WithFields(logrus.Fields{"version": release.Version, "path": target})
	if m.provisioner == nil {
		return "", false, fmt.Errorf("%s %s: %w", browser, release.Version, ErrNotFound)
	}

	got, ok, err := m.provisioner.Materialize(ctx, provision.Request{
		Artifact:     metrics.Browser,
		Name:         browser,
		Version:      release.Version,
		URL:          release.URL,
		Target:       target,
		Dir:          dir,
		OS:           m.target.OS,
		MajorVersion: version.MajorInt(release.Version),
	})
	if err != nil || !ok {
		return "", false, err
	}
	log.Info("browser ready")
	m.browserPath, m.browserVersion = got, release.Version
	return got, true, nil
}

func (m *Manager) browserLocation(v string) (dir, target string) {
	dir = m.paths.BrowserDir(m.vendor.BrowserName(), m.vendor.BrowserLabel(m.target), v)
	return dir, filepath.Join(dir, m.vendor.BrowserBinary(m.target, m.requested))
}

// cachedBrowser reports the executable for version v when it is already
// unpacked in the cache.
func (m *Manager) cachedBrowser(v string) (string, bool) {
	_, target := m.browserLocation(v)
	if !paths.Exists(target) {
		return "", false
	}
	m.log.WithFields(logrus.Fields{"version": v, "path": target}).Debug("browser already cached")
	m.browserPath, m.browserVersion = target, v
	return target, true
}

func (m *Manager) rememberBrowser(ctx context.Context, key, v string, now time.Time) {
	ttl := m.cfg.TTL()
	if ttl <= 0 || key == "" {
		return
	}
	m.persist(ctx, func(md *metadata.Metadata) {
		md.Browsers = metadata.Replace(md.Browsers, metadata.NewEntry(key, m.vendor.BrowserName(), v, ttl, now))
	})
}

func (m *Manager) browserRelease(ctx context.Context) (Artifact, error) {
	if m.cfg.Offline {
		return Artifact{}, fmt.Errorf("%s: %w", m.vendor.BrowserName(), ErrOffline)
	}
	if m.remote == nil {
		return Artifact{}, &RemoteError{Vendor: m.vendor.BrowserName(), Detail: "no http client configured"}
	}
	release, err := m.vendor.BrowserRelease(ctx, m.remote, m.target, m.requested, m.cfg.BrowserVersion)
	m.recordRemote(err)
	if err != nil {
		return Artifact{}, NewRemoteError(m.vendor.BrowserName(), "", err)
	}
	if release.Version == "" {
		return Artifact{}, &RemoteError{Vendor: m.vendor.BrowserName(), Detail: "empty browser version"}
	}
	return release, nil
}
