package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"drivermgr/internal/archive"
	"drivermgr/internal/command"
	"drivermgr/internal/logx"
	"drivermgr/internal/metrics"
	"drivermgr/internal/paths"
	"drivermgr/internal/platform"
)

// Downloader fetches a URL into a local file.
type Downloader interface {
	Download(ctx context.Context, rawURL, dest string) error
}

// Request describes one artifact to materialize in the cache.
type Request struct {
	// Artifact is metrics.Driver or metrics.Browser.
	Artifact string
	Name     string
	Version  string
	URL      string
	// Target is the path whose presence means the artifact is materialized.
	Target string
	// Dir is the extraction directory for browsers. Drivers leave it empty:
	// the file called Binary is located in the archive and moved to Target.
	Dir          string
	Binary       string
	OS           platform.OS
	MajorVersion int
	// Kind overrides archive detection from the URL.
	Kind archive.Kind
}

func (r Request) isDriver() bool { return r.Dir == "" }

// Pipeline downloads artifacts into scratch directories and extracts them
// into the cache.
type Pipeline struct {
	Client      Downloader
	ScratchRoot string
	Runner      command.Runner
	Log         logrus.FieldLogger
	Metrics     *metrics.Collector
}

// Materialize makes req.Target exist. It returns the target path and true on
// success. A target still absent after extraction is reported as ok=false
// with a nil error; download and extraction failures are errors.
func (p *Pipeline) Materialize(ctx context.Context, req Request) (string, bool, error) {
	if paths.Exists(req.Target) {
		return req.Target, true, nil
	}
	if req.URL == "" {
		return "", false, fmt.Errorf("%s %s: no download url", req.Name, req.Version)
	}

	unlock, err := paths.Lock(ctx, lockPath(req))
	if err != nil {
		return "", false, err
	}
	defer unlock()

	// Another process may have finished while we waited.
	if paths.Exists(req.Target) {
		return req.Target, true, nil
	}

	start := time.Now()
	err = p.fetchAndExtract(ctx, req)
	if p.Metrics != nil {
		p.Metrics.RecordDownload(req.Artifact, req.Name, time.Since(start), err)
	}
	if err != nil {
		if errors.Is(err, archive.ErrSkipped) {
			p.logger().WithError(err).WithField("url", req.URL).Warn("artifact cannot be unpacked into the cache")
			return "", false, nil
		}
		return "", false, err
	}

	if !paths.Exists(req.Target) {
		p.logger().WithFields(logrus.Fields{"name": req.Name, "target": req.Target}).Warn("artifact missing after extraction")
		return "", false, nil
	}
	return req.Target, true, nil
}

func (p *Pipeline) fetchAndExtract(ctx context.Context, req Request) error {
	log := p.logger().WithFields(logrus.Fields{"name": req.Name, "version": req.Version})

	scratch := filepath.Join(p.ScratchRoot, uuid.NewString())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("prepare scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	name, err := archiveName(req.URL)
	if err != nil {
		return err
	}
	archivePath := filepath.Join(scratch, name)

	log.WithField("url", req.URL).Info("downloading")
	if err := p.Client.Download(ctx, req.URL, archivePath); err != nil {
		return fmt.Errorf("download %s: %w", req.Name, err)
	}

	opts := archive.Options{Kind: req.Kind, OS: req.OS, MajorVersion: req.MajorVersion, Runner: p.Runner}

	if !req.isDriver() {
		log.WithField("dir", req.Dir).Debug("extracting browser")
		if err := archive.Extract(ctx, archivePath, req.Dir, opts); err != nil {
			return fmt.Errorf("extract %s: %w", req.Name, err)
		}
		return nil
	}

	extracted := filepath.Join(scratch, "extracted")
	if err := archive.Extract(ctx, archivePath, extracted, opts); err != nil {
		return fmt.Errorf("extract %s: %w", req.Name, err)
	}
	binary, err := archive.FindFile(extracted, req.Binary)
	if err != nil {
		return fmt.Errorf("search %s: %w", req.Name, err)
	}
	if binary == "" {
		return fmt.Errorf("binary %s not found in %s", req.Binary, name)
	}
	if err := os.MkdirAll(filepath.Dir(req.Target), 0o755); err != nil {
		return fmt.Errorf("prepare cache dir: %w", err)
	}
	if err := moveFile(log, binary, req.Target); err != nil {
		return err
	}
	if req.OS != platform.Windows {
		if err := os.Chmod(req.Target, 0o755); err != nil {
			return fmt.Errorf("make %s executable: %w", req.Target, err)
		}
	}
	log.WithField("path", req.Target).Debug("driver cached")
	return nil
}

// lockPath sits beside the directory extraction replaces, never inside it.
func lockPath(req Request) string {
	if req.Dir != "" {
		return filepath.Clean(req.Dir) + ".lock"
	}
	return req.Target + ".lock"
}

func (p *Pipeline) logger() logrus.FieldLogger {
	if p.Log != nil {
		return p.Log
	}
	return logx.Discard()
}

func archiveName(downloadURL string) (string, error) {
	parsed, err := url.Parse(downloadURL)
	if err != nil {
		return "", fmt.Errorf("parse download url: %w", err)
	}
	base := path.Base(parsed.Path)
	if base == "." || base == "" || base == "/" {
		return "", fmt.Errorf("infer archive name from url: %s", downloadURL)
	}
	return base, nil
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(log logrus.FieldLogger, src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	log.Debug("rename failed, falling back to copy")

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("close %s: %w", dst, err)
	}
	_ = os.Remove(src)
	return nil
}
