package discovery

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"drivermgr/internal/command"
	"drivermgr/internal/paths"
	"drivermgr/internal/platform"
	"drivermgr/internal/version"
)

const probeTimeout = 10 * time.Second

// Recipe describes how to find the version of a locally installed browser.
type Recipe struct {
	// Paths are candidate executables. On Windows, relative entries are
	// resolved against the program-files and local-app-data roots.
	Paths []string
	// RegistryKey and RegistryValue locate the version on Windows, for example
	// HKCU\Software\Mozilla\Mozilla Firefox and CurrentVersion.
	RegistryKey   string
	RegistryValue string
	// VersionFlag is passed to the executable when no other source answers.
	VersionFlag string
}

// Discoverer answers local version queries. Failures are logged and reported
// as "not found"; discovery never fails a run.
type Discoverer struct {
	OS     platform.OS
	Runner command.Runner
	Log    logrus.FieldLogger
}

// Discover returns the dotted version of the first browser the recipe
// locates.
func (d Discoverer) Discover(ctx context.Context, r Recipe) (string, bool) {
	log := d.logger()

	if d.OS == platform.Windows && r.RegistryKey != "" {
		raw, err := readRegistry(r.RegistryKey, r.RegistryValue)
		if err != nil {
			log.WithError(err).WithField("key", r.RegistryKey).Debug("registry lookup failed")
		} else if v := version.Extract(raw); v != "" {
			return v, true
		}
	}

	for _, candidate := range d.candidates(r.Paths) {
		if !paths.Exists(candidate) {
			continue
		}
		if d.OS == platform.MacOS {
			if v, err := bundleVersion(candidate); err == nil && v != "" {
				return v, true
			} else if err != nil {
				log.WithError(err).WithField("path", candidate).Debug("app bundle lookup failed")
			}
		}
		if r.VersionFlag == "" {
			continue
		}
		if v, ok := d.probe(ctx, candidate, r.VersionFlag); ok {
			return v, true
		}
	}
	return "", false
}

func (d Discoverer) probe(ctx context.Context, binary, flag string) (string, bool) {
	runner := d.Runner
	if runner == nil {
		runner = command.CmdRunner{}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	res, err := runner.Run(ctx, binary, []string{flag}, command.RunOptions{})
	if err != nil {
		d.logger().WithError(err).WithField("path", binary).Debug("version probe failed")
		return "", false
	}
	out := strings.TrimSpace(string(res.Stdout))
	if out == "" {
		out = strings.TrimSpace(string(res.Stderr))
	}
	v := version.Extract(out)
	return v, v != ""
}

func (d Discoverer) candidates(in []string) []string {
	if d.OS != platform.Windows {
		return in
	}
	var roots []string
	for _, env := range []string{"PROGRAMFILES", "PROGRAMFILES(X86)", "LOCALAPPDATA"} {
		if v := os.Getenv(env); v != "" {
			roots = append(roots, v)
		}
	}
	var out []string
	for _, p := range in {
		if filepath.IsAbs(p) || strings.Contains(p, ":") {
			out = append(out, p)
			continue
		}
		for _, root := range roots {
			out = append(out, filepath.Join(root, p))
		}
	}
	return out
}

func (d Discoverer) logger() logrus.FieldLogger {
	if d.Log != nil {
		return d.Log
	}
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}
