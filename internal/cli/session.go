package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"drivermgr/internal/command"
	"drivermgr/internal/config"
	"drivermgr/internal/discovery"
	"drivermgr/internal/fetch"
	"drivermgr/internal/logx"
	"drivermgr/internal/manager"
	"drivermgr/internal/metrics"
	"drivermgr/internal/paths"
	"drivermgr/internal/provision"
	"drivermgr/internal/vendors"
)

// session holds what every command that resolves or downloads shares: the
// loaded config, logger, cache layout and metrics.
type session struct {
	cfg     config.Config
	log     *logrus.Logger
	closer  io.Closer
	paths   paths.CachePaths
	metrics *metrics.Collector
}

// loadConfig reads the layered configuration and rejects it when validation
// reports errors. Warnings are returned for the caller to log.
func loadConfig(cmd *cobra.Command) (config.Config, []config.ValidationResult, error) {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	results := validateConfig(cfg)
	if config.HasErrors(results) {
		var errs []error
		for _, r := range results {
			if r.Level == "error" {
				errs = append(errs, errors.New(r.Message))
			}
		}
		return config.Config{}, results, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, results, nil
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, results, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log, closer, err := logx.New(logx.Options{
		Logging: cfg.Logging,
		Debug:   debugMode,
		Console: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		log.Warn(r.Message)
	}

	cp, err := paths.Resolve(cfg.CachePath)
	if err != nil {
		closer.Close()
		return nil, err
	}

	return &session{
		cfg:     cfg,
		log:     log,
		closer:  closer,
		paths:   cp,
		metrics: metrics.NewCollector(),
	}, nil
}

// browsers splits the configured browser value into canonical names,
// dropping duplicates. At least one browser is required.
func (s *session) browsers() ([]string, error) {
	var names []string
	seen := make(map[string]bool)
	for _, raw := range strings.Split(s.cfg.Browser, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		name, ok := vendors.Canonical(raw)
		if !ok {
			return nil, fmt.Errorf("unknown browser %q (supported: %s)", raw, strings.Join(vendors.Names(), ", "))
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no browser given (use --browser with one of: %s)", strings.Join(vendors.Names(), ", "))
	}
	return names, nil
}

// newManager wires a manager for one browser. Each manager gets its own copy
// of the config and its own HTTP client; the cache layout and metrics are
// shared.
func (s *session) newManager(browser string) (*manager.Manager, error) {
	v, err := vendors.ByName(browser, vendors.Options{
		DriverMirrorURL:  s.cfg.DriverMirrorURL,
		BrowserMirrorURL: s.cfg.BrowserMirrorURL,
	})
	if err != nil {
		return nil, err
	}
	cfg := s.cfg
	cfg.Browser = browser

	goos, _, err := cfg.Platform()
	if err != nil {
		return nil, err
	}
	log := s.log.WithField("browser", browser)
	client, err := fetch.New(fetch.Options{
		Name:              browser,
		Timeout:           cfg.Timeout(),
		Proxy:             cfg.Proxy,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            log,
	})
	if err != nil {
		return nil, err
	}
	return manager.New(v, cfg, manager.Deps{
		Remote: client,
		Provisioner: &provision.Pipeline{
			Client:      client,
			ScratchRoot: s.paths.DownloadsDir,
			Runner:      command.CmdRunner{},
			Log:         log,
			Metrics:     s.metrics,
		},
		Discoverer: discovery.Discoverer{
			OS:     goos,
			Runner: command.CmdRunner{},
			Log:    log,
		},
		Paths:   s.paths,
		Log:     s.log,
		Metrics: s.metrics,
	})
}

// Close writes the metrics textfile when one is configured and releases the
// log file.
func (s *session) Close() error {
	s.log.WithField("elapsed", s.metrics.Uptime().Round(time.Millisecond)).Debug("run finished")
	var errs []error
	if path := s.cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.closer.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
