package config

import (
	"fmt"
	"net/url"
	"strings"

	"drivermgr/internal/platform"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

// Validate checks the configuration against the supported browsers and
// returns structured results. An empty slice means the configuration is
// usable.
func (c Config) Validate(knownBrowsers []string) []ValidationResult {
	var results []ValidationResult
	results = append(results, c.validateBrowser(knownBrowsers)...)
	results = append(results, c.validatePlatform()...)
	results = append(results, c.validateURLs()...)
	results = append(results, c.validateLimits()...)
	results = append(results, c.validateLogging()...)
	return results
}

// HasErrors reports whether any result is an error.
func HasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if r.Level == "error" {
			return true
		}
	}
	return false
}

func (c Config) validateBrowser(known []string) []ValidationResult {
	name := strings.ToLower(strings.TrimSpace(c.Browser))
	if name == "" || len(known) == 0 {
		return nil
	}
	for _, k := range known {
		if name == k {
			return nil
		}
	}
	return []ValidationResult{{
		Level:   "error",
		Message: fmt.Sprintf("browser %q is not supported (known browsers: %s)", c.Browser, strings.Join(known, ", ")),
	}}
}

func (c Config) validatePlatform() []ValidationResult {
	var results []ValidationResult
	if _, err := platform.ParseOS(c.OS); err != nil {
		results = append(results, ValidationResult{Level: "error", Message: err.Error()})
	}
	if _, err := platform.ParseArch(c.Arch); err != nil {
		results = append(results, ValidationResult{Level: "error", Message: err.Error()})
	}
	return results
}

func (c Config) validateURLs() []ValidationResult {
	var results []ValidationResult
	for name, raw := range map[string]string{
		"proxy":              c.Proxy,
		"driver_mirror_url":  c.DriverMirrorURL,
		"browser_mirror_url": c.BrowserMirrorURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("%s %q is not an absolute URL", name, raw),
			})
		}
	}
	return results
}

func (c Config) validateLimits() []ValidationResult {
	var results []ValidationResult
	if c.TimeoutSeconds <= 0 {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("timeout must be positive, got %d", c.TimeoutSeconds),
		})
	}
	if c.TTLSeconds == 0 {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: "ttl is 0: resolved versions will not be cached",
		})
	}
	if c.Offline && c.BrowserVersion != "" && !c.AvoidBrowserDownload {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: "offline mode cannot download browsers; only cached versions will be used",
		})
	}
	return results
}

func (c Config) validateLogging() []ValidationResult {
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
		return nil
	default:
		return []ValidationResult{{
			Level:   "warning",
			Message: fmt.Sprintf("unknown log format %q, falling back to text", c.Logging.Format),
		}}
	}
}
