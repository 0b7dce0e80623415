// Package vendors implements manager.Vendor for each supported browser
// family.
package vendors

import (
	"fmt"
	"sort"
	"strings"

	"drivermgr/internal/manager"
	"drivermgr/internal/platform"
)

// Options carry mirror overrides from the configuration. Empty fields keep
// the vendor defaults.
type Options struct {
	DriverMirrorURL  string
	BrowserMirrorURL string
}

type constructor func(Options) manager.Vendor

var registry = map[string]constructor{
	"chrome":  func(o Options) manager.Vendor { return NewChrome(o) },
	"edge":    func(o Options) manager.Vendor { return NewEdge(o) },
	"firefox": func(o Options) manager.Vendor { return NewFirefox(o) },
}

var aliases = map[string]string{
	"googlechrome":  "chrome",
	"msedge":        "edge",
	"microsoftedge": "edge",
	"ff":            "firefox",
}

// Names lists the canonical browser names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Canonical maps a browser name or alias to its canonical name.
func Canonical(name string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[n]; ok {
		n = alias
	}
	_, ok := registry[n]
	return n, ok
}

// ByName returns the vendor for a browser name or alias.
func ByName(name string, opts Options) (manager.Vendor, error) {
	n, ok := Canonical(name)
	if !ok {
		return nil, fmt.Errorf("unknown browser %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return registry[n](opts), nil
}

// withSlash makes sure a base URL ends in a slash.
func withSlash(base string) string {
	if strings.HasSuffix(base, "/") {
		return base
	}
	return base + "/"
}

func pick(override, def string) string {
	if override != "" {
		return withSlash(override)
	}
	return def
}

// pathTable resolves local install paths by (OS, channel).
type pathTable map[platform.Key]string

func (t pathTable) lookup(goos platform.OS, ch platform.Channel) []string {
	if p, ok := t[platform.Key{OS: goos, Channel: ch}]; ok {
		return []string{p}
	}
	return nil
}
