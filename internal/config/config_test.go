package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.TTLSeconds != 3600 {
		t.Fatalf("expected ttl 3600, got %d", cfg.TTLSeconds)
	}
	if cfg.TimeoutSeconds != 300 {
		t.Fatalf("expected timeout 300, got %d", cfg.TimeoutSeconds)
	}
	if _, _, err := cfg.Platform(); err != nil {
		t.Fatalf("default platform must parse: %v", err)
	}
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drivermgr.yaml")
	contents := "browser: firefox\nbrowser_version: beta\nttl: 60\nlogging:\n  level: warn\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DRIVERMGR_TTL", "120")
	t.Setenv("DRIVERMGR_LOGGING_FORMAT", "json")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("browser", "", "")
	flags.String("browser-version", "", "")
	flags.Bool("offline", false, "")
	flags.String("log-level", "", "")
	if err := flags.Parse([]string{"--browser-version=121", "--offline"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Browser != "firefox" {
		t.Fatalf("file value lost: browser=%q", cfg.Browser)
	}
	if cfg.BrowserVersion != "121" {
		t.Fatalf("flag must override file: browser_version=%q", cfg.BrowserVersion)
	}
	if !cfg.Offline {
		t.Fatal("expected offline from flag")
	}
	if cfg.TTLSeconds != 120 {
		t.Fatalf("env must override file: ttl=%d", cfg.TTLSeconds)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected file log level, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected env log format, got %q", cfg.Logging.Format)
	}
	if cfg.TimeoutSeconds != 300 {
		t.Fatalf("expected default timeout, got %d", cfg.TimeoutSeconds)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", dir)

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TTLSeconds != 3600 || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Browser = "edge"
	cfg.DriverMirrorURL = "https://mirror.example/edgedriver/"

	buf, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(buf), "driver_mirror_url: https://mirror.example/edgedriver/") {
		t.Fatalf("unexpected yaml:\n%s", buf)
	}

	var back Config
	if err := yaml.Unmarshal(buf, &back); err != nil {
		t.Fatal(err)
	}
	if back.Browser != "edge" || back.TTLSeconds != cfg.TTLSeconds {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestApplyDefaultsClampsNegativeTTL(t *testing.T) {
	cfg := Config{TTLSeconds: -5}
	cfg.ApplyDefaults()
	if cfg.TTLSeconds != 0 {
		t.Fatalf("expected ttl 0, got %d", cfg.TTLSeconds)
	}
	if cfg.TimeoutSeconds != 300 {
		t.Fatalf("expected default timeout, got %d", cfg.TimeoutSeconds)
	}
}
