package logx

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"drivermgr/internal/config"
)

func TestNewJSONToConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{
		Logging: config.LoggingConfig{Level: "info", Format: "json"},
		Console: &buf,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer.Close()

	logger.WithField("browser", "firefox").Info("resolved")
	logger.Debug("hidden")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected one json line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "resolved" || entry["browser"] != "firefox" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewDebugOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Logging: config.LoggingConfig{Level: "error"}, Debug: true, Console: &buf})
	if err != nil {
		t.Fatal(err)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, _, err := New(Options{Logging: config.LoggingConfig{Level: "chatty"}}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "drivermgr.log")
	var console bytes.Buffer
	logger, closer, err := New(Options{
		Logging: config.LoggingConfig{Level: "info", File: path, MaxSizeMB: 1},
		Console: &console,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("downloaded geckodriver")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "downloaded geckodriver") {
		t.Fatalf("log file missing entry: %q", data)
	}
	if !strings.Contains(console.String(), "downloaded geckodriver") {
		t.Fatal("console missing entry")
	}
}
