package command

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"
)

func TestCmdRunnerCapturesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	var tee bytes.Buffer
	res, err := CmdRunner{}.Run(context.Background(), "sh", []string{"-c", "echo 121.0.1; echo warn >&2"}, RunOptions{Stdout: &tee})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(string(res.Stdout)) != "121.0.1" {
		t.Fatalf("unexpected stdout %q", res.Stdout)
	}
	if strings.TrimSpace(string(res.Stderr)) != "warn" {
		t.Fatalf("unexpected stderr %q", res.Stderr)
	}
	if tee.String() != string(res.Stdout) {
		t.Fatalf("tee writer got %q", tee.String())
	}
}

func TestCmdRunnerIncludesStderrInError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	_, err := CmdRunner{}.Run(context.Background(), "sh", []string{"-c", "echo boom >&2; exit 3"}, RunOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("stderr missing from error: %v", err)
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected wrapped ExitError, got %T", err)
	}
}
