package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"howett.net/plist"

	"drivermgr/internal/command"
	"drivermgr/internal/platform"
)

type fakeRunner struct {
	outputs map[string]string
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, cmd string, args []string, _ command.RunOptions) (command.RunResult, error) {
	f.calls = append(f.calls, cmd)
	out, ok := f.outputs[cmd]
	if !ok {
		return command.RunResult{}, errors.New("not executable")
	}
	return command.RunResult{Stdout: []byte(out)}, nil
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("bin"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverProbesFirstExistingPath(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing", "firefox")
	present := filepath.Join(dir, "usr", "bin", "firefox")
	touch(t, present)

	runner := &fakeRunner{outputs: map[string]string{present: "Mozilla Firefox 121.0.1\n"}}
	d := Discoverer{OS: platform.Linux, Runner: runner}

	v, ok := d.Discover(context.Background(), Recipe{Paths: []string{missing, present}, VersionFlag: "-v"})
	if !ok || v != "121.0.1" {
		t.Fatalf("Discover = %q, %v", v, ok)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected one probe, got %v", runner.calls)
	}
}

func TestDiscoverNothingInstalled(t *testing.T) {
	runner := &fakeRunner{}
	d := Discoverer{OS: platform.Linux, Runner: runner}

	v, ok := d.Discover(context.Background(), Recipe{Paths: []string{"/nonexistent/msedge"}, VersionFlag: "--version"})
	if ok || v != "" {
		t.Fatalf("expected no version, got %q", v)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("missing binaries must not be executed: %v", runner.calls)
	}
}

func TestDiscoverProbeFailureIsSoft(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "chrome")
	touch(t, present)

	d := Discoverer{OS: platform.Linux, Runner: &fakeRunner{}}
	if _, ok := d.Discover(context.Background(), Recipe{Paths: []string{present}, VersionFlag: "--version"}); ok {
		t.Fatal("failed probe must report not found")
	}
}

func TestDiscoverReadsAppBundlePlist(t *testing.T) {
	dir := t.TempDir()
	app := filepath.Join(dir, "Applications", "Microsoft Edge.app")
	binary := filepath.Join(app, "Contents", "MacOS", "Microsoft Edge")
	touch(t, binary)

	data, err := plist.Marshal(map[string]string{
		"CFBundleShortVersionString": "120.0.2210.91",
		"CFBundleVersion":            "2210.91",
	}, plist.XMLFormat)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(app, "Contents", "Info.plist"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{}
	d := Discoverer{OS: platform.MacOS, Runner: runner}
	v, ok := d.Discover(context.Background(), Recipe{Paths: []string{binary}, VersionFlag: "--version"})
	if !ok || v != "120.0.2210.91" {
		t.Fatalf("Discover = %q, %v", v, ok)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("plist hit should skip the probe: %v", runner.calls)
	}
}

func TestWindowsRelativePathsUseProgramRoots(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PROGRAMFILES", filepath.Join(dir, "pf"))
	t.Setenv("PROGRAMFILES(X86)", "")
	t.Setenv("LOCALAPPDATA", filepath.Join(dir, "local"))

	d := Discoverer{OS: platform.Windows}
	got := d.candidates([]string{filepath.Join("Mozilla Firefox", "firefox.exe")})
	want := []string{
		filepath.Join(dir, "pf", "Mozilla Firefox", "firefox.exe"),
		filepath.Join(dir, "local", "Mozilla Firefox", "firefox.exe"),
	}
	if len(got) != len(want) {
		t.Fatalf("candidates = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("candidate %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestAppRoot(t *testing.T) {
	sep := string(filepath.Separator)
	bundle := sep + filepath.Join("Applications", "Firefox.app")

	if got := appRoot(filepath.Join(bundle, "Contents", "MacOS", "firefox")); got != bundle {
		t.Fatalf("appRoot = %q, want %q", got, bundle)
	}
	if got := appRoot(sep + filepath.Join("usr", "bin", "firefox")); got != "" {
		t.Fatalf("expected no bundle, got %q", got)
	}
}
