package provision

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivermgr/internal/metrics"
	"drivermgr/internal/platform"
)

type fakeDownloader struct {
	body   []byte
	err    error
	calls  int
	during func()
}

func (f *fakeDownloader) Download(_ context.Context, _ string, dest string) error {
	f.calls++
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dest, f.body, 0o644)
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newPipeline(t *testing.T, dl Downloader) (*Pipeline, string) {
	t.Helper()
	root := t.TempDir()
	return &Pipeline{
		Client:      dl,
		ScratchRoot: filepath.Join(root, "downloads"),
		Metrics:     metrics.NewCollector(),
	}, root
}

func TestMaterializeDriver(t *testing.T) {
	dl := &fakeDownloader{body: zipBytes(t, map[string]string{
		"chromedriver-linux64/chromedriver":         "driver",
		"chromedriver-linux64/LICENSE.chromedriver": "license",
	})}
	p, root := newPipeline(t, dl)
	target := filepath.Join(root, "chromedriver", "linux64", "120.0.6099.109", "chromedriver")

	got, ok, err := p.Materialize(context.Background(), Request{
		Artifact: metrics.Driver,
		Name:     "chromedriver",
		Version:  "120.0.6099.109",
		URL:      "https://storage.example/120.0.6099.109/linux64/chromedriver-linux64.zip",
		Target:   target,
		Binary:   "chromedriver",
		OS:       platform.Linux,
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, target, got)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "driver", string(data))
	if runtime.GOOS != "windows" {
		info, err := os.Stat(target)
		require.NoError(t, err)
		assert.NotZero(t, info.Mode()&0o111, "driver must be executable")
	}

	entries, err := os.ReadDir(p.ScratchRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch dirs must be removed")
}

func TestMaterializeExistingTargetSkipsDownload(t *testing.T) {
	dl := &fakeDownloader{}
	p, root := newPipeline(t, dl)
	target := filepath.Join(root, "geckodriver", "linux64", "0.34.0", "geckodriver")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o755))

	got, ok, err := p.Materialize(context.Background(), Request{Name: "geckodriver", URL: "https://x/y.tar.gz", Target: target})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, target, got)
	assert.Zero(t, dl.calls)
}

func TestMaterializeBrowserIntoDir(t *testing.T) {
	dl := &fakeDownloader{body: zipBytes(t, map[string]string{"chrome-linux64/chrome": "browser"})}
	p, root := newPipeline(t, dl)
	dir := filepath.Join(root, "chrome", "linux64", "120.0.6099.109")

	got, ok, err := p.Materialize(context.Background(), Request{
		Artifact: metrics.Browser,
		Name:     "chrome",
		URL:      "https://storage.example/chrome-linux64.zip",
		Target:   filepath.Join(dir, "chrome-linux64", "chrome"),
		Dir:      dir,
		OS:       platform.Linux,
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.FileExists(t, got)
}

func TestMaterializeBrowserLocksBesideDir(t *testing.T) {
	dl := &fakeDownloader{body: zipBytes(t, map[string]string{"Firefox.app/Contents/MacOS/firefox": "browser"})}
	p, root := newPipeline(t, dl)
	dir := filepath.Join(root, "firefox", "mac-arm64", "121.0")
	dl.during = func() {
		assert.FileExists(t, dir+".lock")
		assert.NoDirExists(t, dir, "lock must not create the extraction directory")
	}

	got, ok, err := p.Materialize(context.Background(), Request{
		Artifact: metrics.Browser,
		Name:     "firefox",
		URL:      "https://archive.example/firefox-121.0.zip",
		Target:   filepath.Join(dir, "Firefox.app", "Contents", "MacOS", "firefox"),
		Dir:      dir,
		OS:       platform.Linux,
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.FileExists(t, got)
	assert.NoFileExists(t, dir+".lock")
	assert.Equal(t, 1, dl.calls)
}

func TestMaterializeMissingAfterExtractIsSoft(t *testing.T) {
	dl := &fakeDownloader{body: zipBytes(t, map[string]string{"other/file": "x"})}
	p, root := newPipeline(t, dl)
	dir := filepath.Join(root, "firefox", "linux64", "121.0")

	_, ok, err := p.Materialize(context.Background(), Request{
		Name:   "firefox",
		URL:    "https://ftp.example/firefox-121.0.zip",
		Target: filepath.Join(dir, "firefox", "firefox"),
		Dir:    dir,
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMaterializeInstallerExeIsSoft(t *testing.T) {
	dl := &fakeDownloader{body: []byte("MZ")}
	p, root := newPipeline(t, dl)
	dir := filepath.Join(root, "firefox", "win64", "121.0")

	_, ok, err := p.Materialize(context.Background(), Request{
		Name:   "firefox",
		URL:    "https://ftp.example/pub/firefox/releases/121.0/win64/en-US/Firefox%20Setup%20121.0.exe",
		Target: filepath.Join(dir, "firefox.exe"),
		Dir:    dir,
		OS:     platform.Windows,
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMaterializeDownloadErrorPropagates(t *testing.T) {
	dl := &fakeDownloader{err: errors.New("connection reset")}
	p, root := newPipeline(t, dl)

	_, ok, err := p.Materialize(context.Background(), Request{
		Name:   "msedgedriver",
		URL:    "https://msedgedriver.example/120.0.2210.91/edgedriver_linux64.zip",
		Target: filepath.Join(root, "msedgedriver", "linux64", "120.0.2210.91", "msedgedriver"),
		Binary: "msedgedriver",
	})
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestMaterializeDriverMissingFromArchive(t *testing.T) {
	dl := &fakeDownloader{body: zipBytes(t, map[string]string{"Driver_Notes/credits.html": "x"})}
	p, root := newPipeline(t, dl)

	_, _, err := p.Materialize(context.Background(), Request{
		Name:   "msedgedriver",
		URL:    "https://msedgedriver.example/edgedriver_linux64.zip",
		Target: filepath.Join(root, "msedgedriver", "linux64", "1.0", "msedgedriver"),
		Binary: "msedgedriver",
	})
	assert.Error(t, err)
}

func TestArchiveNameUnescapes(t *testing.T) {
	name, err := archiveName("https://ftp.mozilla.org/pub/firefox/releases/121.0/mac/en-US/Firefox%20121.0.pkg")
	require.NoError(t, err)
	assert.Equal(t, "Firefox 121.0.pkg", name)

	_, err = archiveName("https://example.com/")
	assert.Error(t, err)
}
