package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"drivermgr/internal/platform"
)

const (
	cacheEnvVar      = "DRIVERMGR_CACHE_PATH"
	metadataFileName = "metadata.json"
	downloadsDirName = "downloads"
)

// CachePaths captures canonical locations under a cache root.
type CachePaths struct {
	Root         string
	MetadataFile string
	DownloadsDir string
}

// Resolve determines the cache root using the optional override, then the
// DRIVERMGR_CACHE_PATH environment variable, then the per-user default.
func Resolve(override string) (CachePaths, error) {
	root, err := cacheRoot(override)
	if err != nil {
		return CachePaths{}, err
	}
	return newCachePaths(root), nil
}

func newCachePaths(root string) CachePaths {
	return CachePaths{
		Root:         root,
		MetadataFile: filepath.Join(root, metadataFileName),
		DownloadsDir: filepath.Join(root, downloadsDirName),
	}
}

func cacheRoot(override string) (string, error) {
	if override == "" {
		override = os.Getenv(cacheEnvVar)
	}
	if override != "" {
		abs, err := filepath.Abs(override)
		if err != nil {
			return "", fmt.Errorf("resolve cache path: %w", err)
		}
		return abs, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("detect user home: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "drivermgr"), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "drivermgr"), nil
		}
		return filepath.Join(home, "AppData", "Local", "drivermgr"), nil
	default:
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "drivermgr"), nil
		}
		return filepath.Join(home, ".cache", "drivermgr"), nil
	}
}

// DriverPath returns the deterministic location of a driver binary:
// <root>/<driver>/<label>/<version>/<driver>[.exe].
func (p CachePaths) DriverPath(driver string, goos platform.OS, label, version string) string {
	return filepath.Join(p.Root, driver, label, version, goos.Executable(driver))
}

// BrowserDir returns the directory a browser archive is unpacked into:
// <root>/<browser>/<label>/<version>.
func (p CachePaths) BrowserDir(browser, label, version string) string {
	return filepath.Join(p.Root, browser, label, version)
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Exists reports whether anything exists at path. App bundles are
// directories, so callers that only care about presence use this.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
