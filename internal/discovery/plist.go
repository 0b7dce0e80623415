package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"
)

var errNotBundle = errors.New("not inside an app bundle")

type bundleInfo struct {
	ShortVersion string `plist:"CFBundleShortVersionString"`
	Version      string `plist:"CFBundleVersion"`
}

// bundleVersion reads the version of the .app bundle containing binary.
func bundleVersion(binary string) (string, error) {
	root := appRoot(binary)
	if root == "" {
		return "", errNotBundle
	}
	return readInfoPlist(filepath.Join(root, "Contents", "Info.plist"))
}

func appRoot(binary string) string {
	idx := strings.Index(binary, ".app"+string(filepath.Separator))
	if idx < 0 {
		if strings.HasSuffix(binary, ".app") {
			return binary
		}
		return ""
	}
	return binary[:idx+len(".app")]
}

func readInfoPlist(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open Info.plist: %w", err)
	}
	defer f.Close()

	var info bundleInfo
	if err := plist.NewDecoder(f).Decode(&info); err != nil {
		return "", fmt.Errorf("decode Info.plist: %w", err)
	}
	if info.ShortVersion != "" {
		return info.ShortVersion, nil
	}
	return info.Version, nil
}
