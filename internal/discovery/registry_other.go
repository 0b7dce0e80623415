//go:build !windows

package discovery

import "errors"

func readRegistry(string, string) (string, error) {
	return "", errors.New("registry unavailable on this platform")
}
