//go:build windows

package discovery

import (
	"fmt"
	"strings"

	"golang.org/x/sys/windows/registry"
)

var hives = map[string]registry.Key{
	"HKCU":               registry.CURRENT_USER,
	"HKEY_CURRENT_USER":  registry.CURRENT_USER,
	"HKLM":               registry.LOCAL_MACHINE,
	"HKEY_LOCAL_MACHINE": registry.LOCAL_MACHINE,
}

func readRegistry(key, value string) (string, error) {
	hiveName, subKey, ok := strings.Cut(key, `\`)
	if !ok {
		return "", fmt.Errorf("malformed registry key %q", key)
	}
	hive, ok := hives[strings.ToUpper(hiveName)]
	if !ok {
		return "", fmt.Errorf("unknown registry hive %q", hiveName)
	}

	k, err := registry.OpenKey(hive, subKey, registry.QUERY_VALUE)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", key, err)
	}
	defer k.Close()

	v, _, err := k.GetStringValue(value)
	if err != nil {
		return "", fmt.Errorf("read %s\\%s: %w", key, value, err)
	}
	return v, nil
}
