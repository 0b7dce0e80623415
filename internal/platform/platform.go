package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// OS is one of the operating systems drivers are published for.
type OS int

const (
	Linux OS = iota
	Windows
	MacOS
)

// ParseOS normalizes raw operating system names such as "darwin", "mac",
// "win" or "linux".
func ParseOS(s string) (OS, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linux":
		return Linux, nil
	case "windows", "win":
		return Windows, nil
	case "macos", "mac", "darwin", "osx":
		return MacOS, nil
	default:
		return Linux, fmt.Errorf("unknown os: %q: use one of windows, macos, linux", s)
	}
}

func (o OS) String() string {
	switch o {
	case Windows:
		return "windows"
	case MacOS:
		return "macos"
	default:
		return "linux"
	}
}

// Executable appends the platform executable suffix to name.
func (o OS) Executable(name string) string {
	if o == Windows {
		return name + ".exe"
	}
	return name
}

// Arch is the processor architecture of the target machine.
type Arch int

const (
	X64 Arch = iota
	X32
	ARM64
)

// ParseArch normalizes raw architecture names. Both Go (amd64, 386, arm64)
// and uname style (x86_64, i686, aarch64) spellings are accepted.
func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x86_64", "amd64", "x64":
		return X64, nil
	case "x86", "i386", "i686", "386", "x32":
		return X32, nil
	case "aarch64", "arm64":
		return ARM64, nil
	default:
		return X64, fmt.Errorf("unknown architecture: %q: use one of x86, x86_64, aarch64", s)
	}
}

func (a Arch) String() string {
	switch a {
	case X32:
		return "x86"
	case ARM64:
		return "aarch64"
	default:
		return "x86_64"
	}
}

// Channel is a browser release track.
type Channel int

const (
	Stable Channel = iota
	Beta
	Dev
	Nightly
)

// ParseChannel accepts the canonical channel names plus "canary", which is
// how Chromium based vendors name their nightly track.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stable":
		return Stable, nil
	case "beta":
		return Beta, nil
	case "dev":
		return Dev, nil
	case "nightly", "canary":
		return Nightly, nil
	default:
		return Stable, fmt.Errorf("unknown channel: %q: use one of stable, beta, dev, nightly", s)
	}
}

func (c Channel) String() string {
	switch c {
	case Beta:
		return "beta"
	case Dev:
		return "dev"
	case Nightly:
		return "nightly"
	default:
		return "stable"
	}
}

// Key identifies one cell of a per-vendor local install path table.
type Key struct {
	OS      OS
	Channel Channel
}

// Current returns the OS and architecture of the running process. Unknown
// values fall back to linux and x86_64.
func Current() (OS, Arch) {
	goos, _ := ParseOS(runtime.GOOS)
	arch, _ := ParseArch(runtime.GOARCH)
	return goos, arch
}
