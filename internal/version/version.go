package version

import (
	"regexp"
	"strconv"
	"strings"

	"drivermgr/internal/platform"
)

// Major returns the substring before the first dot. A version without a dot
// is its own major version.
func Major(version string) string {
	version = strings.TrimSpace(version)
	if idx := strings.IndexByte(version, '.'); idx >= 0 {
		return version[:idx]
	}
	return version
}

// Minor returns the substring between the first and second dot, or "" when
// the version has no minor component.
func Minor(version string) string {
	parts := strings.SplitN(strings.TrimSpace(version), ".", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// MinorInt parses the minor component, returning 0 when it is missing or not
// numeric.
func MinorInt(version string) int {
	n, err := strconv.Atoi(Minor(version))
	if err != nil {
		return 0
	}
	return n
}

// MajorInt parses the major component, returning 0 when it is not numeric.
func MajorInt(version string) int {
	n, err := strconv.Atoi(Major(version))
	if err != nil {
		return 0
	}
	return n
}

var versionRegex = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)+`)

// Extract pulls the first dotted version out of free-form output such as
// "Mozilla Firefox 121.0" or "Google Chrome 120.0.6099.109 ".
func Extract(output string) string {
	return versionRegex.FindString(firstLine(strings.TrimSpace(output)))
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return text[:idx]
	}
	return text
}

// MeetsMinimum reports whether version is at least minimum, comparing the
// numeric components pairwise.
func MeetsMinimum(version, minimum string) bool {
	if minimum == "" {
		return true
	}
	if version == "" {
		return false
	}

	vParts := numericParts(version)
	mParts := numericParts(minimum)
	for len(vParts) < len(mParts) {
		vParts = append(vParts, 0)
	}
	for len(mParts) < len(vParts) {
		mParts = append(mParts, 0)
	}
	for i := 0; i < len(vParts); i++ {
		if vParts[i] > mParts[i] {
			return true
		}
		if vParts[i] < mParts[i] {
			return false
		}
	}
	return true
}

func numericParts(version string) []int {
	var parts []int
	current := strings.Builder{}
	for _, r := range version {
		if r >= '0' && r <= '9' {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			val, _ := strconv.Atoi(current.String())
			parts = append(parts, val)
			current.Reset()
		}
	}
	if current.Len() > 0 {
		val, _ := strconv.Atoi(current.String())
		parts = append(parts, val)
	}
	return parts
}

// Class is the outcome of classifying a requested browser version.
type Class struct {
	// Pinned is true when the request names a concrete version rather than a
	// release channel. Channel is meaningless in that case.
	Pinned  bool
	Channel platform.Channel
}

func (c Class) String() string {
	if c.Pinned {
		return "pinned"
	}
	return c.Channel.String()
}

// Markers lists the request strings that select each unstable channel.
type Markers struct {
	Beta    []string
	Dev     []string
	Nightly []string
}

// DefaultMarkers is shared by all vendors unless they override it.
var DefaultMarkers = Markers{
	Beta:    []string{"beta"},
	Dev:     []string{"dev"},
	Nightly: []string{"nightly", "canary"},
}

// Classify maps a requested browser version to exactly one of Stable, Beta,
// Dev, Nightly or a pinned version.
func Classify(requested string, m Markers) Class {
	v := strings.ToLower(strings.TrimSpace(requested))
	switch {
	case v == "" || v == "stable":
		return Class{Channel: platform.Stable}
	case matches(v, m.Beta):
		return Class{Channel: platform.Beta}
	case matches(v, m.Dev):
		return Class{Channel: platform.Dev}
	case matches(v, m.Nightly):
		return Class{Channel: platform.Nightly}
	default:
		return Class{Pinned: true}
	}
}

// IsUnstable reports whether the class is a non-stable channel.
func (c Class) IsUnstable() bool {
	return !c.Pinned && c.Channel != platform.Stable
}

// IsStable reports whether the class is the stable channel.
func (c Class) IsStable() bool {
	return !c.Pinned && c.Channel == platform.Stable
}

func matches(v string, markers []string) bool {
	for _, m := range markers {
		if v == strings.ToLower(m) {
			return true
		}
	}
	return false
}
