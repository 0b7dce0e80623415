package version

import (
	"testing"

	"drivermgr/internal/platform"
)

func TestMajorMinor(t *testing.T) {
	tests := []struct {
		input string
		major string
		minor string
	}{
		{"120.0.6099.109", "120", "0"},
		{"0.32.0", "0", "32"},
		{"121", "121", ""},
		{"", "", ""},
		{"beta", "beta", ""},
	}

	for _, tt := range tests {
		if got := Major(tt.input); got != tt.major {
			t.Errorf("Major(%q) = %q, want %q", tt.input, got, tt.major)
		}
		if got := Minor(tt.input); got != tt.minor {
			t.Errorf("Minor(%q) = %q, want %q", tt.input, got, tt.minor)
		}
	}
}

func TestMinorInt(t *testing.T) {
	if got := MinorInt("0.32.0"); got != 32 {
		t.Errorf("MinorInt = %d, want 32", got)
	}
	if got := MinorInt("garbage"); got != 0 {
		t.Errorf("MinorInt(garbage) = %d, want 0", got)
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Mozilla Firefox 121.0", "121.0"},
		{"Google Chrome 120.0.6099.109 \n", "120.0.6099.109"},
		{"Microsoft Edge 120.0.2210.91 unknown", "120.0.2210.91"},
		{"no version here", ""},
	}

	for _, tt := range tests {
		if got := Extract(tt.input); got != tt.want {
			t.Errorf("Extract(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestMeetsMinimum(t *testing.T) {
	tests := []struct {
		version, minimum string
		want             bool
	}{
		{"115.0", "115", true},
		{"114.9.9", "115", false},
		{"0.32.0", "0.31.1", true},
		{"", "1.0", false},
		{"1.0", "", true},
	}

	for _, tt := range tests {
		if got := MeetsMinimum(tt.version, tt.minimum); got != tt.want {
			t.Errorf("MeetsMinimum(%q, %q) = %v, want %v", tt.version, tt.minimum, got, tt.want)
		}
	}
}

func TestClassifyIsTotal(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "stable"},
		{"stable", "stable"},
		{"STABLE", "stable"},
		{"beta", "beta"},
		{"dev", "dev"},
		{"nightly", "nightly"},
		{"canary", "nightly"},
		{"120", "pinned"},
		{"120.0.6099.109", "pinned"},
		{"whatever", "pinned"},
	}

	for _, tt := range tests {
		if got := Classify(tt.input, DefaultMarkers).String(); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestClassifyCustomMarkers(t *testing.T) {
	m := Markers{Dev: []string{"devedition"}, Nightly: []string{"nightly"}}
	c := Classify("devedition", m)
	if c.Pinned || c.Channel != platform.Dev {
		t.Fatalf("expected dev channel, got %v", c)
	}
	if c := Classify("canary", m); !c.Pinned {
		t.Fatalf("canary should be pinned without a nightly marker, got %v", c)
	}
	if !Classify("beta", DefaultMarkers).IsUnstable() {
		t.Fatal("beta should be unstable")
	}
	if !Classify("", DefaultMarkers).IsStable() {
		t.Fatal("empty request should be stable")
	}
}
