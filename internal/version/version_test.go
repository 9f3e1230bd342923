package version_test

import (
	"strings"
	"testing"

	"github.com/fatih/color"

	"mirvm/internal/version"
)

func TestPlain(t *testing.T) {
	if got := version.Plain(); got != "0.3.0-dev" {
		t.Fatalf("expected 0.3.0-dev, got %q", got)
	}
}

func TestColoredWithoutTerminal(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = orig }()

	if got := version.Colored(); got != version.Plain() {
		t.Fatalf("expected uncolored %q, got %q", version.Plain(), got)
	}
}

func TestColoredWithTerminal(t *testing.T) {
	orig := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = orig }()

	got := version.Colored()
	if !strings.Contains(got, "\x1b[") {
		t.Fatalf("expected ANSI escapes, got %q", got)
	}
}

func TestBanner(t *testing.T) {
	origCommit, origDate := version.GitCommit, version.BuildDate
	defer func() { version.GitCommit, version.BuildDate = origCommit, origDate }()

	tests := []struct {
		commit, date string
		want         string
	}{
		{"", "", "mirvm 0.3.0-dev"},
		{"0123456789abcdef", "", "mirvm 0.3.0-dev (0123456789ab)"},
		{"abc", "2026-01-02", "mirvm 0.3.0-dev (abc, 2026-01-02)"},
	}
	for _, tt := range tests {
		version.GitCommit, version.BuildDate = tt.commit, tt.date
		if got := version.Banner(false); got != tt.want {
			t.Fatalf("expected %q, got %q", tt.want, got)
		}
	}
}
