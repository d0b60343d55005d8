// ABOUTME: Tests for version constants
// ABOUTME: Ensures the banner carries product, version and manufacturer
package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	s := String()
	for _, want := range []string{Product, Version, Manufacturer} {
		if want == "" {
			t.Fatal("version constants must not be empty")
		}
		if !strings.Contains(s, want) {
			t.Errorf("expected %q in %q", want, s)
		}
	}
}

func TestStringFollowsOverride(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	Version = "1.2.3-test"
	if !strings.HasPrefix(String(), Product+" 1.2.3-test") {
		t.Errorf("unexpected banner %q", String())
	}
}
