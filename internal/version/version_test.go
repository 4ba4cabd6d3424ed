package version

import (
	"strings"
	"testing"
)

func TestString_Dirty(t *testing.T) {
	oldVersion, oldDirty := Version, Dirty
	defer func() { Version, Dirty = oldVersion, oldDirty }()

	Version, Dirty = "1.2.0", "false"
	if got := String(); got != "1.2.0" {
		t.Errorf("String() = %q", got)
	}
	if got := UserAgent(); got != "sopgen/1.2.0" {
		t.Errorf("UserAgent() = %q", got)
	}

	Dirty = "true"
	if got := String(); got != "1.2.0-dirty" {
		t.Errorf("String() = %q", got)
	}
	if !Get().Dirty {
		t.Error("Get().Dirty = false")
	}
}

func TestFull(t *testing.T) {
	out := Full()
	if !strings.HasPrefix(out, "sopgen ") {
		t.Errorf("Full() should start with the program name, got %q", out)
	}
	for _, want := range []string{"Commit:", "Built:", "Go version:", "OS/Arch:"} {
		if !strings.Contains(out, want) {
			t.Errorf("Full() missing %q", want)
		}
	}
}
