package scope

import (
	"os"
	"path/filepath"
	"testing"
)

func writeScope(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scope.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeScope(t, `name: mobile-ci
universe:
  - apps//mobile/...
  - libs//ui:
`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Name != "mobile-ci" {
		t.Errorf("Name = %q", s.Name)
	}
	patterns, err := s.Patterns()
	if err != nil {
		t.Fatalf("Patterns() error = %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(patterns))
	}
	if !patterns[0].Matches("apps//mobile/app:main") {
		t.Error("recursive pattern should match nested target")
	}
}

func TestLoadRejectsEmptyUniverse(t *testing.T) {
	path := writeScope(t, "name: empty\n")
	if _, err := Load(path); err == nil {
		t.Error("scope without universe should be rejected")
	}
}

func TestParseUniverseRejectsExplicitTargets(t *testing.T) {
	if _, err := ParseUniverse([]string{"apps//mobile:app"}); err == nil {
		t.Error("explicit target should be rejected")
	}
	if _, err := ParseUniverse([]string{"//mobile/..."}); err == nil {
		t.Error("missing cell qualifier should be rejected")
	}
}
