package agent

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSpecializationRosterDefault(t *testing.T) {
	if len(SpecializationRoster) != 5 {
		t.Errorf("expected 5 canonical specializations, got %d", len(SpecializationRoster))
	}
	seen := make(map[string]bool)
	for _, s := range SpecializationRoster {
		if s.Name == "" || s.Domain == "" {
			t.Errorf("specialization %+v missing name or domain", s)
		}
		if seen[s.Domain] {
			t.Errorf("duplicate domain %q in default roster", s.Domain)
		}
		seen[s.Domain] = true
	}
}

func TestSpecializationForCyclesRoster(t *testing.T) {
	got := SpecializationFor(len(SpecializationRoster))
	want := SpecializationRoster[0]
	if got.Name != want.Name {
		t.Errorf("expected cycling back to %q, got %q", want.Name, got.Name)
	}
}

func writeRosterManifest(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write roster manifest: %v", err)
	}
	return path
}

func TestLoadRosterManifest(t *testing.T) {
	path := writeRosterManifest(t, `
version: "1"
specializations:
  - name: Volcanologist
    domain: volcanology
    personality:
      curiosity: 0.7
      diligence: 0.6
      boldness: 0.5
      sociability: 0.4
`)

	manifest, err := LoadRosterManifest(path)
	if err != nil {
		t.Fatalf("LoadRosterManifest: %v", err)
	}
	if len(manifest.Specializations) != 1 {
		t.Fatalf("expected 1 specialization, got %d", len(manifest.Specializations))
	}
	if manifest.Specializations[0].Name != "Volcanologist" {
		t.Errorf("expected Volcanologist, got %q", manifest.Specializations[0].Name)
	}
}

func TestValidateRosterManifestRejectsEmpty(t *testing.T) {
	if err := ValidateRosterManifest(&rosterManifest{}); err == nil {
		t.Error("expected error for manifest with no specializations")
	}
}

func TestValidateRosterManifestRejectsDuplicateDomain(t *testing.T) {
	manifest := &rosterManifest{Specializations: []Specialization{
		{Name: "A", Domain: "dup"},
		{Name: "B", Domain: "dup"},
	}}
	if err := ValidateRosterManifest(manifest); err == nil {
		t.Error("expected error for duplicate domain")
	}
}

func TestRosterFromManifest(t *testing.T) {
	path := writeRosterManifest(t, `
version: "1"
specializations:
  - name: Volcanologist
    domain: volcanology
    personality:
      curiosity: 0.7
      diligence: 0.6
      boldness: 0.5
      sociability: 0.4
  - name: Glaciologist
    domain: glaciology
    personality:
      curiosity: 0.4
      diligence: 0.8
      boldness: 0.2
      sociability: 0.3
`)

	roster, err := RosterFromManifest(path)
	if err != nil {
		t.Fatalf("RosterFromManifest: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("expected 2 specializations, got %d", len(roster))
	}
	if roster[0].SeedPersonality.Curiosity != 0.7 {
		t.Errorf("expected curiosity 0.7, got %v", roster[0].SeedPersonality.Curiosity)
	}
	if roster[1].Domain != "glaciology" {
		t.Errorf("expected second domain glaciology, got %q", roster[1].Domain)
	}
}

func TestLoadRosterFallsBackOnMissingPath(t *testing.T) {
	roster := LoadRoster("/nonexistent/roster.yaml")
	if len(roster) != len(SpecializationRoster) {
		t.Errorf("expected fallback to default roster of %d, got %d", len(SpecializationRoster), len(roster))
	}
}

func TestLoadRosterEmptyPathUsesDefault(t *testing.T) {
	roster := LoadRoster("")
	if &roster[0] != &SpecializationRoster[0] || len(roster) != len(SpecializationRoster) {
		t.Errorf("expected default roster returned for empty path")
	}
}

func TestLoadRosterUsesManifestWhenValid(t *testing.T) {
	path := writeRosterManifest(t, `
version: "1"
specializations:
  - name: Volcanologist
    domain: volcanology
    personality:
      curiosity: 0.7
      diligence: 0.6
      boldness: 0.5
      sociability: 0.4
`)

	roster := LoadRoster(path)
	if len(roster) != 1 {
		t.Fatalf("expected 1 specialization from manifest, got %d", len(roster))
	}
	if roster[0].Name != "Volcanologist" {
		t.Errorf("expected Volcanologist, got %q", roster[0].Name)
	}
}
