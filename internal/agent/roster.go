// Package agent implements the per-tick control loop: absorb, decide a
// mode, run a deep or light step, emit, check sync, and reset the
// cycle after a phase transition cools down.
package agent

import (
	"fmt"
	"os"

	"github.com/pheromone-collective/swarm/internal/decision"
	"gopkg.in/yaml.v3"
)

// Specialization is one entry in the seed roster new agents are drawn
// from, cycling by index.
type Specialization struct {
	Name            string `yaml:"name"`
	Domain          string `yaml:"domain"`
	SeedPersonality decision.Personality
	PersonalityYAML personalitySeed `yaml:"personality"`
}

// personalitySeed keeps roster.yaml reading as plain scalars rather
// than reusing decision.Personality's JSON tags.
type personalitySeed struct {
	Curiosity   float64 `yaml:"curiosity"`
	Diligence   float64 `yaml:"diligence"`
	Boldness    float64 `yaml:"boldness"`
	Sociability float64 `yaml:"sociability"`
}

// rosterManifest is a thin wrapper so the file has a version header
// above the list of entries.
type rosterManifest struct {
	Version         string          `yaml:"version"`
	Specializations []Specialization `yaml:"specializations"`
}

// SpecializationRoster is a fixed slice of value structs consulted by
// index, not a registry with lifecycle. Curiosity-leaning roles seed
// higher curiosity, and so on, so the swarm's aggregate personality is
// not uniform.
var SpecializationRoster = []Specialization{
	{
		Name:   "Astrophysicist",
		Domain: "astrophysics",
		SeedPersonality: decision.Personality{
			Curiosity: 0.8, Diligence: 0.55, Boldness: 0.6, Sociability: 0.45,
		},
	},
	{
		Name:   "Heliophysicist",
		Domain: "heliophysics",
		SeedPersonality: decision.Personality{
			Curiosity: 0.65, Diligence: 0.7, Boldness: 0.4, Sociability: 0.5,
		},
	},
	{
		Name:   "Exoplanet Surveyor",
		Domain: "exoplanets",
		SeedPersonality: decision.Personality{
			Curiosity: 0.85, Diligence: 0.5, Boldness: 0.7, Sociability: 0.4,
		},
	},
	{
		Name:   "Climatologist",
		Domain: "climate",
		SeedPersonality: decision.Personality{
			Curiosity: 0.55, Diligence: 0.75, Boldness: 0.35, Sociability: 0.6,
		},
	},
	{
		Name:   "Seismologist",
		Domain: "seismology",
		SeedPersonality: decision.Personality{
			Curiosity: 0.5, Diligence: 0.8, Boldness: 0.45, Sociability: 0.5,
		},
	},
}

// SpecializationFor returns the roster entry for agentIndex, cycling
// through the roster when there are more agents than specializations.
func SpecializationFor(agentIndex int) Specialization {
	return SpecializationRoster[agentIndex%len(SpecializationRoster)]
}

// LoadRosterManifest reads and parses a roster.yaml override.
func LoadRosterManifest(path string) (*rosterManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster manifest: %w", err)
	}
	var manifest rosterManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse roster manifest YAML: %w", err)
	}
	return &manifest, nil
}

// ValidateRosterManifest checks that a manifest has at least one
// specialization and every entry names a distinct domain.
func ValidateRosterManifest(manifest *rosterManifest) error {
	if len(manifest.Specializations) == 0 {
		return fmt.Errorf("roster manifest has no specializations")
	}
	seen := make(map[string]bool, len(manifest.Specializations))
	for i, s := range manifest.Specializations {
		if s.Name == "" {
			return fmt.Errorf("specialization %d missing name", i)
		}
		if s.Domain == "" {
			return fmt.Errorf("specialization %q missing domain", s.Name)
		}
		if seen[s.Domain] {
			return fmt.Errorf("duplicate domain %q in roster manifest", s.Domain)
		}
		seen[s.Domain] = true
	}
	return nil
}

// RosterFromManifest loads, validates, and flattens a roster.yaml
// override into the seed-personality table SpecializationFor reads
// from, replacing the hardcoded SpecializationRoster wholesale.
func RosterFromManifest(path string) ([]Specialization, error) {
	manifest, err := LoadRosterManifest(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateRosterManifest(manifest); err != nil {
		return nil, err
	}
	out := make([]Specialization, len(manifest.Specializations))
	for i, s := range manifest.Specializations {
		out[i] = Specialization{
			Name:   s.Name,
			Domain: s.Domain,
			SeedPersonality: decision.Personality{
				Curiosity:   s.PersonalityYAML.Curiosity,
				Diligence:   s.PersonalityYAML.Diligence,
				Boldness:    s.PersonalityYAML.Boldness,
				Sociability: s.PersonalityYAML.Sociability,
			},
		}
	}
	return out, nil
}

// LoadRoster returns the roster.yaml override at path if set and
// readable, else falls back to SpecializationRoster. Decided once at
// startup, never re-read mid-run.
func LoadRoster(path string) []Specialization {
	if path == "" {
		return SpecializationRoster
	}
	roster, err := RosterFromManifest(path)
	if err != nil {
		return SpecializationRoster
	}
	return roster
}
