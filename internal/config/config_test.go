package config

import (
	"os"
	"testing"
)

func clearSwarmEnv() {
	for _, k := range []string{
		"AGENT_INDEX", "AGENT_PORT", "PEER_URLS", "SYNC_INTERVAL_MS",
		"PHEROMONE_DECAY", "CRITICAL_DENSITY", "TOKEN_BUDGET_PER_AGENT",
		"MAX_STEPS", "DA_PROXY_URL", "DA_COMMITMENT_WRITEBACK", "JWT_ISSUER",
	} {
		os.Unsetenv(k)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	clearSwarmEnv()

	cfg := Load()

	if cfg.AgentPort != 3001 {
		t.Errorf("expected default agent port 3001, got %d", cfg.AgentPort)
	}
	if cfg.PheromoneDecay != 0.12 {
		t.Errorf("expected default decay 0.12, got %v", cfg.PheromoneDecay)
	}
	if cfg.CriticalDensity != 0.55 {
		t.Errorf("expected default critical density 0.55, got %v", cfg.CriticalDensity)
	}
	if cfg.TokenBudgetPerAgent != 50000 {
		t.Errorf("expected default token budget 50000, got %d", cfg.TokenBudgetPerAgent)
	}
	if cfg.MaxSteps != 0 {
		t.Errorf("expected default max steps 0 (infinite), got %d", cfg.MaxSteps)
	}
	if cfg.DACommitmentWriteback {
		t.Errorf("expected DA commitment writeback disabled by default")
	}
	if len(cfg.PeerURLs) != 0 {
		t.Errorf("expected no peer URLs by default, got %v", cfg.PeerURLs)
	}
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	clearSwarmEnv()
	os.Setenv("AGENT_INDEX", "3")
	os.Setenv("PEER_URLS", "http://a:3001, http://b:3002,,http://c:3003")
	os.Setenv("CRITICAL_DENSITY", "0.7")
	os.Setenv("DA_COMMITMENT_WRITEBACK", "true")
	defer clearSwarmEnv()

	cfg := Load()

	if cfg.AgentIndex != 3 {
		t.Errorf("expected agent index 3, got %d", cfg.AgentIndex)
	}
	if cfg.AgentPort != 3004 {
		t.Errorf("expected derived agent port 3001+index=3004, got %d", cfg.AgentPort)
	}
	want := []string{"http://a:3001", "http://b:3002", "http://c:3003"}
	if len(cfg.PeerURLs) != len(want) {
		t.Fatalf("expected %d peer URLs, got %v", len(want), cfg.PeerURLs)
	}
	for i, w := range want {
		if cfg.PeerURLs[i] != w {
			t.Errorf("peer %d: expected %q, got %q", i, w, cfg.PeerURLs[i])
		}
	}
	if cfg.CriticalDensity != 0.7 {
		t.Errorf("expected critical density 0.7, got %v", cfg.CriticalDensity)
	}
	if !cfg.DACommitmentWriteback {
		t.Errorf("expected DA commitment writeback enabled")
	}
}

func TestLoadWithInvalidNumeric(t *testing.T) {
	clearSwarmEnv()
	os.Setenv("AGENT_PORT", "not-a-number")
	defer os.Unsetenv("AGENT_PORT")

	cfg := Load()

	if cfg.AgentPort != 3001 {
		t.Errorf("expected fallback to default port 3001, got %d", cfg.AgentPort)
	}
}

func TestLoadWithOverridesFile(t *testing.T) {
	clearSwarmEnv()

	dir := t.TempDir()
	path := dir + "/overrides.yaml"
	yamlBody := "pheromone_decay: 0.2\ncritical_density: 0.8\ntoken_budget_per_agent: 1000\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o600); err != nil {
		t.Fatalf("write overrides file: %v", err)
	}

	cfg, err := LoadWithOverrides(path)
	if err != nil {
		t.Fatalf("LoadWithOverrides: %v", err)
	}
	if cfg.PheromoneDecay != 0.2 {
		t.Errorf("expected overridden decay 0.2, got %v", cfg.PheromoneDecay)
	}
	if cfg.CriticalDensity != 0.8 {
		t.Errorf("expected overridden critical density 0.8, got %v", cfg.CriticalDensity)
	}
	if cfg.TokenBudgetPerAgent != 1000 {
		t.Errorf("expected overridden token budget 1000, got %d", cfg.TokenBudgetPerAgent)
	}
	// Fields absent from the file keep their env/default value.
	if cfg.MinStrength != 0.05 {
		t.Errorf("expected untouched min strength 0.05, got %v", cfg.MinStrength)
	}
}

func TestLoadWithOverridesEmptyPath(t *testing.T) {
	clearSwarmEnv()

	cfg, err := LoadWithOverrides("")
	if err != nil {
		t.Fatalf("LoadWithOverrides(\"\"): %v", err)
	}
	if cfg.PheromoneDecay != 0.12 {
		t.Errorf("expected default decay with no overrides file, got %v", cfg.PheromoneDecay)
	}
}

func TestLoadWithOverridesMissingFile(t *testing.T) {
	clearSwarmEnv()

	if _, err := LoadWithOverrides("/nonexistent/overrides.yaml"); err == nil {
		t.Errorf("expected error for missing overrides file")
	}
}
