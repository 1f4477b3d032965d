// Package config provides configuration management for the swarm
// agent and aggregator processes. Configuration is read from the
// environment exactly once at startup and passed by reference
// thereafter; nothing in this codebase re-reads the environment
// mid-run.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for an agent process.
type Config struct {
	// Identity / networking
	AgentIndex int
	AgentPort  int
	PeerURLs   []string

	// Persistence
	PersistenceDSN string

	// Timing
	SyncIntervalMS            int
	EngineeringStepIntervalMS int
	PeerTimeoutMS             int
	ReasoningTimeoutMS        int

	// Signal channel tuning
	PheromoneDecay  float64
	MinStrength     float64
	CriticalDensity float64
	CycleCooldown   int

	// Budget / credits
	TokenBudgetPerAgent int
	MaxSteps            int
	CreditTierT1        float64
	CreditTierT2        float64

	// Reasoning backend
	ReasoningProvider string
	ReasoningAPIURL   string
	ReasoningAPIKey   string
	ReasoningModel    string

	// Data source
	DataAPIURL string
	DataAPIKey string

	// Attestation sink
	DAProxyURL            string
	DACommitmentWriteback bool

	// Aggregator auth
	JWTIssuer   string
	JWTAudience string

	// Specialization roster override
	RosterPath string
}

// OIDCConfig is the subset of Config the aggregator's JWT gate needs.
type OIDCConfig struct {
	Issuer   string
	ClientID string
}

// OIDC builds the aggregator's JWT gate view of the loaded Config.
// Auth is enabled only when JWTAudience (the ClientID) is configured.
func (c *Config) OIDC() OIDCConfig {
	return OIDCConfig{Issuer: c.JWTIssuer, ClientID: c.JWTAudience}
}

// SyncInterval returns the tick cadence as a time.Duration.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMS) * time.Millisecond
}

// PeerTimeout returns the per-peer RPC deadline as a time.Duration.
func (c *Config) PeerTimeout() time.Duration {
	return time.Duration(c.PeerTimeoutMS) * time.Millisecond
}

// ReasoningTimeout returns the reasoning-backend call deadline.
func (c *Config) ReasoningTimeout() time.Duration {
	return time.Duration(c.ReasoningTimeoutMS) * time.Millisecond
}

// OverridesPathEnv names the env var cmd/ entrypoints check for a YAML
// overrides file to layer on top of Load via LoadWithOverrides.
const OverridesPathEnv = "CONFIG_OVERRIDES_PATH"

// Load reads configuration from environment variables with sensible
// defaults.
func Load() *Config {
	agentIndex := getEnvAsInt("AGENT_INDEX", 0)
	return &Config{
		AgentIndex: agentIndex,
		AgentPort:  getEnvAsInt("AGENT_PORT", 3001+agentIndex),
		PeerURLs:   getEnvAsList("PEER_URLS"),

		PersistenceDSN: getEnv("PERSISTENCE_DSN", getEnv("DB_PATH", "")),

		SyncIntervalMS:            getEnvAsInt("SYNC_INTERVAL_MS", 2000),
		EngineeringStepIntervalMS: getEnvAsInt("ENGINEERING_STEP_INTERVAL_MS", 10000),
		PeerTimeoutMS:             getEnvAsInt("PEER_TIMEOUT_MS", 3000),
		ReasoningTimeoutMS:        getEnvAsInt("REASONING_TIMEOUT_MS", 30000),

		PheromoneDecay:  getEnvAsFloat("PHEROMONE_DECAY", 0.12),
		MinStrength:     getEnvAsFloat("MIN_STRENGTH", 0.05),
		CriticalDensity: getEnvAsFloat("CRITICAL_DENSITY", 0.55),
		CycleCooldown:   getEnvAsInt("CYCLE_COOLDOWN", 18),

		TokenBudgetPerAgent: getEnvAsInt("TOKEN_BUDGET_PER_AGENT", 50000),
		MaxSteps:            getEnvAsInt("MAX_STEPS", 0),
		CreditTierT1:        getEnvAsFloat("CREDIT_TIER_T1", 500),
		CreditTierT2:        getEnvAsFloat("CREDIT_TIER_T2", 100),

		ReasoningProvider: getEnv("REASONING_PROVIDER", ""),
		ReasoningAPIURL:   getEnv("REASONING_API_URL", ""),
		ReasoningAPIKey:   getEnv("REASONING_API_KEY", ""),
		ReasoningModel:    getEnv("REASONING_MODEL", ""),

		DataAPIURL: getEnv("DATA_API_URL", "https://api.nasa.gov"),
		DataAPIKey: getEnv("DATA_API_KEY", ""),

		DAProxyURL:            getEnv("DA_PROXY_URL", ""),
		DACommitmentWriteback: getEnvAsBool("DA_COMMITMENT_WRITEBACK", false),

		JWTIssuer:   getEnv("JWT_ISSUER", ""),
		JWTAudience: getEnv("JWT_AUDIENCE", ""),

		RosterPath: getEnv("ROSTER_PATH", ""),
	}
}

// LoadWithOverrides calls Load and then applies a YAML overrides file
// on top. Env vars still form the baseline; the overrides file is for
// values operators want checked into version control rather than set
// per-process. Read once, at startup, never again.
func LoadWithOverrides(path string) (*Config, error) {
	cfg := Load()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var o configOverrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, err
	}
	o.applyTo(cfg)
	return cfg, nil
}

// configOverrides is the subset of Config tunables an operator may want
// to pin via a checked-in file rather than the environment. Pointer
// fields distinguish "absent from the file" from "zero value".
type configOverrides struct {
	PheromoneDecay      *float64 `yaml:"pheromone_decay"`
	MinStrength         *float64 `yaml:"min_strength"`
	CriticalDensity     *float64 `yaml:"critical_density"`
	CycleCooldown       *int     `yaml:"cycle_cooldown"`
	TokenBudgetPerAgent *int     `yaml:"token_budget_per_agent"`
	CreditTierT1        *float64 `yaml:"credit_tier_t1"`
	CreditTierT2        *float64 `yaml:"credit_tier_t2"`
	SyncIntervalMS      *int     `yaml:"sync_interval_ms"`
}

func (o *configOverrides) applyTo(c *Config) {
	if o.PheromoneDecay != nil {
		c.PheromoneDecay = *o.PheromoneDecay
	}
	if o.MinStrength != nil {
		c.MinStrength = *o.MinStrength
	}
	if o.CriticalDensity != nil {
		c.CriticalDensity = *o.CriticalDensity
	}
	if o.CycleCooldown != nil {
		c.CycleCooldown = *o.CycleCooldown
	}
	if o.TokenBudgetPerAgent != nil {
		c.TokenBudgetPerAgent = *o.TokenBudgetPerAgent
	}
	if o.CreditTierT1 != nil {
		c.CreditTierT1 = *o.CreditTierT1
	}
	if o.CreditTierT2 != nil {
		c.CreditTierT2 = *o.CreditTierT2
	}
	if o.SyncIntervalMS != nil {
		c.SyncIntervalMS = *o.SyncIntervalMS
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float64 or returns a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a bool or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated environment variable into a
// trimmed, non-empty slice of strings.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
