package agent

import (
	"fmt"
	"math/rand"

	"github.com/pheromone-collective/swarm/internal/credits"
	"github.com/pheromone-collective/swarm/internal/decision"
	"github.com/pheromone-collective/swarm/internal/identity"
	"github.com/pheromone-collective/swarm/pkg/wire"
)

// Thought is a reasoning artifact produced by a deep step.
type Thought struct {
	ID               string
	ProducerID       string
	Trigger          string
	Observation      string
	Reasoning        string
	Conclusion       string
	SuggestedActions []string
	Confidence       float64
	Timestamp        int64
	Topic            string // not on the wire type; used internally for ShareFinding/Correlate bookkeeping
}

func (t Thought) ToWire() wire.Thought {
	return wire.Thought{
		ID: t.ID, ProducerID: t.ProducerID, Trigger: t.Trigger,
		Observation: t.Observation, Reasoning: t.Reasoning, Conclusion: t.Conclusion,
		SuggestedActions: t.SuggestedActions, Confidence: t.Confidence, Timestamp: t.Timestamp,
	}
}

func (t Thought) ToDigest() decision.ThoughtDigest {
	return decision.ThoughtDigest{
		Topic: t.Topic, Conclusion: t.Conclusion, Confidence: t.Confidence,
		SuggestedActions: t.SuggestedActions,
	}
}

// Decision statuses.
const (
	StatusExecuting = "executing"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Decision is an executed or in-flight decision record.
type Decision struct {
	ID         string
	Action     decision.Action
	ActionType decision.ActionKind
	Priority   float64
	Status     string
	CreatedAt  int64
	FinishedAt int64
	Error      string
}

func (d Decision) ToWire() wire.Decision {
	return wire.Decision{
		ID: d.ID, ActionType: string(d.ActionType), Priority: d.Priority,
		Status: d.Status, CreatedAt: d.CreatedAt, FinishedAt: d.FinishedAt, Error: d.Error,
	}
}

// Position is a 2D point clamped to the configured world rectangle.
type Position struct{ X, Y float64 }

// Velocity is a 2D vector, damped each tick.
type Velocity struct{ X, Y float64 }

// State is an agent's exclusively-owned mutable state. No cross-agent
// write is ever performed on this struct; the HTTP layer reads it only
// through Snapshot, which copies out under RLock.
type State struct {
	ID             string
	Name           string
	Personality    decision.Personality
	Specialization string
	Domain         string

	Position Position
	Velocity Velocity
	Energy   float64

	Synchronized bool
	Absorbed     map[string]bool // set<SignalId>

	Thoughts        []Thought
	Decisions       []Decision
	CurrentDecision *Decision

	AnalyzedTopics map[string]bool // topics with a cached dataset
	TokensUsed     int
	TokenBudget    int
	Credits        *credits.Credits

	Identity *identity.Identity

	StepCount                 int
	Discoveries               int
	ContributionsToCollective int
}

// NewState constructs a fresh agent at agentIndex, seeding personality
// from the roster and jittering each scalar by up to ±0.04.
func NewState(agentIndex int, tokenBudget int, startingCredits float64, thresholds credits.Thresholds, r *rand.Rand, roster []Specialization) (*State, error) {
	if roster == nil {
		roster = SpecializationRoster
	}
	spec := roster[agentIndex%len(roster)]
	id, err := identity.New()
	if err != nil {
		return nil, fmt.Errorf("agent: generate identity: %w", err)
	}

	return &State{
		ID:             fmt.Sprintf("agent-%d", agentIndex),
		Name:           fmt.Sprintf("%s-%d", spec.Name, agentIndex),
		Personality:    jitter(spec.SeedPersonality, r),
		Specialization: spec.Name,
		Domain:         spec.Domain,
		Position:       Position{},
		Velocity:       Velocity{},
		Energy:         0.5,
		Absorbed:       make(map[string]bool),
		AnalyzedTopics: make(map[string]bool),
		TokenBudget:    tokenBudget,
		Credits:        credits.New(startingCredits, thresholds),
		Identity:       id,
	}, nil
}

func jitter(p decision.Personality, r *rand.Rand) decision.Personality {
	if r == nil {
		return p
	}
	return decision.Personality{
		Curiosity:   clamp01(p.Curiosity + jitterDelta(r)),
		Diligence:   clamp01(p.Diligence + jitterDelta(r)),
		Boldness:    clamp01(p.Boldness + jitterDelta(r)),
		Sociability: clamp01(p.Sociability + jitterDelta(r)),
	}
}

func jitterDelta(r *rand.Rand) float64 {
	return (r.Float64()*2 - 1) * 0.04
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Snapshot returns a value copy of the fields GET /state exposes, safe
// to read without holding the loop's
// lock for longer than the copy itself. density/criticalThreshold/
// transitioned come from the agent's signal.Channel, which is read
// independently under its own mutex.
func (s *State) Snapshot(density, criticalThreshold float64, transitioned bool) wire.State {
	var latest *wire.Thought
	if n := len(s.Thoughts); n > 0 {
		w := s.Thoughts[n-1].ToWire()
		latest = &w
	}
	return wire.State{
		ID:                      s.ID,
		Name:                    s.Name,
		Step:                    s.StepCount,
		Density:                 density,
		CriticalThreshold:       criticalThreshold,
		PhaseTransitionOccurred: transitioned,
		Synchronized:            s.Synchronized,
		Discoveries:             s.Discoveries,
		TokensUsed:              s.TokensUsed,
		TokenBudget:             s.TokenBudget,
		ThoughtCount:            len(s.Thoughts),
		LatestThought:           latest,
		CreditBalance:           s.Credits.Balance,
		CreditTier:              string(s.Credits.Tier()),
		Identity: wire.Identity{
			AgentID:     s.ID,
			Name:        s.Name,
			PublicKey:   s.Identity.PublicKeyHex(),
			Fingerprint: s.Identity.Fingerprint,
		},
	}
}
