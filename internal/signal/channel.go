package signal

import (
	"math"
	"sync"
)

// Default tuning constants; overridable via Config.
const (
	DefaultDecayRate   = 0.12
	DefaultMinStrength = 0.05
	// activeStrengthFloor is the threshold above which a Signal counts
	// toward density's "active" set — distinct from the prune floor.
	activeStrengthFloor = 0.1
	// saturationPerAgent scales the density denominator: a channel
	// saturates around eight active signals per participating agent.
	saturationPerAgent = 8
)

// Config tunes a Channel's decay and transition behavior.
type Config struct {
	DecayRate         float64
	MinStrength       float64
	CriticalThreshold float64
}

// Channel is the per-process view over Signals. All operations are
// infallible; the only rejection rule is dedup-by-id at Deposit. A
// single mutex serializes the inbound POST /pheromone handler against
// the agent loop's own Deposit/Decay calls.
type Channel struct {
	mu sync.Mutex

	byID  map[string]*Signal
	order []string // insertion order, preserved for trace only

	decayRate         float64
	minStrength       float64
	criticalThreshold float64

	density                 float64
	phaseTransitionOccurred bool
	transitionStep          *int
}

// New creates an empty Channel with the given tuning.
func New(cfg Config) *Channel {
	decayRate := cfg.DecayRate
	if decayRate <= 0 {
		decayRate = DefaultDecayRate
	}
	minStrength := cfg.MinStrength
	if minStrength <= 0 {
		minStrength = DefaultMinStrength
	}
	return &Channel{
		byID:              make(map[string]*Signal),
		decayRate:         decayRate,
		minStrength:       minStrength,
		criticalThreshold: cfg.CriticalThreshold,
	}
}

// Deposit appends signal if its id is not already present. Returns
// true if the signal was newly added.
func (c *Channel) Deposit(s *Signal) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.depositLocked(s)
}

func (c *Channel) depositLocked(s *Signal) bool {
	if _, exists := c.byID[s.ID]; exists {
		return false
	}
	c.byID[s.ID] = s
	c.order = append(c.order, s.ID)
	return true
}

// Decay multiplies every Signal's strength by (1 - decayRate) exactly
// once, then prunes any Signal whose strength fell to or below
// minStrength.
func (c *Channel) Decay() {
	c.mu.Lock()
	defer c.mu.Unlock()

	factor := 1 - c.decayRate
	survivors := c.order[:0:0]
	for _, id := range c.order {
		s, ok := c.byID[id]
		if !ok {
			continue
		}
		s.Strength *= factor
		if s.Strength <= c.minStrength {
			delete(c.byID, id)
			continue
		}
		survivors = append(survivors, id)
	}
	c.order = survivors
}

// Signals returns a defensive copy of all currently held signals.
func (c *Channel) Signals() []*Signal {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Signal, 0, len(c.order))
	for _, id := range c.order {
		if s, ok := c.byID[id]; ok {
			out = append(out, s.Clone())
		}
	}
	return out
}

// Get returns a defensive copy of a single signal by id.
func (c *Channel) Get(id string) (*Signal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// UpdateDACommitment mutates the local copy of a signal's daCommitment
// field in place; used when DA write-back is enabled. No-op if the id
// is unknown.
func (c *Channel) UpdateDACommitment(id, commitment string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.byID[id]; ok {
		s.DACommitment = commitment
	}
}

// BoostStrength adds delta to a signal's strength, clamped to 1.0 —
// the positive-feedback bonus applied when another agent absorbs the
// signal. No-op if the id is unknown.
func (c *Channel) BoostStrength(id string, delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.byID[id]; ok {
		s.Strength = math.Min(1.0, s.Strength+delta)
	}
}

// recomputeDensity derives the density scalar from the active set:
//
//	active       = { s | s.strength > 0.1 }
//	avgStrength  = mean(s.strength for s in active)
//	totalConn    = sum |s.connections| for s in active
//	connectivity = totalConn / max(1, |active| * agentCount)
//	raw          = (|active| / (agentCount * 8)) * avgStrength * (1 + 2*connectivity)
//	density      = min(1.0, raw)
func (c *Channel) recomputeDensity(agentCount int) float64 {
	var activeCount int
	var strengthSum float64
	var totalConn int

	for _, id := range c.order {
		s, ok := c.byID[id]
		if !ok {
			continue
		}
		if s.Strength > activeStrengthFloor {
			activeCount++
			strengthSum += s.Strength
			totalConn += len(s.Connections)
		}
	}

	if activeCount == 0 {
		return 0
	}

	avgStrength := strengthSum / float64(activeCount)
	denom := float64(activeCount * agentCount)
	if denom < 1 {
		denom = 1
	}
	connectivity := float64(totalConn) / denom

	raw := (float64(activeCount) / float64(agentCount*saturationPerAgent)) *
		avgStrength * (1 + 2*connectivity)

	return math.Min(1.0, raw)
}

// Density recomputes and returns the channel's density for the given
// agentCount. Called once per tick by the agent loop.
func (c *Channel) Density(agentCount int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.density = c.recomputeDensity(agentCount)
	return c.density
}

// CachedDensity returns the most recently computed density without
// recomputing it — used by read-only HTTP handlers that must not
// mutate state.
func (c *Channel) CachedDensity() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.density
}

// PhaseTransitionOccurred reports the current latch state.
func (c *Channel) PhaseTransitionOccurred() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phaseTransitionOccurred
}

// TransitionStep returns the step at which the latch was set, and
// whether it has been set at all.
func (c *Channel) TransitionStep() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transitionStep == nil {
		return 0, false
	}
	return *c.transitionStep, true
}

// ShouldTransitionGossip is the trigger used by independently gossiping
// agents: density >= criticalThreshold AND at least 3 signals with
// strength > 0.4. Each process evaluates this locally; no quorum
// exchange is needed.
func (c *Channel) ShouldTransitionGossip() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phaseTransitionOccurred {
		return false
	}
	if c.density < c.criticalThreshold {
		return false
	}
	strong := 0
	for _, id := range c.order {
		if s, ok := c.byID[id]; ok && s.Strength > 0.4 {
			strong++
			if strong >= 3 {
				return true
			}
		}
	}
	return false
}

// ShouldTransitionOrchestrated is the single-process variant of the
// trigger: it additionally requires a synchronization quorum of at
// least half the agents. Not wired into cmd/agent, which runs the
// gossip variant.
func (c *Channel) ShouldTransitionOrchestrated(syncedCount, agentCount int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phaseTransitionOccurred {
		return false
	}
	quorum := (agentCount + 1) / 2 // ceil(agentCount/2)
	return c.density >= c.criticalThreshold && syncedCount >= quorum
}

// Latch sets the phase transition latch if not already set, recording
// step as the transition step. Returns true if this call performed the
// false→true transition.
func (c *Channel) Latch(step int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phaseTransitionOccurred {
		return false
	}
	c.phaseTransitionOccurred = true
	st := step
	c.transitionStep = &st
	return true
}

// Reset clears signals, density, and the latch. The agent loop calls
// this a cooldown's worth of steps after a transition, starting the
// next emergence cycle.
func (c *Channel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID = make(map[string]*Signal)
	c.order = nil
	c.density = 0
	c.phaseTransitionOccurred = false
	c.transitionStep = nil
}

// Len returns the number of signals currently held.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// CriticalThreshold returns the configured threshold.
func (c *Channel) CriticalThreshold() float64 {
	return c.criticalThreshold
}
