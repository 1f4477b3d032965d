package agent

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pheromone-collective/swarm/internal/attestationsink"
	"github.com/pheromone-collective/swarm/internal/collective"
	"github.com/pheromone-collective/swarm/internal/credits"
	"github.com/pheromone-collective/swarm/internal/dataset"
	"github.com/pheromone-collective/swarm/internal/decision"
	"github.com/pheromone-collective/swarm/internal/gossip"
	"github.com/pheromone-collective/swarm/internal/identity"
	"github.com/pheromone-collective/swarm/internal/metrics"
	"github.com/pheromone-collective/swarm/internal/reasoning"
	"github.com/pheromone-collective/swarm/internal/signal"
	"github.com/pheromone-collective/swarm/pkg/wire"
)

// Persister is the narrow save contract the loop needs, satisfied by
// internal/persistence.Store. Declared here (rather than imported)
// so agent does not depend on the persistence package's storage
// choice — only on its ability to durably hold a wire.State.
type Persister interface {
	SaveAgentState(ctx context.Context, agentID string, snapshot wire.State) error
}

// WorldBounds is the rectangle agent positions are clamped to.
type WorldBounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Config tunes the per-tick pipeline: cooldown, step cadence, and
// world geometry.
type Config struct {
	Bounds                WorldBounds
	Cooldown              int // steps before cycle reset fires, default 18
	StepInterval          time.Duration
	BusyStepInterval      time.Duration // used while CurrentDecision is in flight
	PersistEveryNSteps    int           // default 10
	AgentCount            int           // for density's agentCount term
	EngineeringEnabled    bool
	DACommitmentWriteback bool
}

func (c Config) cooldown() int {
	if c.Cooldown <= 0 {
		return 18
	}
	return c.Cooldown
}

func (c Config) persistInterval() int {
	if c.PersistEveryNSteps <= 0 {
		return 10
	}
	return c.PersistEveryNSteps
}

// Loop drives one agent through its per-tick pipeline. A single
// goroutine is expected to call Tick repeatedly; concurrent HTTP
// readers use the exported snapshot accessors, which take the RWMutex
// for only as long as the copy takes.
type Loop struct {
	mu sync.RWMutex

	State   *State
	Channel *signal.Channel

	Transport  *gossip.Transport
	Reasoner   reasoning.Reasoner
	Datasets   dataset.Source
	DASink     attestationsink.Sink
	Persist    Persister
	Collective *collective.Synthesizer
	Governor   *credits.Governor

	cfg Config
	r   *rand.Rand
}

// New constructs a Loop over an already-built State and Channel.
func New(state *State, channel *signal.Channel, transport *gossip.Transport, reasoner reasoning.Reasoner, datasets dataset.Source, sink attestationsink.Sink, persist Persister, cfg Config, r *rand.Rand) *Loop {
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}
	return &Loop{
		State: state, Channel: channel, Transport: transport, Reasoner: reasoner,
		Datasets: datasets, DASink: sink, Persist: persist,
		Governor: credits.NewGovernor(state.Credits),
		cfg:      cfg, r: r,
	}
}

// Snapshot returns a read-only copy of the agent's externally visible
// state, safe to call concurrently with Tick.
func (l *Loop) Snapshot() wire.State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.State.Snapshot(l.Channel.CachedDensity(), l.Channel.CriticalThreshold(), l.Channel.PhaseTransitionOccurred())
}

// Thoughts returns a copy of the agent's thought history.
func (l *Loop) Thoughts() []wire.Thought {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]wire.Thought, len(l.State.Thoughts))
	for i, t := range l.State.Thoughts {
		out[i] = t.ToWire()
	}
	return out
}

// AttestationView builds GET /attestation's response: this
// agent's identity, its most recently emitted Signal, and that
// Signal's own attestation re-verified against its recorded payload.
func (l *Loop) AttestationView() wire.AttestationView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := l.State

	view := wire.AttestationView{
		Identity: wire.Identity{
			AgentID: s.ID, Name: s.Name,
			PublicKey: s.Identity.PublicKeyHex(), Fingerprint: s.Identity.Fingerprint,
		},
		ComputeTier: string(s.Credits.Tier()),
	}

	var latest *signal.Signal
	for _, sig := range l.Channel.Signals() {
		if sig.ProducerID != s.ID {
			continue
		}
		if latest == nil || sig.Timestamp > latest.Timestamp {
			latest = sig
		}
	}
	if latest == nil {
		return view
	}

	w := latest.ToWire()
	view.LatestSignal = &w
	view.DACommitment = latest.DACommitment

	result := identity.VerifyAttestation(latest.Attestation, latest.Content, latest.ProducerID, latest.Timestamp)
	view.VerifiedValid = result.Valid
	view.VerifiedPubkey = result.PublicKey
	return view
}

// Identity returns the agent's public identity, for GET /identity.
func (l *Loop) Identity() wire.Identity {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := l.State
	return wire.Identity{
		AgentID: s.ID, Name: s.Name,
		PublicKey: s.Identity.PublicKeyHex(), Fingerprint: s.Identity.Fingerprint,
	}
}

// Pheromones returns the current channel snapshot as wire Signals, for
// GET /pheromones.
func (l *Loop) Pheromones() []wire.Signal {
	sigs := l.Channel.Signals()
	out := make([]wire.Signal, len(sigs))
	for i, sg := range sigs {
		out[i] = sg.ToWire()
	}
	return out
}

// AcceptPheromone deposits an inbound Signal (POST /pheromone), relying
// on the Channel's own mutex to serialize against the loop's concurrent
// deposit/decay calls. Returns true if the signal was newly added.
func (l *Loop) AcceptPheromone(w wire.Signal) bool {
	added := l.Channel.Deposit(signal.FromWire(w))
	if added {
		metrics.SignalsDeposited.WithLabelValues(l.State.ID, "gossip_push").Inc()
	}
	return added
}

// Tick runs one full round: pull, integrate, decay, then the agent
// pipeline (move, absorb, think/scan, checkSync, cycle reset). Pushes
// happen inside emit as the pipeline produces signals. It returns the
// duration the caller should sleep before calling Tick again.
func (l *Loop) Tick(ctx context.Context) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.State

	if l.Transport != nil {
		pulled := l.Transport.Pull(ctx)
		added := gossip.MergeInto(l.Channel, pulled)
		if added > 0 {
			metrics.SignalsDeposited.WithLabelValues(s.ID, "gossip_pull").Add(float64(added))
		}
	}

	preDecayLen := l.Channel.Len()
	l.Channel.Decay()
	if pruned := preDecayLen - l.Channel.Len(); pruned > 0 {
		metrics.SignalsPruned.WithLabelValues(s.ID).Add(float64(pruned))
	}

	s.StepCount++

	l.Channel.Density(l.cfg.AgentCount)
	if l.Channel.ShouldTransitionGossip() && l.Channel.Latch(s.StepCount) {
		l.triggerSynthesis()
	}

	l.move()
	absorbed := l.absorb()

	deep := l.decideMode()
	if deep {
		l.runDeepStep(ctx)
	} else {
		l.runLightStep(ctx)
	}
	_ = absorbed

	l.checkSync()
	l.maybeCycleReset()

	l.reportMetrics()

	if s.StepCount%l.cfg.persistInterval() == 0 && l.Persist != nil {
		snap := s.Snapshot(l.Channel.CachedDensity(), l.Channel.CriticalThreshold(), l.Channel.PhaseTransitionOccurred())
		go func() {
			pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = l.Persist.SaveAgentState(pctx, s.ID, snap) // best effort
		}()
	}

	interval := l.cfg.StepInterval
	if s.CurrentDecision != nil && interval < l.cfg.BusyStepInterval {
		interval = l.cfg.BusyStepInterval
	}
	return interval, nil
}

// reportMetrics publishes the per-agent Prometheus gauges.
func (l *Loop) reportMetrics() {
	s := l.State
	transitioned := 0.0
	if l.Channel.PhaseTransitionOccurred() {
		transitioned = 1.0
	}
	metrics.Density.WithLabelValues(s.ID).Set(l.Channel.CachedDensity())
	metrics.PhaseTransitioned.WithLabelValues(s.ID).Set(transitioned)
	metrics.CreditBalance.WithLabelValues(s.ID).Set(s.Credits.Balance)
	metrics.CreditTier.WithLabelValues(s.ID).Set(metrics.TierOrdinal(string(s.Credits.Tier())))
}

// triggerSynthesis runs the collective synthesis pass in its own
// goroutine on the phase-transition edge, so a slow reasoning
// backend call never stalls the tick loop. Best effort: failures are
// swallowed, matching the rest of the emit/persist fire-and-forget
// paths in this file.
func (l *Loop) triggerSynthesis() {
	if l.Collective == nil {
		return
	}
	s := l.State
	ch := l.Channel
	localThoughts := make([]collective.LocalThought, len(s.Thoughts))
	for i, t := range s.Thoughts {
		localThoughts[i] = collective.LocalThought{
			ProducerID: t.ProducerID, Domain: s.Domain,
			Observation: t.Observation, Reasoning: t.Reasoning,
			Conclusion: t.Conclusion, Confidence: t.Confidence,
		}
	}
	identityCopy := s.Identity
	synth := l.Collective

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		mem, err := synth.MaybeSynthesize(ctx, ch, localThoughts, identityCopy)
		if err != nil {
			log.Printf("agent: collective synthesis failed: %v", err)
			return
		}
		if mem == nil {
			return // quorum not met; not an error
		}
		l.mu.Lock()
		s.Credits.EarnBonus(synth.CreditBonus())
		s.ContributionsToCollective++
		l.mu.Unlock()
	}()
}

// move applies Brownian perturbation pre-transition, orbital pull
// post-transition, 0.85 damping, and clamps to Bounds.
func (l *Loop) move() {
	s := l.State
	transitioned := l.Channel.PhaseTransitionOccurred()

	if transitioned {
		// Pull toward world center with a mild orbital tangent.
		cx := (l.cfg.Bounds.MinX + l.cfg.Bounds.MaxX) / 2
		cy := (l.cfg.Bounds.MinY + l.cfg.Bounds.MaxY) / 2
		dx, dy := cx-s.Position.X, cy-s.Position.Y
		s.Velocity.X += dx*0.01 - dy*0.005
		s.Velocity.Y += dy*0.01 + dx*0.005
	} else {
		for _, sig := range l.Channel.Signals() {
			if sig.ProducerID == s.ID || s.Absorbed[sig.ID] || sig.Strength <= 0.5 {
				continue
			}
			s.Velocity.X += (l.r.Float64()*2 - 1) * 0.05
			s.Velocity.Y += (l.r.Float64()*2 - 1) * 0.05
		}
		s.Velocity.X += (l.r.Float64()*2 - 1) * 0.02
		s.Velocity.Y += (l.r.Float64()*2 - 1) * 0.02
	}

	s.Velocity.X *= 0.85
	s.Velocity.Y *= 0.85
	s.Position.X = clampRange(s.Position.X+s.Velocity.X, l.cfg.Bounds.MinX, l.cfg.Bounds.MaxX)
	s.Position.Y = clampRange(s.Position.Y+s.Velocity.Y, l.cfg.Bounds.MinY, l.cfg.Bounds.MaxY)
}

func clampRange(v, lo, hi float64) float64 {
	if hi < lo {
		return v
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// absorb accepts each foreign, unabsorbed signal with probability
// strength*0.6, gaining energy and boosting the source signal.
func (l *Loop) absorb() []*signal.Signal {
	s := l.State
	var absorbed []*signal.Signal
	for _, sig := range l.Channel.Signals() {
		if sig.ProducerID == s.ID || s.Absorbed[sig.ID] || sig.Strength <= 0.2 {
			continue
		}
		if l.r.Float64() >= sig.Strength*0.6 {
			continue
		}
		s.Absorbed[sig.ID] = true
		s.Energy = clamp01(s.Energy + 0.05)
		l.Channel.BoostStrength(sig.ID, 0.1)
		absorbed = append(absorbed, sig)
	}
	return absorbed
}

// decideMode returns true for a deep (LLM-backed) step. The Bernoulli
// gate ramps with stepCount so young agents mostly scan.
func (l *Loop) decideMode() bool {
	s := l.State
	if !l.cfg.EngineeringEnabled {
		return false
	}
	if s.TokensUsed >= s.TokenBudget {
		return false
	}
	if l.Governor.Gated() {
		return false
	}
	gate := float64(s.StepCount) / 40
	if gate > 0.85 {
		gate = 0.85
	}
	return l.r.Float64() < gate
}

// checkSync flips the agent to synchronized once density, absorption
// count, and energy all clear their floors.
func (l *Loop) checkSync() {
	s := l.State
	if s.Synchronized {
		return
	}
	density := l.Channel.Density(l.cfg.AgentCount)
	if density >= l.Channel.CriticalThreshold() && len(s.Absorbed) >= 3 && s.Energy > 0.5 {
		s.Synchronized = true
		s.Energy = 1.0
	}
}

// maybeCycleReset wipes the channel and the agent's sync state a
// cooldown's worth of steps after the transition, starting the next
// emergence cycle.
func (l *Loop) maybeCycleReset() {
	s := l.State
	if !l.Channel.PhaseTransitionOccurred() {
		return
	}
	step, ok := l.Channel.TransitionStep()
	if !ok || s.StepCount-step < l.cfg.cooldown() {
		return
	}
	l.Channel.Reset()
	s.Synchronized = false
	s.Absorbed = make(map[string]bool)
	s.Energy = 0.3 + l.r.Float64()*0.2
}

// newSignalID mints a fresh Signal id.
func newSignalID() string {
	return uuid.NewString()
}

// emit signs a new Signal, appends it locally, pushes it to peers, and
// enqueues a fire-and-forget DA dispersal.
func (l *Loop) emit(content, domain string, confidence float64, connections []string, strengthOverride *float64) *signal.Signal {
	s := l.State
	now := time.Now().UnixMilli()

	strength := 0.5 + 0.3*confidence
	if strengthOverride != nil {
		strength = *strengthOverride
	}

	sig := &signal.Signal{
		ID:          newSignalID(),
		ProducerID:  s.ID,
		Content:     content,
		Domain:      domain,
		Confidence:  confidence,
		Strength:    clamp01(strength),
		Connections: connections,
		Timestamp:   now,
	}
	sig.Attestation = s.Identity.BuildAttestation(content, s.ID, now)
	sig.ProducerPubkey = s.Identity.PublicKeyHex()

	l.Channel.Deposit(sig)
	metrics.SignalsDeposited.WithLabelValues(s.ID, "emit").Add(1)
	s.Discoveries++

	if l.Transport != nil {
		go l.Transport.Push(context.Background(), sig)
	}

	if l.DASink != nil && l.DASink.Enabled() {
		id := sig.ID
		attestationsink.DisperseAsync(l.DASink, []byte(content), func(commitment string) {
			if l.cfg.DACommitmentWriteback {
				l.Channel.UpdateDACommitment(id, commitment)
			}
		})
	}

	return sig
}

func recentActionKinds(decisions []Decision) []decision.ActionKind {
	n := len(decisions)
	if n > 8 {
		n = 8
	}
	out := make([]decision.ActionKind, n)
	for i := 0; i < n; i++ {
		out[i] = decisions[n-1-i].ActionType
	}
	return out
}

func (l *Loop) recentThoughtDigests() []decision.ThoughtDigest {
	s := l.State
	n := len(s.Thoughts)
	if n > 5 {
		n = 5
	}
	out := make([]decision.ThoughtDigest, n)
	for i := 0; i < n; i++ {
		out[i] = s.Thoughts[n-1-i].ToDigest()
	}
	return out
}

func fmtErrStatus(err error) (string, string) {
	if err != nil {
		return StatusFailed, err.Error()
	}
	return StatusCompleted, ""
}
