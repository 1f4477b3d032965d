// Package collective implements the cross-agent synthesis pass:
// triggered once an agent's channel latches a phase transition, it
// looks for a quorum of distinct contributors around one domain and
// asks the reasoning backend for a structured report.
package collective

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pheromone-collective/swarm/internal/identity"
	"github.com/pheromone-collective/swarm/internal/metrics"
	"github.com/pheromone-collective/swarm/internal/reasoning"
	"github.com/pheromone-collective/swarm/internal/signal"
	"github.com/pheromone-collective/swarm/pkg/wire"
)

// Config tunes which signals count as rich enough to synthesize from.
type Config struct {
	MinSignalStrength float64 // default 0.3
	MinContentLen     int     // default 40
	MaxContributors   int     // default 6, used for both the bundle and the plaintext fallback
	CreditBonus       float64 // default 10, flat bonus per CollectiveMemory contribution
}

// DefaultConfig holds the standard tuning.
var DefaultConfig = Config{MinSignalStrength: 0.3, MinContentLen: 40, MaxContributors: 6, CreditBonus: 10}

func (c Config) withDefaults() Config {
	if c.MinSignalStrength <= 0 {
		c.MinSignalStrength = DefaultConfig.MinSignalStrength
	}
	if c.MinContentLen <= 0 {
		c.MinContentLen = DefaultConfig.MinContentLen
	}
	if c.MaxContributors <= 0 {
		c.MaxContributors = DefaultConfig.MaxContributors
	}
	if c.CreditBonus <= 0 {
		c.CreditBonus = DefaultConfig.CreditBonus
	}
	return c
}

// LocalThought is the narrow view of internal/agent.Thought the
// synthesizer needs, declared here rather than imported so this package
// does not depend on internal/agent (agent already depends on
// collective in the other direction, via Loop's phase-transition hook).
type LocalThought struct {
	ProducerID string
	Domain     string
	Observation string
	Reasoning   string
	Conclusion  string
	Confidence  float64
}

// Persister is the narrow save contract, satisfied by
// internal/persistence.Store.
type Persister interface {
	SaveCollectiveMemory(ctx context.Context, mem wire.CollectiveMemory) error
}

// Synthesizer runs the synthesis pass against one agent's local view of
// the swarm: its own Channel (gossiped Signals, cross-agent) and its
// own Thoughts (never gossiped, local-only). Crediting the local
// agent's ledger is the caller's responsibility — Synthesizer never
// touches Credits itself, since it may run on its own goroutine while
// the agent loop concurrently mutates the same ledger under its own
// lock. Each agent runs its own Synthesizer independently once it
// observes the same phase transition, so credit for a shared discovery
// settles out eventually across the swarm rather than atomically.
type Synthesizer struct {
	cfg      Config
	Reasoner reasoning.Reasoner
	Persist  Persister
}

// New constructs a Synthesizer.
func New(cfg Config, reasoner reasoning.Reasoner, persist Persister) *Synthesizer {
	return &Synthesizer{cfg: cfg.withDefaults(), Reasoner: reasoner, Persist: persist}
}

// CreditBonus returns the flat bonus a successful synthesis earns its
// local contributor.
func (s *Synthesizer) CreditBonus() float64 { return s.cfg.CreditBonus }

// MaybeSynthesize runs the synthesis pass once. It returns (nil, nil) if
// fewer than two distinct producers contributed rich signals to the
// densest domain — an abort, not an error.
func (s *Synthesizer) MaybeSynthesize(ctx context.Context, ch *signal.Channel, localThoughts []LocalThought, localID *identity.Identity) (*wire.CollectiveMemory, error) {
	rich := richSignals(ch.Signals(), s.cfg)
	if len(rich) == 0 {
		metrics.CollectiveSyntheses.WithLabelValues("aborted_quorum").Inc()
		return nil, nil
	}

	groups := groupByDomain(rich)
	topic, group := densestGroup(groups)
	if topic == "" {
		metrics.CollectiveSyntheses.WithLabelValues("aborted_quorum").Inc()
		return nil, nil
	}

	producers := distinctProducers(group)
	if len(producers) < 2 {
		metrics.CollectiveSyntheses.WithLabelValues("aborted_quorum").Inc()
		return nil, nil
	}

	bundle, signalIDs, avgConfidence := evidenceBundle(group, localThoughts, s.cfg.MaxContributors)
	topicsStudied := studiedTopics(groups)

	now := time.Now().UnixMilli()
	report, err := s.Reasoner.GenerateCollectiveReport(ctx, bundle, topicsStudied, topic)

	outcome := "ok"
	synthesis := plaintextFallback(bundle, s.cfg.MaxContributors)
	if err != nil || report == nil {
		outcome = "degraded"
		report = nil
	} else {
		synthesis = report.Overview
	}

	mem := wire.CollectiveMemory{
		ID:           uuid.NewString(),
		Topic:        topic,
		Synthesis:    synthesis,
		Contributors: producers,
		SignalIDs:    signalIDs,
		Confidence:   avgConfidence,
		CreatedAt:    now,
		Report:       report,
	}
	if localID != nil {
		mem.Attestation = localID.BuildAttestation(synthesis, "collective", now)
	}

	if s.Persist != nil {
		if perr := s.Persist.SaveCollectiveMemory(ctx, mem); perr != nil {
			outcome = "degraded"
		}
	}

	metrics.CollectiveSyntheses.WithLabelValues(outcome).Inc()
	return &mem, nil
}

// richSignals keeps signals strong and substantial enough to cite as
// evidence.
func richSignals(sigs []*signal.Signal, cfg Config) []*signal.Signal {
	out := make([]*signal.Signal, 0, len(sigs))
	for _, sg := range sigs {
		if sg.Strength >= cfg.MinSignalStrength && len(sg.Content) > cfg.MinContentLen {
			out = append(out, sg)
		}
	}
	return out
}

func groupByDomain(sigs []*signal.Signal) map[string][]*signal.Signal {
	groups := make(map[string][]*signal.Signal)
	for _, sg := range sigs {
		groups[sg.Domain] = append(groups[sg.Domain], sg)
	}
	return groups
}

// densestGroup picks the domain with the most rich signals, breaking
// ties by domain name for determinism.
func densestGroup(groups map[string][]*signal.Signal) (string, []*signal.Signal) {
	var best string
	for domain, group := range groups {
		if best == "" || len(group) > len(groups[best]) ||
			(len(group) == len(groups[best]) && domain < best) {
			best = domain
		}
	}
	if best == "" {
		return "", nil
	}
	return best, groups[best]
}

func distinctProducers(group []*signal.Signal) []string {
	seen := make(map[string]bool)
	var out []string
	for _, sg := range group {
		if !seen[sg.ProducerID] {
			seen[sg.ProducerID] = true
			out = append(out, sg.ProducerID)
		}
	}
	sort.Strings(out)
	return out
}

func studiedTopics(groups map[string][]*signal.Signal) []string {
	out := make([]string, 0, len(groups))
	for domain := range groups {
		out = append(out, domain)
	}
	sort.Strings(out)
	return out
}

// evidenceBundle assembles the report input. Each distinct producer
// contributes its single best-confidence entry: the local agent's real
// Thought when one matches the topic's domain, or else a
// Signal-derived stand-in (content becomes the conclusion; observation
// and reasoning are empty, since Thoughts are never gossiped — only
// Signals cross process boundaries).
func evidenceBundle(group []*signal.Signal, localThoughts []LocalThought, max int) ([]reasoning.EvidenceItem, []string, float64) {
	bestByProducer := make(map[string]*signal.Signal)
	for _, sg := range group {
		cur, ok := bestByProducer[sg.ProducerID]
		if !ok || sg.Confidence > cur.Confidence {
			bestByProducer[sg.ProducerID] = sg
		}
	}

	localBest := make(map[string]LocalThought) // domain -> best local thought
	for _, t := range localThoughts {
		cur, ok := localBest[t.Domain]
		if !ok || t.Confidence > cur.Confidence {
			localBest[t.Domain] = t
		}
	}

	producers := make([]string, 0, len(bestByProducer))
	for p := range bestByProducer {
		producers = append(producers, p)
	}
	sort.Slice(producers, func(i, j int) bool {
		return bestByProducer[producers[i]].Confidence > bestByProducer[producers[j]].Confidence
	})
	if len(producers) > max {
		producers = producers[:max]
	}

	bundle := make([]reasoning.EvidenceItem, 0, len(producers))
	signalIDs := make([]string, 0, len(producers))
	var confSum float64

	for _, producerID := range producers {
		sg := bestByProducer[producerID]
		signalIDs = append(signalIDs, sg.ID)
		confSum += sg.Confidence

		if lt, ok := localBest[sg.Domain]; ok && lt.ProducerID == producerID {
			bundle = append(bundle, reasoning.EvidenceItem{
				ProducerName:   producerID,
				Specialization: lt.Domain,
				Observation:    lt.Observation,
				Reasoning:      lt.Reasoning,
				Conclusion:     lt.Conclusion,
				Confidence:     lt.Confidence,
			})
			continue
		}

		bundle = append(bundle, reasoning.EvidenceItem{
			ProducerName:   producerID,
			Specialization: sg.Domain,
			Conclusion:     sg.Content,
			Confidence:     sg.Confidence,
		})
	}

	avg := 0.0
	if len(producers) > 0 {
		avg = confSum / float64(len(producers))
	}
	return bundle, signalIDs, avg
}

// plaintextFallback is the synthesis used when the reasoning backend
// is unavailable: a concatenation of up to maxContributors conclusions.
func plaintextFallback(bundle []reasoning.EvidenceItem, max int) string {
	n := len(bundle)
	if n > max {
		n = max
	}
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, fmt.Sprintf("%s: %s", bundle[i].ProducerName, bundle[i].Conclusion))
	}
	return strings.Join(parts, " | ")
}
