// Package metrics exposes the Prometheus gauges and counters each
// process serves at /metrics — density, signal volume, reasoning-call
// volume, and credit balance.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Density = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "swarm_channel_density",
		Help: "Current pheromone channel density for this agent's view.",
	}, []string{"agent_id"})

	PhaseTransitioned = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "swarm_phase_transitioned",
		Help: "1 if this agent's channel has latched a phase transition, else 0.",
	}, []string{"agent_id"})

	SignalsDeposited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarm_signals_deposited_total",
		Help: "Count of signals successfully deposited (post-dedup) into the channel.",
	}, []string{"agent_id", "source"}) // source: "emit", "gossip_push" (inbound POST /pheromone), "gossip_pull"

	SignalsPruned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarm_signals_pruned_total",
		Help: "Count of signals pruned by decay falling below minStrength.",
	}, []string{"agent_id"})

	ReasoningCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarm_reasoning_calls_total",
		Help: "Count of reasoning backend calls, partitioned by outcome.",
	}, []string{"agent_id", "outcome"}) // outcome: "ok", "degraded", "error"

	ReasoningLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swarm_reasoning_call_duration_seconds",
		Help:    "Latency of reasoning backend calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"agent_id"})

	CreditBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "swarm_credit_balance",
		Help: "Current credit balance for this agent.",
	}, []string{"agent_id"})

	CreditTier = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "swarm_credit_tier",
		Help: "Current credit tier encoded as an ordinal: normal=3, low_compute=2, critical=1, dead=0.",
	}, []string{"agent_id"})

	CollectiveSyntheses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarm_collective_syntheses_total",
		Help: "Count of completed collective synthesis runs.",
	}, []string{"outcome"}) // outcome: "ok", "aborted_quorum", "degraded"
)

// TierOrdinal maps a credits.Tier string onto the ordinal CreditTier
// expects, so callers in internal/agent don't need to import
// client_golang just to report a gauge value.
func TierOrdinal(tier string) float64 {
	switch tier {
	case "normal":
		return 3
	case "low_compute":
		return 2
	case "critical":
		return 1
	default:
		return 0
	}
}
