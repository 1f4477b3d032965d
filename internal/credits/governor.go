// Package credits implements the per-agent soft-currency that gates
// reasoning-backend calls. The governor is a pure function of the
// local ledger; no cross-agent communication is involved.
package credits

import "math"

// Tier is a discrete credit state gating reasoning calls.
type Tier string

const (
	TierNormal     Tier = "normal"
	TierLowCompute Tier = "low_compute"
	TierCritical   Tier = "critical"
	TierDead       Tier = "dead"
)

// Thresholds configures the balance cutoffs between tiers.
type Thresholds struct {
	T1 float64 // balance > T1 => normal
	T2 float64 // balance > T2 => low_compute
}

// DefaultThresholds holds the standard cutoffs.
var DefaultThresholds = Thresholds{T1: 500, T2: 100}

// Credits is the per-agent soft-currency state.
type Credits struct {
	Balance         float64
	Earned          float64
	Spent           float64
	DistressEmitted bool

	thresholds Thresholds
}

// New creates a Credits ledger with a starting balance.
func New(startingBalance float64, thresholds Thresholds) *Credits {
	return &Credits{Balance: startingBalance, thresholds: thresholds}
}

// Tier derives the current tier from balance.
func (c *Credits) Tier() Tier {
	switch {
	case c.Balance > c.thresholds.T1:
		return TierNormal
	case c.Balance > c.thresholds.T2:
		return TierLowCompute
	case c.Balance > 0:
		return TierCritical
	default:
		return TierDead
	}
}

// Spend debits credits 1:1 with tokens charged to the reasoning
// backend.
func (c *Credits) Spend(tokens int) {
	amount := float64(tokens)
	c.Balance -= amount
	c.Spent += amount
}

// EarnFromConfidence credits an agent on successful signal emission;
// f(confidence) is a simple linear scaling, tunable via scale.
func (c *Credits) EarnFromConfidence(confidence, scale float64) {
	amount := math.Max(0, confidence) * scale
	c.Balance += amount
	c.Earned += amount
}

// EarnBonus credits a flat bonus, used for CollectiveMemory
// contributions.
func (c *Credits) EarnBonus(amount float64) {
	c.Balance += amount
	c.Earned += amount
}

// Governor wraps a Credits ledger and applies the reasoning-call gate:
// dead/critical skip the LLM call entirely; low_compute requests a
// cheaper model variant (handled by the caller via
// CheaperModelRequested); normal is unchanged.
type Governor struct {
	Credits *Credits
}

// NewGovernor wraps an existing Credits ledger.
func NewGovernor(c *Credits) *Governor {
	return &Governor{Credits: c}
}

// Gated reports whether a reasoning call should be skipped entirely for
// the current tier.
func (g *Governor) Gated() bool {
	t := g.Credits.Tier()
	return t == TierCritical || t == TierDead
}

// CheaperModelRequested reports whether the caller should ask the
// reasoning backend for a cheaper model variant this call.
func (g *Governor) CheaperModelRequested() bool {
	return g.Credits.Tier() == TierLowCompute
}
