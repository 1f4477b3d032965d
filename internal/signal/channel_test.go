package signal

import (
	"math"
	"testing"
)

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestSoloDecay(t *testing.T) {
	ch := New(Config{DecayRate: 0.5, MinStrength: 0.05, CriticalThreshold: 0.55})
	ch.Deposit(&Signal{ID: "s1", Strength: 0.5})

	ch.Decay()
	got, ok := ch.Get("s1")
	if !ok {
		t.Fatal("expected signal to survive one decay tick")
	}
	if !approxEqual(got.Strength, 0.25, 1e-9) {
		t.Errorf("expected strength 0.25 after one tick, got %v", got.Strength)
	}

	ch.Decay() // 0.125
	ch.Decay() // 0.0625
	if _, ok := ch.Get("s1"); !ok {
		t.Fatal("expected signal to still be present after two more ticks (0.0625 > 0.05)")
	}

	ch.Decay() // 0.03125 <= 0.05, pruned
	if _, ok := ch.Get("s1"); ok {
		t.Error("expected signal to be pruned once strength <= 0.05")
	}
	if ch.Len() != 0 {
		t.Errorf("expected empty channel after pruning, got %d signals", ch.Len())
	}
}

func TestDecayMultipliesExactlyOnce(t *testing.T) {
	ch := New(Config{DecayRate: 0.2, MinStrength: 0.05, CriticalThreshold: 0.55})
	ch.Deposit(&Signal{ID: "s1", Strength: 0.9})
	ch.Decay()
	got, _ := ch.Get("s1")
	if !approxEqual(got.Strength, 0.72, 1e-9) {
		t.Errorf("expected 0.9*0.8=0.72, got %v", got.Strength)
	}
}

func TestDepositDedup(t *testing.T) {
	ch := New(Config{CriticalThreshold: 0.55})
	first := ch.Deposit(&Signal{ID: "dup", Strength: 0.5})
	second := ch.Deposit(&Signal{ID: "dup", Strength: 0.9})

	if !first {
		t.Error("expected first deposit to succeed")
	}
	if second {
		t.Error("expected second deposit with same id to be rejected")
	}
	if ch.Len() != 1 {
		t.Errorf("expected exactly one signal, got %d", ch.Len())
	}
	got, _ := ch.Get("dup")
	if got.Strength != 0.5 {
		t.Errorf("expected original strength preserved, got %v", got.Strength)
	}
}

func TestInvariantStrengthBounds(t *testing.T) {
	ch := New(Config{DecayRate: 0.12, MinStrength: 0.05, CriticalThreshold: 0.55})
	ch.Deposit(&Signal{ID: "a", Strength: 0.9})
	ch.Deposit(&Signal{ID: "b", Strength: 0.06})

	for i := 0; i < 5; i++ {
		ch.Decay()
		for _, s := range ch.Signals() {
			if s.Strength <= 0.05 || s.Strength > 1 {
				t.Errorf("invariant violated: strength %v out of (0.05, 1]", s.Strength)
			}
		}
	}
}

// Direct density/latch check rather than running a full multi-agent
// swarm: five signals from each of six agents (30 active at 0.8, one
// connection each) give (30/48) * 0.8 * (1 + 2*30/180) ≈ 0.667.
func TestTransitionTrigger(t *testing.T) {
	ch := New(Config{CriticalThreshold: 0.55})
	agentCount := 6

	for i := 0; i < 30; i++ {
		ch.Deposit(&Signal{
			ID:          idFor(i),
			Strength:    0.8,
			Connections: []string{"seed"},
		})
	}

	d := ch.Density(agentCount)
	if d < ch.CriticalThreshold() {
		t.Fatalf("expected density >= critical threshold, got %v", d)
	}
	if !ch.ShouldTransitionGossip() {
		t.Fatal("expected gossip-variant transition to trigger")
	}
	if !ch.Latch(10) {
		t.Fatal("expected latch to set on first call")
	}
	if ch.Latch(11) {
		t.Error("expected latch to be a one-shot false->true transition")
	}
	if !ch.PhaseTransitionOccurred() {
		t.Error("expected phaseTransitionOccurred to be true")
	}
}

func idFor(i int) string {
	return string(rune('a' + i))
}

func TestCycleReset(t *testing.T) {
	ch := New(Config{CriticalThreshold: 0.55})
	ch.Deposit(&Signal{ID: "x", Strength: 0.9})
	ch.Density(6)
	ch.Latch(5)

	ch.Reset()

	if ch.Len() != 0 {
		t.Errorf("expected empty channel after reset, got %d", ch.Len())
	}
	if ch.PhaseTransitionOccurred() {
		t.Error("expected latch cleared after reset")
	}
	if ch.CachedDensity() != 0 {
		t.Errorf("expected density cleared after reset, got %v", ch.CachedDensity())
	}
	if _, ok := ch.TransitionStep(); ok {
		t.Error("expected transitionStep cleared after reset")
	}
}

func TestDensityMonotonicUnderInjection(t *testing.T) {
	ch := New(Config{CriticalThreshold: 0.55})
	agentCount := 10

	prev := ch.Density(agentCount)
	for i := 0; i < 8; i++ {
		ch.Deposit(&Signal{ID: idFor(i), Strength: 0.3})
		next := ch.Density(agentCount)
		if next < prev {
			t.Errorf("density decreased from %v to %v after adding a signal", prev, next)
		}
		prev = next
	}
}

func TestDensityZeroWithNoActiveSignals(t *testing.T) {
	ch := New(Config{CriticalThreshold: 0.55})
	ch.Deposit(&Signal{ID: "weak", Strength: 0.05})
	if d := ch.Density(5); d != 0 {
		t.Errorf("expected density 0 with no active signals, got %v", d)
	}
}

func TestShouldTransitionOrchestratedQuorum(t *testing.T) {
	ch := New(Config{CriticalThreshold: 0.5})
	// 12 active at 0.9 with two connections each: (12/32) * 0.9 * (1 + 2*24/48) = 0.675.
	for i := 0; i < 12; i++ {
		ch.Deposit(&Signal{ID: idFor(i), Strength: 0.9, Connections: []string{"a", "b"}})
	}
	ch.Density(4)

	if ch.ShouldTransitionOrchestrated(1, 4) {
		t.Error("expected no transition below quorum (ceil(4/2)=2)")
	}
	if !ch.ShouldTransitionOrchestrated(2, 4) {
		t.Error("expected transition to trigger at quorum")
	}
}
