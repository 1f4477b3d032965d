package decision

import (
	"errors"
	"math"
	"math/rand"
)

// ErrNoCandidates is returned by SelectDecision when candidates is empty.
var ErrNoCandidates = errors.New("decision: no candidates to select from")

// SelectDecision picks one candidate by temperature-gated selection:
//   - temperature == 0: deterministic argmax over Priority, first
//     candidate wins ties (stable iteration order of the input slice).
//   - temperature > 0: softmax over Priority/temperature, sampled
//     against a single rand.Float64() draw.
//
// rng must be non-nil when temperature > 0; a nil rng at temperature 0
// is fine since no randomness is consulted.
func SelectDecision(candidates []Candidate, temperature float64, rng *rand.Rand) (*Candidate, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	if temperature <= 0 {
		return &candidates[argmax(candidates)], nil
	}
	return sampleSoftmax(candidates, temperature, rng)
}

func argmax(candidates []Candidate) int {
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Priority > candidates[best].Priority {
			best = i
		}
	}
	return best
}

// sampleSoftmax computes exp(priority/T) weights, normalizes them, and
// samples via inverse-CDF against a single uniform draw so the result
// is reproducible given a seeded rng.
func sampleSoftmax(candidates []Candidate, temperature float64, rng *rand.Rand) (*Candidate, error) {
	weights := make([]float64, len(candidates))
	var sum float64
	maxPriority := candidates[argmax(candidates)].Priority

	for i, c := range candidates {
		// Subtract maxPriority before exponentiating for numerical
		// stability; doesn't change the normalized distribution.
		w := math.Exp((c.Priority - maxPriority) / temperature)
		weights[i] = w
		sum += w
	}

	draw := rng.Float64() * sum
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if draw <= cumulative {
			return &candidates[i], nil
		}
	}
	// Floating point rounding can leave draw fractionally above the
	// final cumulative sum; fall back to the last candidate.
	return &candidates[len(candidates)-1], nil
}
