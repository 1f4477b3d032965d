package decision

import "math/rand"

// ThoughtDigest is the minimal slice of a prior Thought the generator
// and scorer need — decoupled from internal/agent to avoid an import
// cycle (agent imports decision, not the reverse).
type ThoughtDigest struct {
	Topic            string
	Conclusion       string
	Confidence       float64
	SuggestedActions []string
}

// Input is everything GenerateCandidates needs to build the current
// step's candidate list.
type Input struct {
	Personality       Personality
	AnalyzedTopics    map[string]bool // topics this agent has cached a dataset for
	RecentThoughts    []ThoughtDigest // most recent thoughts, newest first (last 5 considered)
	RecentActionKinds []ActionKind    // last 8 executed actions, newest first
	ActiveSignalCount int             // signals currently on the channel
	RemainingBudget   int             // token budget minus tokens already used
	PhaseTransitioned bool
	Rand              *rand.Rand
}

// Personality is the stable per-agent trait vector that biases scoring.
type Personality struct {
	Curiosity   float64
	Diligence   float64
	Boldness    float64
	Sociability float64
}

// Candidate pairs a concrete Action with its estimated Cost and scored
// Priority.
type Candidate struct {
	Action   Action
	Cost     Cost
	Priority float64
}

const (
	recentWindow       = 8
	recentThoughtsUsed = 5
)

func recentlyUsed(kinds []ActionKind, kind ActionKind) bool {
	n := len(kinds)
	if n > recentWindow {
		n = recentWindow
	}
	for i := 0; i < n; i++ {
		if kinds[i] == kind {
			return true
		}
	}
	return false
}

// GenerateCandidates builds the set of eligible actions for the
// current step:
//  1. The last 5 recent thoughts' suggestedActions are normalized to
//     canonical topics; the result does not affect the candidate list,
//     whose enumeration is driven by AnalyzedTopics.
//  2. AnalyzeDataset is offered for every canonical topic not yet
//     analyzed.
//  3. With probability 0.3, and at least one topic already analyzed, a
//     re-analyze candidate is added for a previously analyzed topic.
//  4. If there is at least one recent thought, sociability > 0.4, and
//     the channel holds more than 2 signals, ShareFinding is offered
//     from the highest-confidence recent thought.
//  5. If at least two topics have cached datasets and curiosity > 0.5,
//     CorrelateFindings is offered over two of them.
//  6. If nothing else qualifies, ExploreTopic is added as the fallback.
//  7. Any candidate whose token cost exceeds RemainingBudget is dropped.
func GenerateCandidates(in Input) []Candidate {
	interestTopics := normalizeRecentThoughts(in.RecentThoughts)
	_ = interestTopics // unused: enumeration below is exhaustive per rule 2

	var candidates []Candidate

	var analyzedList []string
	for _, topic := range CanonicalTopics {
		if in.AnalyzedTopics[topic] {
			analyzedList = append(analyzedList, topic)
			continue
		}
		candidates = append(candidates, build(AnalyzeDataset{Topic: topic}, in))
	}

	if len(analyzedList) > 0 && in.Rand != nil && in.Rand.Float64() < 0.3 {
		topic := analyzedList[in.Rand.Intn(len(analyzedList))]
		candidates = append(candidates, build(AnalyzeDataset{Topic: topic}, in))
	}

	if len(in.RecentThoughts) > 0 && in.Personality.Sociability > 0.4 && in.ActiveSignalCount > 2 {
		if best := mostConfident(in.RecentThoughts); best != nil {
			candidates = append(candidates, build(ShareFinding{Finding: best.Conclusion, Topic: best.Topic}, in))
		}
	}

	if len(analyzedList) >= 2 && in.Personality.Curiosity > 0.5 {
		a, b := pickPair(analyzedList, in.Rand)
		candidates = append(candidates, build(CorrelateFindings{Topics: []string{a, b}}, in))
	}

	if len(candidates) == 0 {
		candidates = append(candidates, build(ExploreTopic{Topic: exploreTopicFor(in)}, in))
	}

	return dropOverBudget(candidates, in.RemainingBudget)
}

func build(a Action, in Input) Candidate {
	cost := costFor(a.Kind())
	return Candidate{
		Action:   a,
		Cost:     cost,
		Priority: score(a.Kind(), cost, in),
	}
}

// score weighs a candidate:
//
//	base        = ACTION_BASE[kind] * 0.25
//	efficiency  = max(0, 1 - cost.tokens/remainingBudget) * 0.25
//	novelty     = 0.15 if kind not in recentTypes(last 8) else 0
//	fit         = personality-weighted per kind, * 0.15
//	swarmBonus  = 0.10 if phaseTransitionOccurred && kind == correlate
//	priority    = base + efficiency + novelty + fit + swarmBonus
func score(kind ActionKind, cost Cost, in Input) float64 {
	base := actionBase[kind] * 0.25

	var efficiency float64
	if in.RemainingBudget > 0 {
		efficiency = 1 - float64(cost.Tokens)/float64(in.RemainingBudget)
		if efficiency < 0 {
			efficiency = 0
		}
	}
	efficiency *= 0.25

	var novelty float64
	if !recentlyUsed(in.RecentActionKinds, kind) {
		novelty = 0.15
	}

	var fit float64
	p := in.Personality
	switch kind {
	case KindAnalyzeDataset, KindExploreTopic:
		fit = p.Curiosity * 0.15
	case KindShareFinding:
		fit = p.Sociability * 0.15
	case KindCorrelateFindings:
		fit = ((p.Curiosity + p.Diligence) / 2) * 0.15
	}

	var swarmBonus float64
	if in.PhaseTransitioned && kind == KindCorrelateFindings {
		swarmBonus = 0.10
	}

	return base + efficiency + novelty + fit + swarmBonus
}

func normalizeRecentThoughts(thoughts []ThoughtDigest) []string {
	n := len(thoughts)
	if n > recentThoughtsUsed {
		n = recentThoughtsUsed
	}
	var topics []string
	for i := 0; i < n; i++ {
		for _, s := range thoughts[i].SuggestedActions {
			if t := NormalizeTopic(s); t != "" {
				topics = append(topics, t)
			}
		}
	}
	return topics
}

func mostConfident(thoughts []ThoughtDigest) *ThoughtDigest {
	var best *ThoughtDigest
	for i := range thoughts {
		t := &thoughts[i]
		if best == nil || t.Confidence > best.Confidence {
			best = t
		}
	}
	return best
}

func pickPair(topics []string, r *rand.Rand) (string, string) {
	if len(topics) < 2 {
		return "", ""
	}
	i, j := 0, 1
	if r != nil && len(topics) > 2 {
		i = r.Intn(len(topics))
		j = r.Intn(len(topics))
		for j == i {
			j = (j + 1) % len(topics)
		}
	}
	return topics[i], topics[j]
}

func exploreTopicFor(in Input) string {
	unanalyzed := make([]string, 0, len(CanonicalTopics))
	for _, topic := range CanonicalTopics {
		if !in.AnalyzedTopics[topic] {
			unanalyzed = append(unanalyzed, topic)
		}
	}
	pool := unanalyzed
	if len(pool) == 0 {
		pool = CanonicalTopics
	}
	if in.Rand == nil {
		return pool[0]
	}
	return pool[in.Rand.Intn(len(pool))]
}

func dropOverBudget(candidates []Candidate, remainingBudget int) []Candidate {
	var kept []Candidate
	for _, c := range candidates {
		if c.Cost.Tokens <= remainingBudget {
			kept = append(kept, c)
		}
	}
	return kept
}
