package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pheromone-collective/swarm/internal/decision"
	"github.com/pheromone-collective/swarm/internal/metrics"
	"github.com/pheromone-collective/swarm/internal/reasoning"
)

// runDeepStep is the LLM-backed mode: think, decide, execute. When the
// credit governor blocks reasoning entirely, the step degrades to a
// canned low-confidence thought with no tokens spent and no action
// taken.
func (l *Loop) runDeepStep(ctx context.Context) {
	s := l.State

	if l.Governor.Gated() {
		s.Thoughts = append(s.Thoughts, l.cannedThought(time.Now().UnixMilli()))
		return
	}

	thought := l.think(ctx)
	s.Thoughts = append(s.Thoughts, thought)

	candidates := decision.GenerateCandidates(decision.Input{
		Personality:       s.Personality,
		AnalyzedTopics:    s.AnalyzedTopics,
		RecentThoughts:    l.recentThoughtDigests(),
		RecentActionKinds: recentActionKinds(s.Decisions),
		ActiveSignalCount: l.Channel.Len(),
		RemainingBudget:   s.TokenBudget - s.TokensUsed,
		PhaseTransitioned: l.Channel.PhaseTransitionOccurred(),
		Rand:              l.r,
	})
	chosen, err := decision.SelectDecision(candidates, 0.3, l.r)
	if err != nil {
		return // nothing eligible this step; stay idle
	}

	d := &Decision{
		ID: uuid.NewString(), Action: chosen.Action, ActionType: chosen.Action.Kind(),
		Priority: chosen.Priority, Status: StatusExecuting, CreatedAt: time.Now().UnixMilli(),
	}
	s.CurrentDecision = d

	artifact, execErr := l.execute(ctx, chosen.Action, chosen.Cost.Tokens)
	status, errMsg := fmtErrStatus(execErr)
	d.Status, d.Error = status, errMsg
	d.FinishedAt = time.Now().UnixMilli()
	s.Decisions = append(s.Decisions, *d)
	s.CurrentDecision = nil

	if execErr == nil && artifact != "" {
		priority := chosen.Priority
		strength := 0.65 + 0.3*priority
		l.emit(artifact, s.Domain, thought.Confidence, []string{thought.ID}, &strength)
		s.Credits.EarnFromConfidence(thought.Confidence, 10)
	}
}

// think synthesizes absorbed signals when the agent is social enough
// and has material; otherwise forms an independent thought.
func (l *Loop) think(ctx context.Context) Thought {
	s := l.State
	now := time.Now().UnixMilli()

	if len(s.Absorbed) > 0 && s.Personality.Sociability > 0.4 {
		return l.synthesize(ctx, now)
	}
	return l.formThought(ctx, now)
}

// cannedThought is the degraded output for a credit-exhausted agent:
// no reasoning call, nothing to suggest, confidence pinned low.
func (l *Loop) cannedThought(now int64) Thought {
	s := l.State
	return Thought{
		ID:               uuid.NewString(),
		ProducerID:       s.ID,
		Trigger:          "credit exhaustion",
		Observation:      fmt.Sprintf("credit tier %s blocks reasoning", s.Credits.Tier()),
		Reasoning:        "reasoning call skipped",
		Conclusion:       "insufficient credits to reason further",
		SuggestedActions: []string{},
		Confidence:       0.2,
		Timestamp:        now,
		Topic:            s.Domain,
	}
}

func (l *Loop) synthesize(ctx context.Context, now int64) Thought {
	s := l.State
	var observations []string
	for _, sig := range l.Channel.Signals() {
		if s.Absorbed[sig.ID] {
			observations = append(observations, sig.Content)
		}
	}
	observation := strings.Join(observations, "; ")

	opts := reasoning.Options{CheaperModel: l.Governor.CheaperModelRequested()}
	result, err := l.timedReason(ctx, synthesizeSystemPrompt, observation, opts)
	s.TokensUsed += result.TokensUsed
	s.Credits.Spend(result.TokensUsed)

	conclusion := result.Content
	confidence := 0.7
	if err != nil || conclusion == "" {
		conclusion = "synthesis unavailable; retaining raw observations"
		confidence = 0.3
	}

	return Thought{
		ID: uuid.NewString(), ProducerID: s.ID, Trigger: "absorption",
		Observation: observation, Reasoning: "cross-referenced absorbed signals",
		Conclusion: conclusion, SuggestedActions: []string{s.Domain},
		Confidence: confidence, Timestamp: now, Topic: s.Domain,
	}
}

func (l *Loop) formThought(ctx context.Context, now int64) Thought {
	s := l.State
	observation := fmt.Sprintf("independent observation in %s", s.Domain)

	opts := reasoning.Options{CheaperModel: l.Governor.CheaperModelRequested()}
	result, err := l.timedReason(ctx, formThoughtSystemPrompt, observation, opts)
	s.TokensUsed += result.TokensUsed
	s.Credits.Spend(result.TokensUsed)

	conclusion := result.Content
	confidence := 0.6
	if err != nil || conclusion == "" {
		conclusion = fmt.Sprintf("no strong signal yet in %s", s.Domain)
		confidence = 0.25
	}

	return Thought{
		ID: uuid.NewString(), ProducerID: s.ID, Trigger: "scheduled reflection",
		Observation: observation, Reasoning: "independent analysis", Conclusion: conclusion,
		SuggestedActions: []string{s.Domain},
		Confidence:       confidence, Timestamp: now, Topic: s.Domain,
	}
}

// timedReason wraps Reasoner.Reason with the reasoning-call metrics
// (count by outcome, latency histogram) every deep-mode call reports.
func (l *Loop) timedReason(ctx context.Context, system, user string, opts reasoning.Options) (reasoning.Result, error) {
	start := time.Now()
	result, err := l.Reasoner.Reason(ctx, system, user, opts)
	metrics.ReasoningLatency.WithLabelValues(l.State.ID).Observe(time.Since(start).Seconds())

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case result.Content == "":
		outcome = "degraded"
	}
	metrics.ReasoningCalls.WithLabelValues(l.State.ID, outcome).Inc()
	return result, err
}

const synthesizeSystemPrompt = "You are a research agent synthesizing absorbed observations into one concise conclusion."
const formThoughtSystemPrompt = "You are a research agent forming an independent observation in your specialization."

// execute dispatches on the action's concrete type. Returns the
// artifact content to emit as a Signal (or "" if the action produced
// nothing to share), and any execution error.
func (l *Loop) execute(ctx context.Context, a decision.Action, tokenCost int) (string, error) {
	s := l.State

	switch action := a.(type) {
	case decision.AnalyzeDataset:
		ds, err := l.Datasets.FetchDataset(ctx, action.Topic)
		if err != nil {
			return "", err
		}
		s.AnalyzedTopics[action.Topic] = true
		s.TokensUsed += tokenCost
		s.Credits.Spend(tokenCost)
		if ds == nil {
			return "", nil
		}
		return ds.RandomHighlight(l.r.Intn), nil

	case decision.ShareFinding:
		s.TokensUsed += tokenCost / 4 // sharing is cheap relative to analysis
		s.Credits.Spend(tokenCost / 4)
		return action.Finding, nil

	case decision.CorrelateFindings:
		s.TokensUsed += tokenCost
		s.Credits.Spend(tokenCost)
		if len(action.Topics) < 2 {
			return "", fmt.Errorf("agent: correlate requires two topics")
		}
		return fmt.Sprintf("correlation observed between %s and %s", action.Topics[0], action.Topics[1]), nil

	case decision.ExploreTopic:
		ds, err := l.Datasets.FetchDataset(ctx, action.Topic)
		s.TokensUsed += tokenCost
		s.Credits.Spend(tokenCost)
		if err != nil {
			return "", err
		}
		if ds == nil {
			return fmt.Sprintf("exploring %s with no dataset yet", action.Topic), nil
		}
		return ds.RandomHighlight(l.r.Intn), nil

	default:
		return "", fmt.Errorf("agent: unrecognized action kind %T", a)
	}
}
