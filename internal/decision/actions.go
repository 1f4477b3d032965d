// Package decision implements the candidate-generation and softmax
// selection engine. Action is a closed interface with four concrete
// kinds; the executor dispatches with an exhaustive type switch.
package decision

import "strings"

// ActionKind tags the four concrete Action variants.
type ActionKind string

const (
	KindAnalyzeDataset    ActionKind = "analyze_dataset"
	KindShareFinding      ActionKind = "share_finding"
	KindCorrelateFindings ActionKind = "correlate_findings"
	KindExploreTopic      ActionKind = "explore_topic"
)

// Action is the sum type of candidate actions.
type Action interface {
	Kind() ActionKind
}

// AnalyzeDataset requests analysis of a single canonical topic.
type AnalyzeDataset struct {
	Topic string
}

func (AnalyzeDataset) Kind() ActionKind { return KindAnalyzeDataset }

// ShareFinding broadcasts a prior thought's conclusion as a new Signal.
type ShareFinding struct {
	Finding string
	Topic   string
}

func (ShareFinding) Kind() ActionKind { return KindShareFinding }

// CorrelateFindings cross-references two previously analyzed topics.
type CorrelateFindings struct {
	Topics []string
}

func (CorrelateFindings) Kind() ActionKind { return KindCorrelateFindings }

// ExploreTopic is the fallback action when nothing else qualifies.
type ExploreTopic struct {
	Topic string
}

func (ExploreTopic) Kind() ActionKind { return KindExploreTopic }

// Cost is an action's estimated resource consumption.
type Cost struct {
	Tokens int
	TimeMS int
}

// Static priority and cost tables per action kind.
var actionBase = map[ActionKind]float64{
	KindAnalyzeDataset:    0.95,
	KindShareFinding:      0.85,
	KindCorrelateFindings: 0.75,
	KindExploreTopic:      0.60,
}

var tokenEstimate = map[ActionKind]int{
	KindAnalyzeDataset:    2500,
	KindShareFinding:      1200,
	KindCorrelateFindings: 3500,
	KindExploreTopic:      2000,
}

var timeEstimateMS = map[ActionKind]int{
	KindAnalyzeDataset:    12000,
	KindShareFinding:      6000,
	KindCorrelateFindings: 18000,
	KindExploreTopic:      10000,
}

// costFor returns the static Cost for an action kind.
func costFor(kind ActionKind) Cost {
	return Cost{Tokens: tokenEstimate[kind], TimeMS: timeEstimateMS[kind]}
}

// CanonicalTopics are the five dataset-analysis topics agents work
// over.
var CanonicalTopics = []string{
	"astrophysics",
	"heliophysics",
	"exoplanets",
	"climate",
	"seismology",
}

// NormalizeTopic maps free-text topic mentions (from a thought's
// SuggestedActions) onto one of the five canonical topics via a simple
// keyword heuristic. Returns "" if no canonical topic matches.
func NormalizeTopic(freeText string) string {
	lower := strings.ToLower(freeText)
	keywords := map[string][]string{
		"astrophysics": {"star", "galaxy", "astro", "nova", "cosmic", "black hole"},
		"heliophysics": {"sun", "solar", "flare", "helio", "corona"},
		"exoplanets":   {"exoplanet", "planet", "transit", "habitable"},
		"climate":      {"climate", "atmosphere", "temperature", "weather", "warming"},
		"seismology":   {"quake", "seismic", "tremor", "fault", "tectonic"},
	}
	for _, topic := range CanonicalTopics {
		for _, kw := range keywords[topic] {
			if strings.Contains(lower, kw) {
				return topic
			}
		}
	}
	return ""
}
